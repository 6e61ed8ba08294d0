package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/semforge/semforge/internal/registry"
	"github.com/semforge/semforge/internal/shape"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Output string
}

// ExportResult is the export command's JSON payload.
type ExportResult struct {
	TargetClass string `json:"target_class"`
	Hash        string `json:"hash"`
	Turtle      string `json:"turtle"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <schema>",
		Short: "Export a registered shape as Turtle",
		Long: `Fetch a shape from the store by schema name and print its
deterministic Turtle form. The output re-imports to an identical shape
with an identical content hash.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runExport(opts *ExportOptions, schemaName string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions, formatter)
	if err != nil {
		return err
	}

	st, closeStore, err := cfg.OpenStore()
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	defer closeStore()

	ns := cfg.NamespaceIRI()
	targetClass := ns.ClassIRI(schemaName)

	reg := registry.New(st, ns)
	desc, err := reg.Resolve(cmd.Context(), targetClass)
	if err != nil {
		code := ErrCodeStore
		var notFound *registry.NotFoundError
		if errors.As(err, &notFound) {
			code = ErrCodeNotFound
		}
		formatter.Error(code, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	doc := shape.ExportTurtle(desc)
	hash, err := shape.ContentHash(desc)
	if err != nil {
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(doc), 0o644); err != nil {
			msg := fmt.Sprintf("writing output file: %v", err)
			formatter.Error(ErrCodeWriteFailed, msg, nil)
			return NewExitError(ExitCommandError, msg)
		}
		formatter.VerboseLog("Wrote %s", opts.Output)
	}

	if opts.Format == "json" {
		return formatter.JSON(&ExportResult{TargetClass: targetClass, Hash: hash, Turtle: doc})
	}
	if opts.Output == "" {
		fmt.Fprint(formatter.Writer, doc)
	}
	return nil
}
