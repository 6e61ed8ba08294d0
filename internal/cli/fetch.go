package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/semforge/semforge/internal/memory"
	"github.com/semforge/semforge/internal/registry"
	"github.com/semforge/semforge/internal/shape"
)

// FetchOptions holds flags for the fetch command.
type FetchOptions struct {
	*RootOptions
}

// FetchResult is the fetch command's JSON payload.
type FetchResult struct {
	Instance string         `json:"instance"`
	Record   map[string]any `json:"record"`
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FetchOptions{RootOptions: rootOpts}

	return &cobra.Command{
		Use:   "fetch <schema> <instance>",
		Short: "Fetch a stored record by instance",
		Long: `Fetch a stored data record. The instance argument is either a full
instance IRI or the bare id assigned when the record was saved.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(opts, args[0], args[1], cmd)
		},
	}
}

func runFetch(opts *FetchOptions, schemaName, instance string, cmd *cobra.Command) error {
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
	if !strings.Contains(instance, "://") {
		instance = ns.InstanceIRI(schemaName, instance)
	}

	mem := memory.New(st, registry.New(st, ns), ns)
	rec, err := mem.FetchRecord(cmd.Context(), targetClass, instance)
	if err != nil {
		formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	fields := shape.RecordToFields(ns, rec)
	if opts.Format == "json" {
		return formatter.JSON(&FetchResult{Instance: instance, Record: fields})
	}

	out, err := yaml.Marshal(fields)
	if err != nil {
		formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	fmt.Fprintf(formatter.Writer, "%s", out)
	return nil
}
