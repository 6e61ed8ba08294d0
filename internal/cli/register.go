package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semforge/semforge/internal/compiler"
	"github.com/semforge/semforge/internal/generator"
	"github.com/semforge/semforge/internal/registry"
)

// RegisterOptions holds flags for the register command.
type RegisterOptions struct {
	*RootOptions
}

// RegisteredShape is one registration in the command output.
type RegisteredShape struct {
	Name        string `json:"name"`
	TargetClass string `json:"target_class"`
	Outcome     string `json:"outcome"`
	Hash        string `json:"hash"`
}

// RegisterResult is the register command's output payload.
type RegisterResult struct {
	Shapes   []RegisteredShape       `json:"shapes"`
	Warnings []compiler.CycleWarning `json:"warnings,omitempty"`
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	return &cobra.Command{
		Use:   "register <schemas>",
		Short: "Compile CUE schemas and register their shapes",
		Long: `Compile CUE schema files into constraint shapes and register them
in the configured graph store. Nested schemas register before the shapes
that reference them. Re-registering an unchanged schema writes nothing.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(opts, args[0], cmd)
		},
	}
}

func runRegister(opts *RegisterOptions, schemaPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions, formatter)
	if err != nil {
		return err
	}

	srcs, err := LoadSchemaSources(schemaPath)
	if err != nil {
		formatter.Error(ErrCodeCompile, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	formatter.VerboseLog("Loaded %d schema(s) from %s", len(srcs), schemaPath)

	st, closeStore, err := cfg.OpenStore()
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	defer closeStore()

	ns := cfg.NamespaceIRI()
	gen := generator.New(compiler.NewIntrospector(ns), generator.Closed(cfg.Closed))
	generated, errs := gen.GenerateAll(srcs)
	if len(errs) > 0 {
		err := errors.Join(errs...)
		formatter.Error(ErrCodeCompile, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	reg := registry.New(st, ns, registry.StrictConstraints(cfg.Strict))
	result := &RegisterResult{Warnings: generated.Warnings}
	for _, s := range generated.Shapes {
		r, err := reg.Register(cmd.Context(), s.Descriptor)
		if err != nil {
			msg := fmt.Sprintf("register %s: %v", s.Name, err)
			formatter.Error(ErrCodeRegister, msg, nil)
			return NewExitError(ExitCommandError, msg)
		}
		formatter.VerboseLog("Registered %s: %s", s.Name, r.Outcome)
		result.Shapes = append(result.Shapes, RegisteredShape{
			Name:        s.Name,
			TargetClass: r.TargetClass,
			Outcome:     string(r.Outcome),
			Hash:        r.Hash,
		})
	}

	if opts.Format == "json" {
		return formatter.JSON(result)
	}
	for _, s := range result.Shapes {
		fmt.Fprintf(formatter.Writer, "%-9s  %s  %s\n", s.Outcome, s.Name, s.Hash)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "warning: %s (%s)\n", w.Message, strings.Join(w.Path, " -> "))
	}
	return nil
}
