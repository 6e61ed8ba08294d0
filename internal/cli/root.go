package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Config  string
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the semforge CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "semforge",
		Short: "semforge - semantic shape registry",
		Long: "Compiles constrained schemas into portable constraint shapes,\n" +
			"registers them in a graph store, and validates data records against\n" +
			"the stored shapes.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Config, "config", DefaultConfigPath, "config file path")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewFetchCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// newFormatter builds the formatter every command writes through.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// loadConfig reads the configured file and reports failures through the
// formatter before returning an ExitError.
func loadConfig(opts *RootOptions, formatter *OutputFormatter) (*Config, error) {
	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		formatter.Error(ErrCodeConfig, err.Error(), nil)
		return nil, NewExitError(ExitCommandError, err.Error())
	}
	return cfg, nil
}
