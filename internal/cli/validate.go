package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/semforge/semforge/internal/memory"
	"github.com/semforge/semforge/internal/registry"
	"github.com/semforge/semforge/internal/shape"
	"github.com/semforge/semforge/internal/validator"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Save bool
}

// RecordFile is the YAML form of a record under validation.
type RecordFile struct {
	// Schema names the registered shape the record claims to conform to.
	Schema string `yaml:"schema"`

	// Record holds the field values.
	Record map[string]any `yaml:"record"`
}

// ValidateResult is the validate command's output payload.
type ValidateResult struct {
	TargetClass string             `json:"target_class"`
	Conforms    bool               `json:"conforms"`
	Results     []validator.Result `json:"results,omitempty"`

	// Instance is the stored instance IRI when --save was given and the
	// record conformed.
	Instance string `json:"instance,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <record.yaml>",
		Short: "Validate a record against its registered shape",
		Long: `Validate a YAML record file against the shape registered for its
schema. Every constraint is evaluated; the full report prints even when
the first violation already decides the outcome. Exit code 1 means the
record does not conform.

With --save, a conforming record is persisted to the data graph and its
instance IRI printed. Non-conforming records are never stored.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Save, "save", false, "persist the record when it conforms")

	return cmd
}

func runValidate(opts *ValidateOptions, recordPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions, formatter)
	if err != nil {
		return err
	}

	file, err := loadRecordFile(recordPath)
	if err != nil {
		formatter.Error(ErrCodeRecordFile, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	st, closeStore, err := cfg.OpenStore()
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	defer closeStore()

	ns := cfg.NamespaceIRI()
	targetClass := ns.ClassIRI(file.Schema)
	rec, err := shape.RecordFromFields(ns, targetClass, file.Record)
	if err != nil {
		formatter.Error(ErrCodeRecordFile, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	reg := registry.New(st, ns)
	desc, err := reg.Resolve(cmd.Context(), targetClass)
	if err != nil {
		formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	report, err := validator.New(reg).Validate(cmd.Context(), rec, desc)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	result := &ValidateResult{
		TargetClass: targetClass,
		Conforms:    report.Conforms(),
		Results:     report.Results,
	}

	if opts.Save && result.Conforms {
		mem := memory.New(st, reg, ns)
		instance, err := mem.SaveRecord(cmd.Context(), rec, "")
		if err != nil {
			formatter.Error(ErrCodeStore, err.Error(), nil)
			return NewExitError(ExitCommandError, err.Error())
		}
		result.Instance = instance
	}

	if err := outputValidateResult(formatter, opts, result); err != nil {
		return err
	}
	if !result.Conforms {
		return NewExitError(ExitFailure, fmt.Sprintf("record does not conform to %s", targetClass))
	}
	return nil
}

func loadRecordFile(path string) (*RecordFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record file: %w", err)
	}

	var file RecordFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse record file: %w", err)
	}
	if file.Schema == "" {
		return nil, fmt.Errorf("record file needs a schema name")
	}
	if file.Record == nil {
		return nil, fmt.Errorf("record file needs a record")
	}
	return &file, nil
}

func outputValidateResult(formatter *OutputFormatter, opts *ValidateOptions, result *ValidateResult) error {
	if opts.Format == "json" {
		return formatter.JSON(result)
	}

	if result.Conforms {
		fmt.Fprintf(formatter.Writer, "conforms: %s\n", result.TargetClass)
	} else {
		fmt.Fprintf(formatter.Writer, "does not conform: %s\n", result.TargetClass)
	}
	for _, r := range result.Results {
		fmt.Fprintf(formatter.Writer, "  %s\n", r)
	}
	if result.Instance != "" {
		fmt.Fprintf(formatter.Writer, "stored: %s\n", result.Instance)
	}
	return nil
}
