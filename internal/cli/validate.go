package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angriff36/manifest/internal/compiler"
	"github.com/angriff36/manifest/internal/ir"
)

// ValidateSummary is the payload of the validate command.
type ValidateSummary struct {
	Valid       bool            `json:"valid"`
	Errors      int             `json:"errors"`
	Warnings    int             `json:"warnings"`
	Diagnostics []ir.Diagnostic `json:"diagnostics,omitempty"`
}

func (s ValidateSummary) String() string {
	if s.Valid {
		return fmt.Sprintf("valid (%d warnings)", s.Warnings)
	}
	return fmt.Sprintf("invalid: %d errors, %d warnings", s.Errors, s.Warnings)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "validate <file|dir>",
		Short:         "Check manifest source without producing output",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(rootOpts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	source, err := LoadManifestSource(path)
	if err != nil {
		_ = formatter.Error(ErrCodeLoad, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	compiled, diags := compiler.CompileToIR(source)
	summary := ValidateSummary{Valid: compiled != nil, Diagnostics: diags}
	for _, d := range diags {
		switch d.Severity {
		case ir.SeverityError:
			summary.Errors++
		case ir.SeverityWarning:
			summary.Warnings++
		}
	}

	if !summary.Valid {
		_ = formatter.Error(ErrCodeCompile, summary.String(), diags)
		return NewExitError(ExitFailure, "validation failed")
	}
	return formatter.Success(summary)
}
