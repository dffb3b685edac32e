package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/angriff36/manifest/internal/compiler"
	"github.com/angriff36/manifest/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string
}

// CompileSummary is the success payload of the compile command.
type CompileSummary struct {
	Entities    int             `json:"entities"`
	Commands    int             `json:"commands"`
	Constraints int             `json:"constraints"`
	Events      int             `json:"events"`
	ContentHash string          `json:"contentHash"`
	Diagnostics []ir.Diagnostic `json:"diagnostics,omitempty"`
	Output      string          `json:"output,omitempty"`
}

func (s CompileSummary) String() string {
	return fmt.Sprintf("compiled %d entities, %d commands, %d constraints, %d events (hash %s)",
		s.Entities, s.Commands, s.Constraints, s.Events, s.ContentHash)
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <file|dir>",
		Short: "Compile manifest source to IR",
		Long: `Compile .manifest source to the serializable IR.

Diagnostics print in source order; any error-severity diagnostic fails
the compile. With --output the deterministic IR JSON is written to the
given file, ready to commit.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompileCmd(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	return cmd
}

func runCompileCmd(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	source, err := LoadManifestSource(path)
	if err != nil {
		_ = formatter.Error(ErrCodeLoad, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	compiled, diags := compiler.CompileToIR(source)
	for _, d := range diags {
		formatter.VerboseLog("%s %d:%d %s", d.Severity, d.Line, d.Column, d.Message)
	}
	if compiled == nil {
		_ = formatter.Error(ErrCodeCompile, "compilation failed", diags)
		return NewExitError(ExitFailure, "compilation failed")
	}

	if opts.Output != "" {
		data, err := ir.MarshalDeterministic(compiled)
		if err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "encoding IR", err)
		}
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	return formatter.Success(CompileSummary{
		Entities:    len(compiled.Entities),
		Commands:    len(compiled.Commands),
		Constraints: len(compiled.Constraints),
		Events:      len(compiled.Events),
		ContentHash: compiled.Provenance.ContentHash,
		Diagnostics: diags,
		Output:      opts.Output,
	})
}
