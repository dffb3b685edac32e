package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/angriff36/manifest/internal/compiler"
	"github.com/angriff36/manifest/internal/ir"
)

// CommandsOptions holds flags for the commands command.
type CommandsOptions struct {
	*RootOptions
	Output string
}

// NewCommandsCommand creates the commands command, which derives the
// committed commands.json artifact.
func NewCommandsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CommandsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "commands <ir.json|file|dir>",
		Short: "Derive the commands.json artifact",
		Long: `Derive the sorted command inventory from compiled IR.

The input is either a committed IR JSON file or manifest source, which
is compiled first. Entries are sorted by entity then command so repeated
derivations are byte-identical.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommands(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	return cmd
}

func runCommands(opts *CommandsOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	compiled, err := loadIROrCompile(path)
	if err != nil {
		_ = formatter.Error(ErrCodeLoad, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	entries := ir.DeriveCommandManifest(compiled)
	data, err := ir.MarshalCommandManifest(entries)
	if err != nil {
		_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "encoding commands.json", err)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
		return formatter.Success(fmt.Sprintf("wrote %d commands to %s", len(entries), opts.Output))
	}

	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// loadIROrCompile accepts either a committed IR JSON file (schema
// checked, provenance verified) or manifest source, returning compiled
// IR either way.
func loadIROrCompile(path string) (*ir.IR, error) {
	if strings.HasSuffix(path, ".json") {
		compiled, err := ir.LoadIRFile(path)
		if err != nil {
			return nil, err
		}
		if err := ir.Verify(compiled); err != nil {
			return nil, err
		}
		return compiled, nil
	}
	source, err := LoadManifestSource(path)
	if err != nil {
		return nil, err
	}
	compiled, diags := compiler.CompileToIR(source)
	if compiled == nil {
		return nil, fmt.Errorf("compilation failed with %d diagnostics", len(diags))
	}
	return compiled, nil
}
