package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/angriff36/manifest/internal/compiler"
	"github.com/angriff36/manifest/internal/ir"
)

// DriftOptions holds flags for the drift command.
type DriftOptions struct {
	*RootOptions
	IRPath       string
	CommandsPath string
	Manifests    string
}

// DriftReport is the payload of the drift command.
type DriftReport struct {
	InSync        bool   `json:"inSync"`
	IRDrift       bool   `json:"irDrift"`
	CommandsDrift bool   `json:"commandsDrift,omitempty"`
	CommittedHash string `json:"committedHash,omitempty"`
	CurrentHash   string `json:"currentHash,omitempty"`
}

func (r DriftReport) String() string {
	if r.InSync {
		return "committed artifacts are in sync"
	}
	msg := "drift detected:"
	if r.IRDrift {
		msg += fmt.Sprintf(" IR (committed %s, current %s)", r.CommittedHash, r.CurrentHash)
	}
	if r.CommandsDrift {
		msg += " commands.json"
	}
	return msg
}

// NewDriftCommand creates the drift command, which recompiles manifests
// and byte-compares the result against committed artifacts.
func NewDriftCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DriftOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "drift",
		Short:         "Detect drift between manifests and committed artifacts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrift(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.IRPath, "ir", "", "committed IR JSON file (required)")
	cmd.Flags().StringVar(&opts.CommandsPath, "commands", "", "committed commands.json file")
	cmd.Flags().StringVar(&opts.Manifests, "manifests", "", "manifest file or directory (required)")
	_ = cmd.MarkFlagRequired("ir")
	_ = cmd.MarkFlagRequired("manifests")
	return cmd
}

func runDrift(opts *DriftOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	committed, err := os.ReadFile(opts.IRPath)
	if err != nil {
		_ = formatter.Error(ErrCodeLoad, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	committedIR, err := ir.DecodeIR(committed)
	if err != nil {
		_ = formatter.Error(ErrCodeLoad, err.Error(), nil)
		return WrapExitError(ExitCommandError, "reading committed IR", err)
	}

	source, err := LoadManifestSource(opts.Manifests)
	if err != nil {
		_ = formatter.Error(ErrCodeLoad, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	current, diags := compiler.CompileToIR(source)
	if current == nil {
		_ = formatter.Error(ErrCodeCompile, "compilation failed", diags)
		return NewExitError(ExitFailure, "compilation failed")
	}

	currentBytes, err := ir.MarshalDeterministic(current)
	if err != nil {
		return WrapExitError(ExitCommandError, "encoding IR", err)
	}

	report := DriftReport{
		IRDrift:       !bytes.Equal(bytes.TrimSpace(committed), bytes.TrimSpace(currentBytes)),
		CommittedHash: provenanceHash(committedIR),
		CurrentHash:   provenanceHash(current),
	}

	if opts.CommandsPath != "" {
		committedCmds, err := os.ReadFile(opts.CommandsPath)
		if err != nil {
			_ = formatter.Error(ErrCodeLoad, err.Error(), nil)
			return NewExitError(ExitCommandError, err.Error())
		}
		currentCmds, err := ir.MarshalCommandManifest(ir.DeriveCommandManifest(current))
		if err != nil {
			return WrapExitError(ExitCommandError, "encoding commands.json", err)
		}
		report.CommandsDrift = !bytes.Equal(bytes.TrimSpace(committedCmds), bytes.TrimSpace(currentCmds))
	}

	report.InSync = !report.IRDrift && !report.CommandsDrift
	if !report.InSync {
		_ = formatter.Error(ErrCodeDrift, report.String(), report)
		return NewExitError(ExitFailure, "drift detected")
	}
	return formatter.Success(report)
}

func provenanceHash(i *ir.IR) string {
	if i == nil || i.Provenance == nil {
		return ""
	}
	return i.Provenance.ContentHash
}
