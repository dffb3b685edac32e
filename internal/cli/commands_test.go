package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angriff36/manifest/internal/ir"
)

func TestCommandsFromSource(t *testing.T) {
	path := writeManifest(t, dishSource)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCommandsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)

	var entries []ir.CommandManifestEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Dish", entries[0].Entity)
	assert.Equal(t, "updatePricing", entries[0].Command)
}

func TestCommandsFromCommittedIR(t *testing.T) {
	dir := t.TempDir()
	irPath, _ := commitArtifacts(t, dir, dishSource)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCommandsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{irPath})

	err := cmd.Execute()
	require.NoError(t, err)

	var entries []ir.CommandManifestEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 1)
}

func TestCommandsOutputToFile(t *testing.T) {
	path := writeManifest(t, dishSource)
	outputFile := filepath.Join(t.TempDir(), "commands.json")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCommandsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path, "-o", outputFile})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "wrote 1 commands")

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	var entries []ir.CommandManifestEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 1)
}

func TestCommandsTamperedIRRejected(t *testing.T) {
	dir := t.TempDir()
	irPath, _ := commitArtifacts(t, dir, dishSource)

	// Flip a field after the provenance was stamped.
	data, err := os.ReadFile(irPath)
	require.NoError(t, err)
	tampered := bytes.Replace(data, []byte("updatePricing"), []byte("updatePricinX"), 1)
	require.NoError(t, os.WriteFile(irPath, tampered, 0o644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCommandsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{irPath})

	err = cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
