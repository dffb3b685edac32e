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

const dishSource = `
module catering {
  entity Dish {
    property required name: string
    property price: number = 0
    property updatedAt: string

    constraint nonNegativePrice severity=block: args.price >= 0 "price cannot be negative"

    command updatePricing(price: number) {
      constraint nonNegativePrice
      mutate price = args.price
      mutate updatedAt = now()
      emits PricingChanged
    }
  }

  event PricingChanged: { dish: string, price: number }
}
`

// writeManifest drops source into a temp dir and returns the file path.
func writeManifest(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catering.manifest")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func TestCompileValidManifest(t *testing.T) {
	path := writeManifest(t, dishSource)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "compiled 1 entities")
	assert.Contains(t, output, "1 commands")
	assert.Regexp(t, `hash [0-9a-f]{64}`, output)
}

func TestCompileValidManifestJSON(t *testing.T) {
	path := writeManifest(t, dishSource)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestCompileOutputToFile(t *testing.T) {
	path := writeManifest(t, dishSource)
	outputFile := filepath.Join(t.TempDir(), "catering.ir.json")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path, "--output", outputFile})

	err := cmd.Execute()
	require.NoError(t, err)

	// The written artifact is schema-valid IR with intact provenance.
	compiled, err := ir.LoadIRFile(outputFile)
	require.NoError(t, err)
	require.NoError(t, ir.Verify(compiled))
	assert.Len(t, compiled.Entities, 1)
}

func TestCompileNonExistentPath(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/path.manifest"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "E001")
}

func TestCompileInvalidManifest(t *testing.T) {
	path := writeManifest(t, `
module bad {
  entity Dish {
    property name: string
  }
  entity Dish {
    property name: string
  }
}
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "E002")
}

func TestCompileInvalidManifestJSON(t *testing.T) {
	path := writeManifest(t, `module bad { entity command { } }`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)

	var resp CLIResponse
	jsonErr := json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, jsonErr)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCompile, resp.Error.Code)
}

func TestCompileDirectoryConcatenatesSorted(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.manifest"),
		[]byte("module catering {\n  entity Venue {\n    property name: string\n  }\n}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.manifest"),
		[]byte("module catering {\n  entity Dish {\n    property name: string\n  }\n}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), data["entities"])
}

func TestCompileVerboseDiagnosticsGoToStderr(t *testing.T) {
	path := writeManifest(t, `
module catering {
  entity Dish {
    property name: string
    command rename(name: string) => mutate name = args.name
  }
  command orphan() => mutate name = args.name
}
`)

	stdoutBuf := &bytes.Buffer{}
	stderrBuf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json", Verbose: true}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(stdoutBuf)
	cmd.SetErr(stderrBuf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)

	// stdout stays parseable JSON with the logs on stderr.
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(stdoutBuf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}
