package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadManifestSource reads manifest source from a .manifest file or a
// directory of them. Directory files are concatenated in name order so
// repeated loads form the same compile unit.
func LoadManifestSource(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("cannot read %s: %w", path, err)
	}
	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("cannot read %s: %w", path, err)
		}
		return string(data), nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("cannot read %s: %w", path, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".manifest") {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no .manifest files in %s", path)
	}
	sort.Strings(files)

	var b strings.Builder
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return "", fmt.Errorf("cannot read %s: %w", f, err)
		}
		b.Write(data)
		b.WriteString("\n")
	}
	return b.String(), nil
}
