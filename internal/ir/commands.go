package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// CommandManifestEntry is one row of the derived commands.json artifact.
// The artifact is committed next to generated code and diffed against a
// fresh derivation to detect silent drift between manifests and consumers.
type CommandManifestEntry struct {
	Entity    string `json:"entity"`
	Command   string `json:"command"`
	CommandID string `json:"commandId"`
}

// DeriveCommandManifest projects the IR's command list into the
// commands.json shape: one entry per command, sorted by (entity ASC,
// command ASC), with CommandID = "entity.command". The result is
// mechanically re-derivable; any consumer of commands.json may assume
// exactly this field set and ordering.
func DeriveCommandManifest(i *IR) []CommandManifestEntry {
	entries := make([]CommandManifestEntry, 0, len(i.Commands))
	for _, cmd := range i.Commands {
		entries = append(entries, CommandManifestEntry{
			Entity:    cmd.Entity,
			Command:   cmd.Name,
			CommandID: cmd.Entity + "." + cmd.Name,
		})
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].Entity != entries[b].Entity {
			return entries[a].Entity < entries[b].Entity
		}
		return entries[a].Command < entries[b].Command
	})
	return entries
}

// MarshalCommandManifest encodes the entries as the committed artifact
// bytes: two-space indent, trailing newline, no HTML escaping.
func MarshalCommandManifest(entries []CommandManifestEntry) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return nil, fmt.Errorf("marshal command manifest: %w", err)
	}
	return buf.Bytes(), nil
}
