package compiler

import (
	"fmt"

	"github.com/angriff36/manifest/internal/ir"
)

// EnforceCommandOwnership normalizes command ownership in an IR in place.
//
// After a successful call every command's Entity names an entity present
// in the IR, and every entity's Commands list holds exactly the names of
// its owned commands in declaration order. The pass is total (it never
// drops or invents commands) and idempotent: running it on an already
// normalized IR changes nothing.
//
// Commands with a missing or dangling entity tag are re-attributed by
// their source line: a command belongs to the nearest entity declared at
// or before it. With a single entity in the IR, all untagged commands
// fall to it regardless of position. A command attributable to no entity
// is an error; the IR is left unmodified in that case.
func EnforceCommandOwnership(i *ir.IR, manifestName string) error {
	if i == nil {
		return fmt.Errorf("nil IR")
	}

	known := make(map[string]bool, len(i.Entities))
	for idx := range i.Entities {
		known[i.Entities[idx].Name] = true
	}

	// Resolve attribution without touching the IR so a failure leaves it
	// intact.
	owners := make([]string, len(i.Commands))
	for idx := range i.Commands {
		cmd := &i.Commands[idx]
		switch {
		case known[cmd.Entity]:
			owners[idx] = cmd.Entity
		case len(i.Entities) == 1:
			owners[idx] = i.Entities[0].Name
		default:
			owner := ownerByLine(i, cmd.Line)
			if owner == "" {
				return fmt.Errorf("command %q (line %d) is attributable to no entity", cmd.Name, cmd.Line)
			}
			owners[idx] = owner
		}
	}

	for idx := range i.Commands {
		i.Commands[idx].Entity = owners[idx]
	}

	// Rebuild each entity's command list from scratch. Deterministic
	// declaration order plus full rebuild is what makes repeated runs
	// converge to the same result.
	byEntity := make(map[string][]string, len(i.Entities))
	for idx := range i.Commands {
		cmd := &i.Commands[idx]
		byEntity[cmd.Entity] = append(byEntity[cmd.Entity], cmd.Name)
	}
	for idx := range i.Entities {
		e := &i.Entities[idx]
		e.Commands = byEntity[e.Name]
		if e.Commands == nil {
			e.Commands = []string{}
		}
	}

	if manifestName != "" && i.Manifest == "" {
		i.Manifest = manifestName
	}
	return nil
}

// ownerByLine returns the name of the entity declared nearest at or
// before the given source line, or "" when no entity precedes it.
func ownerByLine(i *ir.IR, line int) string {
	if line <= 0 {
		return ""
	}
	best := ""
	bestLine := -1
	for idx := range i.Entities {
		e := &i.Entities[idx]
		if e.Line > 0 && e.Line <= line && e.Line > bestLine {
			best = e.Name
			bestLine = e.Line
		}
	}
	return best
}
