package engine

import "github.com/angriff36/manifest/internal/ir"

// Instance is one stored entity instance. Props holds the property bag;
// Version increments on every successful write, which is what the stores
// use for optimistic conflict detection.
type Instance struct {
	ID      string    `json:"id"`
	Entity  string    `json:"entity"`
	Version int64     `json:"version"`
	Props   ir.Object `json:"props"`
}

// Clone deep-copies the instance so command evaluation can mutate a
// scratch copy without touching stored state.
func (in *Instance) Clone() *Instance {
	if in == nil {
		return nil
	}
	return &Instance{
		ID:      in.ID,
		Entity:  in.Entity,
		Version: in.Version,
		Props:   in.Props.Clone(),
	}
}
