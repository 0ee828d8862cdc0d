package msg

import (
	"fmt"

	"github.com/google/uuid"
)

// Record is the flat wire form of a Modification shared by the JSON feed
// and the msgpack stream.
type Record struct {
	Sender string `json:"sender"`
	Kind   string `json:"kind"`
	Entity int    `json:"entity"`
	Layer  string `json:"layer"`
	Start  int    `json:"start"`
	Stop   int    `json:"stop"`
	Subset []int  `json:"subset,omitempty"`
}

// Record flattens m.
func (m Modification) Record() Record {
	r := Record{
		Sender: m.Sender.String(),
		Kind:   string(m.Kind),
		Entity: m.Entity,
		Layer:  m.Layer.String(),
	}
	if m.Location.IsSubset() {
		r.Subset = append([]int{}, m.Location.Subset...)
	} else {
		r.Start, r.Stop = m.Location.Start, m.Location.Stop
	}
	return r
}

// Modification rebuilds the record. A non nil Subset selects a subset
// location.
func (r Record) Modification() (Modification, error) {
	sender, err := uuid.Parse(r.Sender)
	if err != nil {
		return Modification{}, err
	}
	var layer Layer
	switch r.Layer {
	case "physical":
		layer = Physical
	case "abstract":
		layer = Abstract
	default:
		return Modification{}, fmt.Errorf("unknown layer %q", r.Layer)
	}
	loc := Range(r.Start, r.Stop)
	if r.Subset != nil {
		loc = Subset(r.Subset...)
	}
	return New(sender, Kind(r.Kind), r.Entity, loc, layer), nil
}
