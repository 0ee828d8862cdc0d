// Package registry builds unit models from their persisted type names.
package registry

import (
	"fmt"

	"github.com/ohowland/cgc_ucblock/internal/pkg/group"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit/battery"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit/hydro"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit/intermittent"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit/slack"
)

// New returns an empty unit of the given type name.
func New(kind, name string) (unit.Unit, error) {
	k, err := unit.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	switch k {
	case unit.Hydro:
		return hydro.New(name)
	case unit.Battery:
		return battery.New(name)
	case unit.Intermittent:
		return intermittent.New(name)
	case unit.Slack:
		return slack.New(name)
	}
	return nil, fmt.Errorf("no constructor for %v", k)
}

// Load deserializes every sub-group of g carrying a Type attribute, in
// document order. A sub-group without a Type is skipped.
func Load(g *group.Group) ([]unit.Unit, error) {
	var units []unit.Unit
	for _, sub := range g.Children() {
		kind, ok := sub.ReadString("Type")
		if !ok {
			continue
		}
		u, err := New(kind, sub.Name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sub.Name, err)
		}
		if err := u.Deserialize(sub); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}

// Save serializes units into sub-groups of g named after each unit.
func Save(g *group.Group, units []unit.Unit) error {
	for _, u := range units {
		if err := u.Serialize(g.Sub(u.Name())); err != nil {
			return fmt.Errorf("%s: %w", u.Name(), err)
		}
	}
	return nil
}
