package group

import (
	"encoding/json"
	"io/ioutil"
)

// Load reads a JSON group document from path.
func Load(path string) (*Group, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	g := New("")
	if err := json.Unmarshal(raw, g); err != nil {
		return nil, err
	}
	g.Normalize()
	return g, nil
}

// Normalize allocates the maps of g and of every sub-group left nil by a
// decoder.
func (g *Group) Normalize() {
	g.init()
	for _, c := range g.Groups {
		c.Normalize()
	}
}

// Save writes g to path as an indented JSON document.
func (g *Group) Save(path string) error {
	raw, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, raw, 0644)
}
