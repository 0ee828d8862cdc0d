// Package group is the hierarchical parameter container units are
// deserialized from and serialized to: named dimensions, scalar, vector and
// matrix variables, string attributes and nested sub-groups.
package group

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Reader is the read side units consume.
type Reader interface {
	ReadDim(name string) (int, bool)
	ReadScalar(name string) (float64, bool)
	ReadSeries(name string, expectedLen int) ([]float64, error)
	ReadMatrix(name string) (*mat.Dense, bool)
	ReadString(name string) (string, bool)
	Rank(name string) int
}

// Writer is the write side units produce on serialize.
type Writer interface {
	WriteDim(name string, n int)
	WriteScalar(name string, v float64)
	WriteSeries(name string, v []float64)
	WriteMatrix(name string, m *mat.Dense)
	WriteString(name, v string)
}

// Variable is a stored array. An empty Shape is a scalar.
type Variable struct {
	Shape []int     `json:"shape" bson:"shape"`
	Data  []float64 `json:"data" bson:"data"`
}

// Group is the in-memory implementation of Reader and Writer.
type Group struct {
	Name   string               `json:"name,omitempty" bson:"name,omitempty"`
	Dims   map[string]int       `json:"dims,omitempty" bson:"dims,omitempty"`
	Vars   map[string]*Variable `json:"vars,omitempty" bson:"vars,omitempty"`
	Attrs  map[string]string    `json:"attrs,omitempty" bson:"attrs,omitempty"`
	Groups []*Group             `json:"groups,omitempty" bson:"groups,omitempty"`
}

// New returns an empty group.
func New(name string) *Group {
	return &Group{
		Name:  name,
		Dims:  make(map[string]int),
		Vars:  make(map[string]*Variable),
		Attrs: make(map[string]string),
	}
}

// Sub returns the named sub-group, creating it when missing.
func (g *Group) Sub(name string) *Group {
	if c := g.Child(name); c != nil {
		return c
	}
	c := New(name)
	g.Groups = append(g.Groups, c)
	return c
}

// Child returns the named sub-group or nil.
func (g *Group) Child(name string) *Group {
	for _, c := range g.Groups {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Children returns the sub-groups in insertion order.
func (g *Group) Children() []*Group {
	return g.Groups
}

func (g *Group) init() {
	if g.Dims == nil {
		g.Dims = make(map[string]int)
	}
	if g.Vars == nil {
		g.Vars = make(map[string]*Variable)
	}
	if g.Attrs == nil {
		g.Attrs = make(map[string]string)
	}
}

// ReadDim returns the named dimension, falling back to an integral scalar.
func (g *Group) ReadDim(name string) (int, bool) {
	if n, ok := g.Dims[name]; ok {
		return n, true
	}
	if v, ok := g.ReadScalar(name); ok {
		return int(v), true
	}
	return 0, false
}

// ReadScalar returns a variable holding exactly one value.
func (g *Group) ReadScalar(name string) (float64, bool) {
	v, ok := g.Vars[name]
	if !ok || len(v.Data) != 1 {
		return 0, false
	}
	return v.Data[0], true
}

// Rank returns the number of dimensions of a variable, -1 when absent.
func (g *Group) Rank(name string) int {
	v, ok := g.Vars[name]
	if !ok {
		return -1
	}
	return len(v.Shape)
}

// ReadSeries returns the flattened values of a variable. An absent variable
// reads as empty. A positive expectedLen must match a non-empty variable.
func (g *Group) ReadSeries(name string, expectedLen int) ([]float64, error) {
	v, ok := g.Vars[name]
	if !ok || len(v.Data) == 0 {
		return nil, nil
	}
	if expectedLen > 0 && len(v.Data) != expectedLen {
		return nil, fmt.Errorf("%s: expected %d values, found %d", name, expectedLen, len(v.Data))
	}
	return append([]float64(nil), v.Data...), nil
}

// ReadMatrix returns a rank two variable. Scalars read as 1x1 and vectors as
// a single row.
func (g *Group) ReadMatrix(name string) (*mat.Dense, bool) {
	v, ok := g.Vars[name]
	if !ok || len(v.Data) == 0 {
		return nil, false
	}
	r, c := 1, len(v.Data)
	if len(v.Shape) == 2 {
		r, c = v.Shape[0], v.Shape[1]
	}
	if r*c != len(v.Data) {
		return nil, false
	}
	return mat.NewDense(r, c, append([]float64(nil), v.Data...)), true
}

// ReadString returns a string attribute.
func (g *Group) ReadString(name string) (string, bool) {
	s, ok := g.Attrs[name]
	return s, ok
}

// WriteDim stores a dimension.
func (g *Group) WriteDim(name string, n int) {
	g.init()
	g.Dims[name] = n
}

// WriteScalar stores a scalar variable.
func (g *Group) WriteScalar(name string, v float64) {
	g.init()
	g.Vars[name] = &Variable{Data: []float64{v}}
}

// WriteSeries stores a vector variable. Empty vectors are not written.
func (g *Group) WriteSeries(name string, v []float64) {
	g.init()
	if len(v) == 0 {
		delete(g.Vars, name)
		return
	}
	g.Vars[name] = &Variable{Shape: []int{len(v)}, Data: append([]float64(nil), v...)}
}

// WriteMatrix stores a matrix variable. A nil matrix is not written.
func (g *Group) WriteMatrix(name string, m *mat.Dense) {
	g.init()
	if m == nil || m.IsEmpty() {
		delete(g.Vars, name)
		return
	}
	r, c := m.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		data = append(data, m.RawRowView(i)...)
	}
	g.Vars[name] = &Variable{Shape: []int{r, c}, Data: data}
}

// WriteString stores a string attribute.
func (g *Group) WriteString(name, v string) {
	g.init()
	g.Attrs[name] = v
}
