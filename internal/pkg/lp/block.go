package lp

import "math"

// Block owns the variables, rows and objective one unit generates.
type Block struct {
	Name string
	vars []*Variable
	rows []*Row
	obj  Objective
}

// NewBlock returns an empty block.
func NewBlock(name string) *Block {
	return &Block{Name: name}
}

// AddVariable creates a variable with the given bounds.
func (b *Block) AddVariable(name string, lower, upper float64) *Variable {
	v := &Variable{Name: name, Lower: lower, Upper: upper}
	b.vars = append(b.vars, v)
	return v
}

// Variables returns the block's variables in creation order.
func (b *Block) Variables() []*Variable {
	return b.vars
}

// AddRow appends r and returns it.
func (b *Block) AddRow(r *Row) *Row {
	b.rows = append(b.rows, r)
	return r
}

// Rows returns the block's rows in creation order.
func (b *Block) Rows() []*Row {
	return b.rows
}

// Objective returns the block's objective.
func (b *Block) Objective() *Objective {
	return &b.obj
}

// Mark is a rollback point for Truncate.
type Mark struct {
	vars, rows int
}

// Mark records the current sizes of the block.
func (b *Block) Mark() Mark {
	return Mark{len(b.vars), len(b.rows)}
}

// Truncate discards everything created after m.
func (b *Block) Truncate(m Mark) {
	for i := m.vars; i < len(b.vars); i++ {
		b.vars[i] = nil
	}
	for i := m.rows; i < len(b.rows); i++ {
		b.rows[i] = nil
	}
	b.vars = b.vars[:m.vars]
	b.rows = b.rows[:m.rows]
}

// Violation describes one bound or row violated by the current values.
type Violation struct {
	Name   string
	Amount float64
}

// Violations lists every variable bound and row violated by more than tol.
func (b *Block) Violations(tol float64) []Violation {
	var out []Violation
	for _, v := range b.vars {
		amount := math.Max(v.Lower-v.Value, v.Value-v.Upper)
		if amount > tol {
			out = append(out, Violation{v.Name, amount})
		}
	}
	for _, r := range b.rows {
		if amount := r.Violation(); amount > tol {
			out = append(out, Violation{r.Name, amount})
		}
	}
	return out
}

// IsFeasible reports whether the current values satisfy every bound and row
// within tol.
func (b *Block) IsFeasible(tol float64) bool {
	return len(b.Violations(tol)) == 0
}

// Stats summarises the size of a block.
type Stats struct {
	Variables  int
	Rows       int
	Equalities int
	Nonzeros   int
}

// Stats returns the size of the block.
func (b *Block) Stats() Stats {
	s := Stats{Variables: len(b.vars), Rows: len(b.rows)}
	for _, r := range b.rows {
		if r.IsEquality() {
			s.Equalities++
		}
		s.Nonzeros += len(r.terms)
	}
	return s
}
