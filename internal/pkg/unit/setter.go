package unit

import (
	"fmt"
	"sort"

	"github.com/ohowland/cgc_ucblock/internal/pkg/metrics"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
)

// Field is one mutable physical series and the abstract artifacts built from
// it. Push must only touch the artifacts of the given indices.
type Field struct {
	Kind   msg.Kind
	Entity int
	Data   []float64
	// Stage is the lifecycle state at which the dependent artifacts exist.
	Stage Stage
	// Check validates a candidate value at index i before anything changes.
	Check func(i int, v float64) error
	// Push propagates Data at idx into the live abstract artifacts.
	Push func(idx []int) error
}

// Change is a generic committed edit used by setters that do not map onto a
// float series, such as a switch between fixed and cyclical initial states.
type Change struct {
	Kind     msg.Kind
	Entity   int
	Location msg.Location
	Stage    Stage
	Write    func()
	Undo     func()
	Push     func() error
}

// Set runs the duality protocol over f for values at loc. values holds one
// value per selected index, or a single value applied to all of them.
//
//  1. an empty loc, or values equal to the current data, is a no-op
//  2. a committing physical policy writes the data
//  3. a committing abstract policy then pushes the change into already
//     generated artifacts, touching only the indices in loc
//  4. Notify policies emit a Modification per layer
func (b *Base) Set(f Field, values []float64, loc msg.Location, physical, abstract Policy) error {
	if loc.Empty() {
		return nil
	}
	if err := loc.Validate(len(f.Data)); err != nil {
		return fmt.Errorf("%s: %s: %w", b.name, f.Kind, err)
	}
	idx := loc.Indices()
	if len(values) != len(idx) && len(values) != 1 {
		return fmt.Errorf("%s: %s: %d values for %d indices", b.name, f.Kind, len(values), len(idx))
	}

	next := make(map[int]float64, len(idx))
	for k, i := range idx {
		v := values[0]
		if len(values) > 1 {
			v = values[k]
		}
		next[i] = v
	}
	changed := make([]int, 0, len(next))
	for i, v := range next {
		if f.Data[i] != v {
			changed = append(changed, i)
		}
	}
	if len(changed) == 0 {
		metrics.NoopEdits.WithLabelValues(string(f.Kind)).Inc()
		return nil
	}
	sort.Ints(changed)
	if f.Check != nil {
		for _, i := range changed {
			if err := f.Check(i, next[i]); err != nil {
				return err
			}
		}
	}

	old := make([]float64, len(changed))
	var push func() error
	if f.Push != nil {
		push = func() error { return f.Push(changed) }
	}
	return b.Commit(Change{
		Kind:     f.Kind,
		Entity:   f.Entity,
		Location: loc.Sorted(),
		Stage:    f.Stage,
		Write: func() {
			for k, i := range changed {
				old[k] = f.Data[i]
				f.Data[i] = next[i]
			}
		},
		Undo: func() {
			for k, i := range changed {
				f.Data[i] = old[k]
			}
		},
		Push: push,
	}, physical, abstract)
}

// Scalar is a unit-wide mutable value and its abstract linkage.
type Scalar struct {
	Kind  msg.Kind
	Value *float64
	Stage Stage
	Check func(v float64) error
	Push  func() error
}

// SetScalar runs the duality protocol over a unit-wide value.
func (b *Base) SetScalar(f Scalar, v float64, physical, abstract Policy) error {
	if *f.Value == v {
		metrics.NoopEdits.WithLabelValues(string(f.Kind)).Inc()
		return nil
	}
	if f.Check != nil {
		if err := f.Check(v); err != nil {
			return err
		}
	}
	old := *f.Value
	return b.Commit(Change{
		Kind:     f.Kind,
		Entity:   msg.NoEntity,
		Location: msg.Range(0, 1),
		Stage:    f.Stage,
		Write:    func() { *f.Value = v },
		Undo:     func() { *f.Value = old },
		Push:     f.Push,
	}, physical, abstract)
}

// Commit applies steps 2 to 4 of the duality protocol to a validated change.
// A failed push restores the physical data and re-pushes it, so no partial
// state survives.
func (b *Base) Commit(c Change, physical, abstract Policy) error {
	if !physical.Commits() {
		return nil
	}
	c.Write()
	if abstract.Commits() && c.Push != nil && b.lifecycle.Reached(c.Stage) {
		if err := c.Push(); err != nil {
			c.Undo()
			if rerr := c.Push(); rerr != nil {
				b.log.Errorw("[Unit] rollback push failed", "kind", c.Kind, "error", rerr)
			}
			return fmt.Errorf("%s: %s: %w", b.name, c.Kind, err)
		}
		if abstract == Notify {
			b.Notify(c.Kind, c.Entity, c.Location, msg.Abstract)
		}
	}
	if physical == Notify {
		b.Notify(c.Kind, c.Entity, c.Location, msg.Physical)
	}
	return nil
}
