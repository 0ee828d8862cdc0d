package lpdispatch

import (
	"fmt"

	"github.com/ohowland/cgc_ucblock/internal/pkg/lp"
	"github.com/ohowland/cgc_ucblock/internal/pkg/metrics"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
)

// terms collects the contribution of every unit to the requirement of kind
// at t.
func (p *Problem) terms(kind msg.Kind, t int) []lp.Term {
	var terms []lp.Term
	for _, u := range p.units {
		switch kind {
		case msg.ActivePowerDemand:
			terms = append(terms, u.PowerTerms(t)...)
		case msg.PrimaryDemand:
			terms = append(terms, u.PrimaryReserveTerms(t)...)
		case msg.SecondaryDemand:
			terms = append(terms, u.SecondaryReserveTerms(t)...)
		case msg.InertiaDemand:
			terms = append(terms, u.InertiaTerms(t)...)
		}
	}
	return terms
}

// systemRows adds, for every t,
//
//	sum PowerTerms(t)            =  ActivePowerDemand(t)
//	sum PrimaryReserveTerms(t)   >= PrimaryDemand(t)
//	sum SecondaryReserveTerms(t) >= SecondaryDemand(t)
//	sum InertiaTerms(t)          >= InertiaDemand(t)
//
// the last three only when their capability is on.
func (p *Problem) systemRows() error {
	mark := p.block.Mark()
	T := p.frame.Horizon()
	rows := make(map[msg.Kind][]*lp.Row)
	for _, kind := range requirementKinds {
		if !p.required(kind) {
			continue
		}
		rows[kind] = make([]*lp.Row, T)
		for t := 0; t < T; t++ {
			rhs := p.demand[kind][t]
			terms := p.terms(kind, t)
			if len(terms) == 0 && rhs != 0 {
				p.block.Truncate(mark)
				return fmt.Errorf("%s: no unit contributes to %s at t=%d", p.name, kind, t)
			}
			name := fmt.Sprintf("%s[%d]", kind, t)
			if kind == msg.ActivePowerDemand {
				rows[kind][t] = p.block.AddRow(lp.Equal(name, rhs, terms...))
				continue
			}
			rows[kind][t] = p.block.AddRow(lp.GreaterEqual(name, rhs, terms...))
		}
	}
	p.rows = rows
	metrics.RowsGenerated.WithLabelValues("System").Add(float64(len(rows) * T))
	return nil
}

// RequirementRow returns the system row of kind at t, nil before Build or
// when the capability is off.
func (p *Problem) RequirementRow(kind msg.Kind, t int) *lp.Row {
	p.mux.Lock()
	defer p.mux.Unlock()
	rows := p.rows[kind]
	if t < 0 || t >= len(rows) {
		return nil
	}
	return rows[t]
}

// Requirement returns the dense requirement series of kind.
func (p *Problem) Requirement(kind msg.Kind) []float64 {
	p.mux.Lock()
	defer p.mux.Unlock()
	return append([]float64(nil), p.demand[kind]...)
}

// SetRequirement edits a system requirement with the same policies units use.
func (p *Problem) SetRequirement(kind msg.Kind, values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.setRequirement(kind, values, loc, physical, abstract)
}

func (p *Problem) setRequirement(kind msg.Kind, values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	data, ok := p.demand[kind]
	if !ok {
		return fmt.Errorf("%s: unknown requirement %s", p.name, kind)
	}
	if loc.Empty() {
		return nil
	}
	if err := loc.Validate(len(data)); err != nil {
		return fmt.Errorf("%s: %s: %w", p.name, kind, err)
	}
	idx := loc.Indices()
	if len(values) != len(idx) && len(values) != 1 {
		return fmt.Errorf("%s: %s: %d values for %d indices", p.name, kind, len(values), len(idx))
	}
	next := make(map[int]float64, len(idx))
	for k, t := range idx {
		v := values[0]
		if len(values) > 1 {
			v = values[k]
		}
		if kind != msg.ActivePowerDemand && v < 0 {
			return unit.Inconsistent(p.name, string(kind), -1, t, "negative requirement %v", v)
		}
		next[t] = v
	}
	changed := 0
	for t, v := range next {
		if data[t] != v {
			changed++
		}
	}
	if changed == 0 {
		metrics.NoopEdits.WithLabelValues(string(kind)).Inc()
		return nil
	}
	if !physical.Commits() {
		return nil
	}
	for t, v := range next {
		data[t] = v
	}
	pushed := false
	if abstract.Commits() && p.rows[kind] != nil {
		for t := range next {
			p.rows[kind][t].SetRHS(data[t])
		}
		pushed = true
	}
	if pushed && abstract == unit.Notify {
		p.notify(kind, loc, msg.Abstract)
	}
	if physical == unit.Notify {
		p.notify(kind, loc, msg.Physical)
	}
	return nil
}

func (p *Problem) notify(kind msg.Kind, loc msg.Location, layer msg.Layer) {
	metrics.Modifications.WithLabelValues(string(kind), layer.String()).Inc()
	if dropped := p.publisher.Publish(msg.New(p.pid, kind, msg.NoEntity, loc, layer)); dropped > 0 {
		p.log.Warnw("[LP Dispatch] modification dropped by slow subscribers", "kind", kind, "dropped", dropped)
	}
}
