package lpdispatch

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit/battery"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit/hydro"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit/intermittent"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit/slack"
)

// Edit is a run-time change addressed to a unit, or to the problem itself
// when Unit is the problem PID. Entity selects the reservoir or arc of hydro
// fields and is ignored elsewhere. Initial state kinds carry sentinel encoded
// values: negative means cyclical.
type Edit struct {
	Unit     uuid.UUID
	Kind     msg.Kind
	Entity   int
	Values   []float64
	Location msg.Location
	Physical unit.Policy
	Abstract unit.Policy
}

type seriesSetter func([]float64, msg.Location, unit.Policy, unit.Policy) error
type entitySetter func(int, []float64, msg.Location, unit.Policy, unit.Policy) error
type scalarSetter func(float64, unit.Policy, unit.Policy) error
type stateSetter func([]unit.InitialState, msg.Location, unit.Policy, unit.Policy) error

type setters struct {
	series map[msg.Kind]seriesSetter
	entity map[msg.Kind]entitySetter
	scalar map[msg.Kind]scalarSetter
	state  map[msg.Kind]stateSetter
}

func settersOf(u unit.Unit) setters {
	switch u := u.(type) {
	case *hydro.Unit:
		return setters{
			series: map[msg.Kind]seriesSetter{
				msg.InitialFlowRate: u.SetInitialFlowRate,
				msg.LinearTerm:      u.SetLinearTerm,
				msg.ConstantTerm:    u.SetConstantTerm,
			},
			entity: map[msg.Kind]entitySetter{
				msg.Inflow:          u.SetInflow,
				msg.MinVolumetric:   u.SetMinVolumetric,
				msg.MaxVolumetric:   u.SetMaxVolumetric,
				msg.MinFlow:         u.SetMinFlow,
				msg.MaxFlow:         u.SetMaxFlow,
				msg.MinPower:        u.SetMinPower,
				msg.MaxPower:        u.SetMaxPower,
				msg.DeltaRampUp:     u.SetDeltaRampUp,
				msg.DeltaRampDown:   u.SetDeltaRampDown,
				msg.PrimaryRho:      u.SetPrimaryRho,
				msg.SecondaryRho:    u.SetSecondaryRho,
				msg.ActivePowerCost: u.SetActivePowerCost,
			},
			scalar: map[msg.Kind]scalarSetter{
				msg.Kappa: u.SetKappa,
				msg.Scale: u.SetScale,
			},
			state: map[msg.Kind]stateSetter{
				msg.InitialVolume: u.SetInitialVolume,
			},
		}
	case *battery.Unit:
		return setters{
			series: map[msg.Kind]seriesSetter{
				msg.MinPower:   u.SetMinPower,
				msg.MaxPower:   u.SetMaxPower,
				msg.MinStorage: u.SetMinStorage,
				msg.MaxStorage: u.SetMaxStorage,
				msg.Cost:       u.SetCost,
			},
			scalar: map[msg.Kind]scalarSetter{
				msg.Kappa:        u.SetKappa,
				msg.Scale:        u.SetScale,
				msg.InitialPower: u.SetInitialPower,
			},
			state: map[msg.Kind]stateSetter{
				msg.InitialStorage: func(s []unit.InitialState, loc msg.Location, physical, abstract unit.Policy) error {
					if loc.Empty() {
						return nil
					}
					if len(s) != 1 {
						return fmt.Errorf("%s: %s takes one value, got %d", u.Name(), msg.InitialStorage, len(s))
					}
					return u.SetInitialStorage(s[0], physical, abstract)
				},
			},
		}
	case *intermittent.Unit:
		return setters{
			series: map[msg.Kind]seriesSetter{
				msg.MinPower:        u.SetMinPower,
				msg.MaxPower:        u.SetMaxPower,
				msg.ActivePowerCost: u.SetActivePowerCost,
			},
			scalar: map[msg.Kind]scalarSetter{
				msg.Kappa: u.SetKappa,
				msg.Scale: u.SetScale,
			},
		}
	case *slack.Unit:
		return setters{
			series: map[msg.Kind]seriesSetter{
				msg.MinPower:        u.SetMinPower,
				msg.MaxPower:        u.SetMaxPower,
				msg.ActivePowerCost: u.SetActivePowerCost,
				msg.PrimaryCost:     u.SetPrimaryCost,
				msg.SecondaryCost:   u.SetSecondaryCost,
			},
			scalar: map[msg.Kind]scalarSetter{
				msg.Scale: u.SetScale,
			},
		}
	}
	return setters{}
}

// Apply routes e to the matching setter. Edits are applied one at a time.
func (p *Problem) Apply(e Edit) error {
	p.mux.Lock()
	defer p.mux.Unlock()

	if e.Unit == p.pid {
		return p.setRequirement(e.Kind, e.Values, e.Location, e.Physical, e.Abstract)
	}
	u, ok := p.index[e.Unit]
	if !ok {
		return fmt.Errorf("%s: no unit %s", p.name, e.Unit)
	}
	s := settersOf(u)
	if f, ok := s.series[e.Kind]; ok {
		return f(e.Values, e.Location, e.Physical, e.Abstract)
	}
	if f, ok := s.entity[e.Kind]; ok {
		return f(e.Entity, e.Values, e.Location, e.Physical, e.Abstract)
	}
	if f, ok := s.scalar[e.Kind]; ok {
		if len(e.Values) != 1 {
			return fmt.Errorf("%s: %s takes one value, got %d", u.Name(), e.Kind, len(e.Values))
		}
		return f(e.Values[0], e.Physical, e.Abstract)
	}
	if f, ok := s.state[e.Kind]; ok {
		states := make([]unit.InitialState, len(e.Values))
		for i, v := range e.Values {
			states[i] = unit.FromSentinel(v)
		}
		return f(states, e.Location, e.Physical, e.Abstract)
	}
	return fmt.Errorf("%s: %s has no editable field %s", p.name, u.Name(), e.Kind)
}

// Publishers returns the problem publisher followed by every unit publisher.
func (p *Problem) Publishers() []msg.Publisher {
	p.mux.Lock()
	defer p.mux.Unlock()
	pubs := []msg.Publisher{p.publisher}
	for _, u := range p.units {
		pubs = append(pubs, u.Publisher())
	}
	return pubs
}
