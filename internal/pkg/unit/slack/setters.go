package slack

import (
	"github.com/ohowland/cgc_ucblock/internal/pkg/lp"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
)

// SetMinPower moves the lower bound of the power variables.
func (u *Unit) SetMinPower(values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	return u.Set(unit.Field{
		Kind:   msg.MinPower,
		Entity: msg.NoEntity,
		Data:   u.minPower,
		Stage:  unit.VariablesReady,
		Check: func(t int, v float64) error {
			if v > u.maxPower[t] {
				return u.Inconsistent("MinPower", -1, t, "%v above MaxPower %v", v, u.maxPower[t])
			}
			return nil
		},
		Push: func(idx []int) error {
			for _, t := range idx {
				u.power[t].Lower = u.minPower[t]
			}
			return nil
		},
	}, values, loc, physical, abstract)
}

// SetMaxPower moves the upper bound of the power variables.
func (u *Unit) SetMaxPower(values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	return u.Set(unit.Field{
		Kind:   msg.MaxPower,
		Entity: msg.NoEntity,
		Data:   u.maxPower,
		Stage:  unit.VariablesReady,
		Check: func(t int, v float64) error {
			if v < u.minPower[t] {
				return u.Inconsistent("MaxPower", -1, t, "%v below MinPower %v", v, u.minPower[t])
			}
			return nil
		},
		Push: func(idx []int) error {
			for _, t := range idx {
				u.power[t].Upper = u.maxPower[t]
			}
			return nil
		},
	}, values, loc, physical, abstract)
}

func (u *Unit) costField(kind msg.Kind, data []float64, vars func() []*lp.Variable) unit.Field {
	return unit.Field{
		Kind:   kind,
		Entity: msg.NoEntity,
		Data:   data,
		Stage:  unit.ObjectiveReady,
		Push: func(idx []int) error {
			v := vars()
			if v == nil {
				return nil
			}
			obj := u.Block().Objective()
			for _, t := range idx {
				if err := obj.SetCoefficient(v[t], u.scale*data[t]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// SetActivePowerCost sets the cost of slack power.
func (u *Unit) SetActivePowerCost(values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	f := u.costField(msg.ActivePowerCost, u.cost, func() []*lp.Variable { return u.power })
	return u.Set(f, values, loc, physical, abstract)
}

// SetPrimaryCost sets the cost of slack primary reserve.
func (u *Unit) SetPrimaryCost(values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	f := u.costField(msg.PrimaryCost, u.primaryCost, func() []*lp.Variable { return u.primary })
	return u.Set(f, values, loc, physical, abstract)
}

// SetSecondaryCost sets the cost of slack secondary reserve.
func (u *Unit) SetSecondaryCost(values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	f := u.costField(msg.SecondaryCost, u.secondaryCost, func() []*lp.Variable { return u.secondary })
	return u.Set(f, values, loc, physical, abstract)
}

// SetScale rescales every objective coefficient.
func (u *Unit) SetScale(v float64, physical, abstract unit.Policy) error {
	return u.SetScalar(unit.Scalar{
		Kind:  msg.Scale,
		Value: &u.scale,
		Stage: unit.ObjectiveReady,
		Push: func() error {
			obj := u.Block().Objective()
			for _, p := range []struct {
				vars []*lp.Variable
				cost []float64
			}{{u.power, u.cost}, {u.primary, u.primaryCost}, {u.secondary, u.secondaryCost}} {
				for t, v := range p.vars {
					if err := obj.SetCoefficient(v, u.scale*p.cost[t]); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}, v, physical, abstract)
}
