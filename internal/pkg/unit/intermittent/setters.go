package intermittent

import (
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
)

// SetMaxPower updates the forecast availability.
func (u *Unit) SetMaxPower(values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	return u.Set(unit.Field{
		Kind:   msg.MaxPower,
		Entity: msg.NoEntity,
		Data:   u.maxPower,
		Stage:  unit.ConstraintsReady,
		Check: func(t int, v float64) error {
			if v < u.minPower[t] {
				return u.Inconsistent("MaxPower", -1, t, "%v below MinPower %v", v, u.minPower[t])
			}
			return nil
		},
		Push: func(idx []int) error {
			for _, t := range idx {
				u.maxPowerRow[t].SetRHS(u.kappa * u.maxPower[t])
			}
			return nil
		},
	}, values, loc, physical, abstract)
}

// SetKappa rescales both power rows.
func (u *Unit) SetKappa(v float64, physical, abstract unit.Policy) error {
	return u.SetScalar(unit.Scalar{
		Kind:  msg.Kappa,
		Value: &u.kappa,
		Stage: unit.ConstraintsReady,
		Check: func(v float64) error {
			if v < 0 {
				return u.Inconsistent("Kappa", -1, -1, "negative factor %v", v)
			}
			return nil
		},
		Push: func() error {
			for t := range u.maxPowerRow {
				u.minPowerRow[t].SetRHS(u.kappa * u.minPower[t])
				u.maxPowerRow[t].SetRHS(u.kappa * u.maxPower[t])
			}
			return nil
		},
	}, v, physical, abstract)
}

// SetScale rescales the objective.
func (u *Unit) SetScale(v float64, physical, abstract unit.Policy) error {
	return u.SetScalar(unit.Scalar{
		Kind:  msg.Scale,
		Value: &u.scale,
		Stage: unit.ObjectiveReady,
		Push: func() error {
			obj := u.Block().Objective()
			for t, p := range u.power {
				if err := obj.SetCoefficient(p, u.scale*u.cost[t]); err != nil {
					return err
				}
			}
			return nil
		},
	}, v, physical, abstract)
}

// SetMinPower updates the lower power bound.
func (u *Unit) SetMinPower(values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	return u.Set(unit.Field{
		Kind:   msg.MinPower,
		Entity: msg.NoEntity,
		Data:   u.minPower,
		Stage:  unit.ConstraintsReady,
		Check: func(t int, v float64) error {
			if v > u.maxPower[t] {
				return u.Inconsistent("MinPower", -1, t, "%v above MaxPower %v", v, u.maxPower[t])
			}
			return nil
		},
		Push: func(idx []int) error {
			for _, t := range idx {
				u.minPowerRow[t].SetRHS(u.kappa * u.minPower[t])
			}
			return nil
		},
	}, values, loc, physical, abstract)
}

// SetActivePowerCost updates the per-step cost of produced power.
func (u *Unit) SetActivePowerCost(values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	return u.Set(unit.Field{
		Kind:   msg.ActivePowerCost,
		Entity: msg.NoEntity,
		Data:   u.cost,
		Stage:  unit.ObjectiveReady,
		Push: func(idx []int) error {
			obj := u.Block().Objective()
			for _, t := range idx {
				if err := obj.SetCoefficient(u.power[t], u.scale*u.cost[t]); err != nil {
					return err
				}
			}
			return nil
		},
	}, values, loc, physical, abstract)
}
