package battery

import (
	"github.com/ohowland/cgc_ucblock/internal/pkg/metrics"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
)

// SetInitialStorage sets the boundary condition of the storage level.
func (u *Unit) SetInitialStorage(s unit.InitialState, physical, abstract unit.Policy) error {
	if s == u.initialStorage {
		metrics.NoopEdits.WithLabelValues(string(msg.InitialStorage)).Inc()
		return nil
	}
	if !s.IsCyclical() && s.Value() < 0 {
		return u.Inconsistent("InitialStorage", -1, -1, "negative fixed storage %v", s.Value())
	}
	old := u.initialStorage
	return u.Commit(unit.Change{
		Kind:     msg.InitialStorage,
		Entity:   msg.NoEntity,
		Location: msg.Range(0, 1),
		Stage:    unit.ConstraintsReady,
		Write:    func() { u.initialStorage = s },
		Undo:     func() { u.initialStorage = old },
		Push: func() error {
			if u.Horizon() == 0 {
				return nil
			}
			row := u.balance[0]
			row.Reset(u.balanceTerms(0)...)
			row.SetRHS(u.balanceRHS(0))
			return nil
		},
	}, physical, abstract)
}

// SetInitialPower sets the power before t=0, used by the t=0 ramp rows.
func (u *Unit) SetInitialPower(v float64, physical, abstract unit.Policy) error {
	return u.SetScalar(unit.Scalar{
		Kind:  msg.InitialPower,
		Value: &u.initialPower,
		Stage: unit.ConstraintsReady,
		Push: func() error {
			if r := u.RampUpRow(0); r != nil {
				r.SetRHS(u.rampUpRHS(0))
			}
			if r := u.RampDownRow(0); r != nil {
				r.SetRHS(u.rampDownRHS(0))
			}
			return nil
		},
	}, v, physical, abstract)
}

// SetMinPower sets the lower power bound, scaled by kappa in its row.
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

// SetMaxPower sets the upper power bound, scaled by kappa in its row.
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

// SetMinStorage sets the lower storage bound, a kappa scaled variable bound.
func (u *Unit) SetMinStorage(values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	return u.Set(unit.Field{
		Kind:   msg.MinStorage,
		Entity: msg.NoEntity,
		Data:   u.minStorage,
		Stage:  unit.VariablesReady,
		Check: func(t int, v float64) error {
			if v < 0 || v > u.maxStorage[t] {
				return u.Inconsistent("MinStorage", -1, t, "%v outside [0, %v]", v, u.maxStorage[t])
			}
			return nil
		},
		Push: func(idx []int) error {
			for _, t := range idx {
				u.storage[t].Lower = u.kappa * u.minStorage[t]
			}
			return nil
		},
	}, values, loc, physical, abstract)
}

// SetMaxStorage sets the upper storage bound, a kappa scaled variable bound.
func (u *Unit) SetMaxStorage(values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	return u.Set(unit.Field{
		Kind:   msg.MaxStorage,
		Entity: msg.NoEntity,
		Data:   u.maxStorage,
		Stage:  unit.VariablesReady,
		Check: func(t int, v float64) error {
			if v < u.minStorage[t] {
				return u.Inconsistent("MaxStorage", -1, t, "%v below MinStorage %v", v, u.minStorage[t])
			}
			return nil
		},
		Push: func(idx []int) error {
			for _, t := range idx {
				u.storage[t].Upper = u.kappa * u.maxStorage[t]
			}
			return nil
		},
	}, values, loc, physical, abstract)
}

// SetCost sets the cost per unit of energy moved.
func (u *Unit) SetCost(values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	return u.Set(unit.Field{
		Kind:   msg.Cost,
		Entity: msg.NoEntity,
		Data:   u.cost,
		Stage:  unit.ObjectiveReady,
		Push: func(idx []int) error {
			obj := u.Block().Objective()
			for _, t := range idx {
				c := u.scale * u.cost[t]
				if err := obj.SetCoefficient(u.intake[t], c); err != nil {
					return err
				}
				if err := obj.SetCoefficient(u.outtake[t], c); err != nil {
					return err
				}
			}
			return nil
		},
	}, values, loc, physical, abstract)
}

// SetKappa rescales the power rows, the reserve caps and the storage bounds.
func (u *Unit) SetKappa(v float64, physical, abstract unit.Policy) error {
	return u.SetScalar(unit.Scalar{
		Kind:  msg.Kappa,
		Value: &u.kappa,
		Stage: unit.VariablesReady,
		Check: func(v float64) error {
			if v < 0 {
				return u.Inconsistent("Kappa", -1, -1, "negative factor %v", v)
			}
			return nil
		},
		Push: func() error {
			for t, s := range u.storage {
				s.Lower, s.Upper = u.kappa*u.minStorage[t], u.kappa*u.maxStorage[t]
			}
			if !u.Built(unit.ConstraintsReady) {
				return nil
			}
			for t := range u.minPowerRow {
				u.minPowerRow[t].SetRHS(u.kappa * u.minPower[t])
				u.maxPowerRow[t].SetRHS(u.kappa * u.maxPower[t])
			}
			for t, r := range u.primaryCap {
				r.SetRHS(u.kappa * u.maxPrimary[t])
			}
			for t, r := range u.secondaryCap {
				r.SetRHS(u.kappa * u.maxSecondary[t])
			}
			return nil
		},
	}, v, physical, abstract)
}

// SetScale rescales the objective coefficients.
func (u *Unit) SetScale(v float64, physical, abstract unit.Policy) error {
	return u.SetScalar(unit.Scalar{
		Kind:  msg.Scale,
		Value: &u.scale,
		Stage: unit.ObjectiveReady,
		Push: func() error {
			obj := u.Block().Objective()
			for t := range u.cost {
				c := u.scale * u.cost[t]
				if err := obj.SetCoefficient(u.intake[t], c); err != nil {
					return err
				}
				if err := obj.SetCoefficient(u.outtake[t], c); err != nil {
					return err
				}
			}
			return nil
		},
	}, v, physical, abstract)
}
