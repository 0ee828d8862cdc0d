package hydro

import (
	"fmt"
	"sort"

	"github.com/ohowland/cgc_ucblock/internal/pkg/lp"
	"github.com/ohowland/cgc_ucblock/internal/pkg/metrics"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
)

func (u *Unit) reservoir(n int) error {
	if n < 0 || n >= u.reservoirs {
		return fmt.Errorf("%s: reservoir %d outside [0, %d)", u.Name(), n, u.reservoirs)
	}
	return nil
}

func (u *Unit) arc(l int) error {
	if l < 0 || l >= u.arcs {
		return fmt.Errorf("%s: arc %d outside [0, %d)", u.Name(), l, u.arcs)
	}
	return nil
}

// SetInitialVolume sets the boundary condition of the reservoirs in loc. A
// switch between Fixed and Cyclical relinks the t=0 balance row to V(n,T-1).
func (u *Unit) SetInitialVolume(values []unit.InitialState, loc msg.Location, physical, abstract unit.Policy) error {
	if loc.Empty() {
		return nil
	}
	if err := loc.Validate(u.reservoirs); err != nil {
		return fmt.Errorf("%s: %s: %w", u.Name(), msg.InitialVolume, err)
	}
	idx := loc.Indices()
	if len(values) != len(idx) && len(values) != 1 {
		return fmt.Errorf("%s: %s: %d values for %d indices", u.Name(), msg.InitialVolume, len(values), len(idx))
	}
	next := make(map[int]unit.InitialState, len(idx))
	for k, n := range idx {
		v := values[0]
		if len(values) > 1 {
			v = values[k]
		}
		if !v.IsCyclical() && v.Value() < 0 {
			return u.Inconsistent("InitialVolumetric", n, -1, "negative fixed volume %v", v.Value())
		}
		next[n] = v
	}
	var changed []int
	for n, v := range next {
		if u.initialVolume[n] != v {
			changed = append(changed, n)
		}
	}
	if len(changed) == 0 {
		metrics.NoopEdits.WithLabelValues(string(msg.InitialVolume)).Inc()
		return nil
	}
	sort.Ints(changed)

	old := make([]unit.InitialState, len(changed))
	return u.Commit(unit.Change{
		Kind:     msg.InitialVolume,
		Entity:   msg.NoEntity,
		Location: loc.Sorted(),
		Stage:    unit.ConstraintsReady,
		Write: func() {
			for k, n := range changed {
				old[k] = u.initialVolume[n]
				u.initialVolume[n] = next[n]
			}
		},
		Undo: func() {
			for k, n := range changed {
				u.initialVolume[n] = old[k]
			}
		},
		Push: func() error {
			if u.Horizon() == 0 {
				return nil
			}
			for _, n := range changed {
				row := u.balance[n][0]
				if u.cyclicRow(n) != u.initialVolume[n].IsCyclical() {
					row.Reset(u.balanceTerms(n, 0)...)
				}
				row.SetRHS(u.balanceRHS(n, 0))
			}
			return nil
		},
	}, physical, abstract)
}

// cyclicRow reports whether the t=0 balance row of n is linked to V(n,T-1).
func (u *Unit) cyclicRow(n int) bool {
	T := u.Horizon()
	row := u.balance[n][0]
	if T > 1 {
		return row.Has(u.volume[n][T-1])
	}
	c, _ := row.Coefficient(u.volume[n][0])
	return c == 0
}

// SetInflow sets A(n,t) for t in loc.
func (u *Unit) SetInflow(n int, values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	if err := u.reservoir(n); err != nil {
		return err
	}
	return u.Set(unit.Field{
		Kind:   msg.Inflow,
		Entity: n,
		Data:   rowView(u.inflow, n),
		Stage:  unit.ConstraintsReady,
		Push: func(idx []int) error {
			for _, t := range idx {
				u.balance[n][t].SetRHS(u.balanceRHS(n, t))
			}
			return nil
		},
	}, values, loc, physical, abstract)
}

// SetMinVolumetric sets MinV(n,t), the lower bound of V(n,t).
func (u *Unit) SetMinVolumetric(n int, values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	if err := u.reservoir(n); err != nil {
		return err
	}
	return u.Set(unit.Field{
		Kind:   msg.MinVolumetric,
		Entity: n,
		Data:   rowView(u.minVolume, n),
		Stage:  unit.VariablesReady,
		Check: func(t int, v float64) error {
			if v < 0 || v > u.maxVolume.At(n, t) {
				return u.Inconsistent("MinVolumetric", n, t, "%v outside [0, %v]", v, u.maxVolume.At(n, t))
			}
			return nil
		},
		Push: func(idx []int) error {
			for _, t := range idx {
				u.volume[n][t].Lower = u.minVolume.At(n, t)
			}
			return nil
		},
	}, values, loc, physical, abstract)
}

// SetMaxVolumetric sets MaxV(n,t), the upper bound of V(n,t).
func (u *Unit) SetMaxVolumetric(n int, values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	if err := u.reservoir(n); err != nil {
		return err
	}
	return u.Set(unit.Field{
		Kind:   msg.MaxVolumetric,
		Entity: n,
		Data:   rowView(u.maxVolume, n),
		Stage:  unit.VariablesReady,
		Check: func(t int, v float64) error {
			if v < u.minVolume.At(n, t) {
				return u.Inconsistent("MaxVolumetric", n, t, "%v below MinVolumetric %v", v, u.minVolume.At(n, t))
			}
			return nil
		},
		Push: func(idx []int) error {
			for _, t := range idx {
				u.volume[n][t].Upper = u.maxVolume.At(n, t)
			}
			return nil
		},
	}, values, loc, physical, abstract)
}

// SetMinFlow sets MinF(l,t). The new range must keep the arc's class.
func (u *Unit) SetMinFlow(l int, values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	if err := u.arc(l); err != nil {
		return err
	}
	return u.Set(unit.Field{
		Kind:   msg.MinFlow,
		Entity: l,
		Data:   rowView(u.minFlow, l),
		Stage:  unit.VariablesReady,
		Check: func(t int, v float64) error {
			if hi := u.maxFlow.At(l, t); !fits(u.class[l], v, hi) {
				return u.Inconsistent("MinFlow", l, t, "range [%v, %v] invalid for a %s arc", v, hi, u.class[l])
			}
			return nil
		},
		Push: func(idx []int) error {
			for _, t := range idx {
				u.flow[l][t].Lower = u.minFlow.At(l, t)
			}
			return nil
		},
	}, values, loc, physical, abstract)
}

// SetMaxFlow sets MaxF(l,t). The new range must keep the arc's class.
func (u *Unit) SetMaxFlow(l int, values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	if err := u.arc(l); err != nil {
		return err
	}
	return u.Set(unit.Field{
		Kind:   msg.MaxFlow,
		Entity: l,
		Data:   rowView(u.maxFlow, l),
		Stage:  unit.VariablesReady,
		Check: func(t int, v float64) error {
			if lo := u.minFlow.At(l, t); !fits(u.class[l], lo, v) {
				return u.Inconsistent("MaxFlow", l, t, "range [%v, %v] invalid for a %s arc", lo, v, u.class[l])
			}
			return nil
		},
		Push: func(idx []int) error {
			for _, t := range idx {
				u.flow[l][t].Upper = u.maxFlow.At(l, t)
			}
			return nil
		},
	}, values, loc, physical, abstract)
}

// SetMinPower sets MinP(l,t), scaled by kappa in the lower power row.
func (u *Unit) SetMinPower(l int, values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	if err := u.arc(l); err != nil {
		return err
	}
	return u.Set(unit.Field{
		Kind:   msg.MinPower,
		Entity: l,
		Data:   rowView(u.minPower, l),
		Stage:  unit.ConstraintsReady,
		Check: func(t int, v float64) error {
			if v > u.maxPower.At(l, t) {
				return u.Inconsistent("MinPower", l, t, "%v above MaxPower %v", v, u.maxPower.At(l, t))
			}
			return nil
		},
		Push: func(idx []int) error {
			for _, t := range idx {
				if r := u.minPowerRow[l][t]; r != nil {
					r.SetRHS(u.kappa * u.minPower.At(l, t))
				}
			}
			return nil
		},
	}, values, loc, physical, abstract)
}

// SetMaxPower sets MaxP(l,t), scaled by kappa in the upper power row.
func (u *Unit) SetMaxPower(l int, values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	if err := u.arc(l); err != nil {
		return err
	}
	return u.Set(unit.Field{
		Kind:   msg.MaxPower,
		Entity: l,
		Data:   rowView(u.maxPower, l),
		Stage:  unit.ConstraintsReady,
		Check: func(t int, v float64) error {
			if v < u.minPower.At(l, t) {
				return u.Inconsistent("MaxPower", l, t, "%v below MinPower %v", v, u.minPower.At(l, t))
			}
			return nil
		},
		Push: func(idx []int) error {
			for _, t := range idx {
				if r := u.maxPowerRow[l][t]; r != nil {
					r.SetRHS(u.kappa * u.maxPower.At(l, t))
				}
			}
			return nil
		},
	}, values, loc, physical, abstract)
}

// SetDeltaRampUp sets the upward ramp limit of arc l. Units loaded without
// ramp data have no ramp rows to edit.
func (u *Unit) SetDeltaRampUp(l int, values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	if err := u.arc(l); err != nil {
		return err
	}
	if u.rampUp == nil {
		return fmt.Errorf("%s: no DeltaRampUp data loaded", u.Name())
	}
	return u.Set(unit.Field{
		Kind:   msg.DeltaRampUp,
		Entity: l,
		Data:   rowView(u.rampUp, l),
		Stage:  unit.ConstraintsReady,
		Check:  nonNegative(u, "DeltaRampUp", l),
		Push: func(idx []int) error {
			for _, t := range idx {
				if r := u.rampUpRow[l][t]; r != nil {
					r.SetRHS(u.rampUpRHS(l, t))
				}
			}
			return nil
		},
	}, values, loc, physical, abstract)
}

// SetDeltaRampDown sets the downward ramp limit of arc l.
func (u *Unit) SetDeltaRampDown(l int, values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	if err := u.arc(l); err != nil {
		return err
	}
	if u.rampDown == nil {
		return fmt.Errorf("%s: no DeltaRampDown data loaded", u.Name())
	}
	return u.Set(unit.Field{
		Kind:   msg.DeltaRampDown,
		Entity: l,
		Data:   rowView(u.rampDown, l),
		Stage:  unit.ConstraintsReady,
		Check:  nonNegative(u, "DeltaRampDown", l),
		Push: func(idx []int) error {
			for _, t := range idx {
				if r := u.rampDownRow[l][t]; r != nil {
					r.SetRHS(u.rampDownRHS(l, t))
				}
			}
			return nil
		},
	}, values, loc, physical, abstract)
}

func nonNegative(u *Unit, field string, entity int) func(int, float64) error {
	return func(t int, v float64) error {
		if v < 0 {
			return u.Inconsistent(field, entity, t, "negative value %v", v)
		}
		return nil
	}
}

// SetInitialFlowRate sets F(l,-1) for the arcs in loc. Only the t=0 ramp
// rows depend on it.
func (u *Unit) SetInitialFlowRate(values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	return u.Set(unit.Field{
		Kind:   msg.InitialFlowRate,
		Entity: msg.NoEntity,
		Data:   u.initialFlow,
		Stage:  unit.ConstraintsReady,
		Push: func(idx []int) error {
			if u.Horizon() == 0 {
				return nil
			}
			for _, l := range idx {
				if r := u.rampUpRow[l][0]; r != nil {
					r.SetRHS(u.rampUpRHS(l, 0))
				}
				if r := u.rampDownRow[l][0]; r != nil {
					r.SetRHS(u.rampDownRHS(l, 0))
				}
			}
			return nil
		},
	}, values, loc, physical, abstract)
}

// SetPrimaryRho sets the primary reserve fraction of arc l.
func (u *Unit) SetPrimaryRho(l int, values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	if err := u.arc(l); err != nil {
		return err
	}
	return u.setRho(msg.PrimaryRho, l, rowView(u.primaryRho, l), u.primaryRatio, values, loc, physical, abstract)
}

// SetSecondaryRho sets the secondary reserve fraction of arc l.
func (u *Unit) SetSecondaryRho(l int, values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	if err := u.arc(l); err != nil {
		return err
	}
	return u.setRho(msg.SecondaryRho, l, rowView(u.secRho, l), u.secondaryRatio, values, loc, physical, abstract)
}

func (u *Unit) setRho(kind msg.Kind, l int, data []float64, rows [][]*lp.Row, values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	return u.Set(unit.Field{
		Kind:   kind,
		Entity: l,
		Data:   data,
		Stage:  unit.ConstraintsReady,
		Check: func(t int, v float64) error {
			return u.checkRho(string(kind), l, t, v)
		},
		Push: func(idx []int) error {
			if rows == nil {
				return nil
			}
			for _, t := range idx {
				if r := rows[l][t]; r != nil {
					if err := r.SetCoefficient(u.power[l][t], -data[t]); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}, values, loc, physical, abstract)
}

// piece maps a global piece index to its arc and position on that arc.
func (u *Unit) piece(k int) (int, int) {
	l := sort.Search(u.arcs, func(i int) bool { return u.offset[i] > k }) - 1
	return l, k - u.offset[l]
}

// SetLinearTerm sets the slope a_h of the pieces in loc, indexed over all
// arcs as in LinearTerm.
func (u *Unit) SetLinearTerm(values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	return u.Set(unit.Field{
		Kind:   msg.LinearTerm,
		Entity: msg.NoEntity,
		Data:   u.linear,
		Stage:  unit.ConstraintsReady,
		Push: func(idx []int) error {
			for _, k := range idx {
				l, h := u.piece(k)
				if u.class[l] == Inactive {
					continue
				}
				for t := range u.conversion[l] {
					if err := u.conversion[l][t][h].SetCoefficient(u.flow[l][t], -u.linear[k]); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}, values, loc, physical, abstract)
}

// SetConstantTerm sets the intercept b_h of the pieces in loc. Pumps are
// modelled as P = a*F, so their intercept has no abstract counterpart.
func (u *Unit) SetConstantTerm(values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	return u.Set(unit.Field{
		Kind:   msg.ConstantTerm,
		Entity: msg.NoEntity,
		Data:   u.constant,
		Stage:  unit.ConstraintsReady,
		Push: func(idx []int) error {
			for _, k := range idx {
				l, h := u.piece(k)
				if u.class[l] != Turbine {
					continue
				}
				for t := range u.conversion[l] {
					u.conversion[l][t][h].SetRHS(u.constant[k])
				}
			}
			return nil
		},
	}, values, loc, physical, abstract)
}

// SetActivePowerCost sets the cost of P(l,t) in the objective.
func (u *Unit) SetActivePowerCost(l int, values []float64, loc msg.Location, physical, abstract unit.Policy) error {
	if err := u.arc(l); err != nil {
		return err
	}
	return u.Set(unit.Field{
		Kind:   msg.ActivePowerCost,
		Entity: l,
		Data:   rowView(u.cost, l),
		Stage:  unit.ObjectiveReady,
		Push: func(idx []int) error {
			obj := u.Block().Objective()
			for _, t := range idx {
				if err := obj.SetCoefficient(u.power[l][t], u.powerCoef(l, t)); err != nil {
					return err
				}
			}
			return nil
		},
	}, values, loc, physical, abstract)
}

// SetKappa rescales every power bound row. Variable bounds are untouched.
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
			for l := 0; l < u.arcs; l++ {
				for t := range u.minPowerRow[l] {
					if r := u.minPowerRow[l][t]; r != nil {
						r.SetRHS(u.kappa * u.minPower.At(l, t))
						u.maxPowerRow[l][t].SetRHS(u.kappa * u.maxPower.At(l, t))
					}
				}
			}
			return nil
		},
	}, v, physical, abstract)
}

// SetScale rescales every objective coefficient of the unit.
func (u *Unit) SetScale(v float64, physical, abstract unit.Policy) error {
	return u.SetScalar(unit.Scalar{
		Kind:  msg.Scale,
		Value: &u.scale,
		Stage: unit.ObjectiveReady,
		Push: func() error {
			obj := u.Block().Objective()
			T := u.Horizon()
			for l := 0; l < u.arcs; l++ {
				for t := 0; t < T; t++ {
					if err := obj.SetCoefficient(u.power[l][t], u.powerCoef(l, t)); err != nil {
						return err
					}
				}
			}
			if T == 0 {
				return nil
			}
			for n := 0; n < u.reservoirs; n++ {
				if err := obj.SetCoefficient(u.volume[n][T-1], u.volumeCoef(n)); err != nil {
					return err
				}
			}
			return nil
		},
	}, v, physical, abstract)
}
