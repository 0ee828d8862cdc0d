package hydro

import (
	"fmt"

	"github.com/ohowland/cgc_ucblock/internal/pkg/lp"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
)

// GenerateVariables creates V(n,t), F(l,t), P(l,t) and, when the capability
// is requested, the reserve variables pr(l,t) and sc(l,t).
func (u *Unit) GenerateVariables(caps unit.Capabilities) error {
	return u.Generate(unit.VariablesReady, func() error {
		T := u.Horizon()
		b := u.Block()
		volume := grid[lp.Variable](u.reservoirs, T)
		for n := range volume {
			for t := range volume[n] {
				volume[n][t] = b.AddVariable(fmt.Sprintf("V[%d,%d]", n, t), u.minVolume.At(n, t), u.maxVolume.At(n, t))
			}
		}
		flow := grid[lp.Variable](u.arcs, T)
		power := grid[lp.Variable](u.arcs, T)
		for l := range flow {
			for t := range flow[l] {
				flow[l][t] = b.AddVariable(fmt.Sprintf("F[%d,%d]", l, t), u.minFlow.At(l, t), u.maxFlow.At(l, t))
				power[l][t] = b.AddVariable(fmt.Sprintf("P[%d,%d]", l, t), -lp.Inf, lp.Inf)
			}
		}
		var primary, secondary [][]*lp.Variable
		if caps.PrimaryReserve {
			primary = u.reserveVariables("pr")
		}
		if caps.SecondaryReserve {
			secondary = u.reserveVariables("sc")
		}
		u.caps = caps
		u.volume, u.flow, u.power = volume, flow, power
		u.primary, u.secondary = primary, secondary
		return nil
	})
}

// reserveVariables are non-negative on turbines and pinned to zero on every
// other arc.
func (u *Unit) reserveVariables(prefix string) [][]*lp.Variable {
	vars := grid[lp.Variable](u.arcs, u.Horizon())
	for l := range vars {
		upper := lp.Inf
		if u.class[l] != Turbine {
			upper = 0
		}
		for t := range vars[l] {
			vars[l][t] = u.Block().AddVariable(fmt.Sprintf("%s[%d,%d]", prefix, l, t), 0, upper)
		}
	}
	return vars
}

func grid[T any](n, horizon int) [][]*T {
	g := make([][]*T, n)
	for i := range g {
		g[i] = make([]*T, horizon)
	}
	return g
}

// GenerateConstraints creates the volumetric balance, power, reserve ratio,
// flow to power conversion and ramp rows. Variables are generated first if
// needed.
func (u *Unit) GenerateConstraints(caps unit.Capabilities) error {
	if err := u.GenerateVariables(caps); err != nil {
		return err
	}
	return u.Generate(unit.ConstraintsReady, func() error {
		T := u.Horizon()
		b := u.Block()

		balance := grid[lp.Row](u.reservoirs, T)
		for n := range balance {
			for t := range balance[n] {
				balance[n][t] = b.AddRow(lp.Equal(fmt.Sprintf("balance[%d,%d]", n, t), u.balanceRHS(n, t), u.balanceTerms(n, t)...))
			}
		}

		minPower := grid[lp.Row](u.arcs, T)
		maxPower := grid[lp.Row](u.arcs, T)
		primary := grid[lp.Row](u.arcs, T)
		secondary := grid[lp.Row](u.arcs, T)
		rampUp := grid[lp.Row](u.arcs, T)
		rampDown := grid[lp.Row](u.arcs, T)
		conversion := make([][][]*lp.Row, u.arcs)
		for l := 0; l < u.arcs; l++ {
			conversion[l] = make([][]*lp.Row, T)
			for t := 0; t < T; t++ {
				conversion[l][t] = u.conversionRows(l, t)
				for _, r := range conversion[l][t] {
					b.AddRow(r)
				}
				if u.class[l] == Inactive {
					continue
				}

				minPower[l][t] = b.AddRow(lp.GreaterEqual(fmt.Sprintf("minPower[%d,%d]", l, t), u.kappa*u.minPower.At(l, t), u.reservedPower(l, t, -1)...))
				maxPower[l][t] = b.AddRow(lp.LessEqual(fmt.Sprintf("maxPower[%d,%d]", l, t), u.kappa*u.maxPower.At(l, t), u.reservedPower(l, t, 1)...))

				if u.class[l] == Turbine {
					if u.primary != nil {
						primary[l][t] = b.AddRow(lp.LessEqual(fmt.Sprintf("primaryRatio[%d,%d]", l, t), 0,
							lp.Term{Var: u.primary[l][t], Coef: 1}, lp.Term{Var: u.power[l][t], Coef: -u.primaryRho.At(l, t)}))
					}
					if u.secondary != nil {
						secondary[l][t] = b.AddRow(lp.LessEqual(fmt.Sprintf("secondaryRatio[%d,%d]", l, t), 0,
							lp.Term{Var: u.secondary[l][t], Coef: 1}, lp.Term{Var: u.power[l][t], Coef: -u.secRho.At(l, t)}))
					}
				}

				if u.rampUp != nil {
					rampUp[l][t] = b.AddRow(lp.LessEqual(fmt.Sprintf("rampUp[%d,%d]", l, t), u.rampUpRHS(l, t), u.rampTerms(l, t, 1)...))
				}
				if u.rampDown != nil {
					rampDown[l][t] = b.AddRow(lp.LessEqual(fmt.Sprintf("rampDown[%d,%d]", l, t), u.rampDownRHS(l, t), u.rampTerms(l, t, -1)...))
				}
			}
		}

		u.balance = balance
		u.minPowerRow, u.maxPowerRow = minPower, maxPower
		u.primaryRatio, u.secondaryRatio = primary, secondary
		u.conversion = conversion
		u.rampUpRow, u.rampDownRow = rampUp, rampDown
		u.Log().Infow("[Hydro] constraints generated", "rows", len(b.Rows()))
		return nil
	})
}

// balanceTerms builds
//
//	V(n,t) - V(n,t-1) + sum_out F(l, t+uphill) - sum_in F(l, t-downhill)
//
// where V(n,-1) is V(n,T-1) for a cyclical reservoir and absent otherwise.
// Flow indices outside the horizon are omitted, so a negative uphill delay
// draws the water of F(l,t) from the balance at t-uphill.
func (u *Unit) balanceTerms(n, t int) []lp.Term {
	T := u.Horizon()
	terms := []lp.Term{{Var: u.volume[n][t], Coef: 1}}
	switch {
	case t > 0:
		terms = append(terms, lp.Term{Var: u.volume[n][t-1], Coef: -1})
	case u.initialVolume[n].IsCyclical():
		terms = append(terms, lp.Term{Var: u.volume[n][T-1], Coef: -1})
	}
	for l := 0; l < u.arcs; l++ {
		if u.start[l] == n {
			if s := t + u.uphill[l]; s >= 0 && s < T {
				terms = append(terms, lp.Term{Var: u.flow[l][s], Coef: 1})
			}
		}
		if u.end[l] == n {
			if s := t - u.downhill[l]; s >= 0 && s < T {
				terms = append(terms, lp.Term{Var: u.flow[l][s], Coef: -1})
			}
		}
	}
	return terms
}

func (u *Unit) balanceRHS(n, t int) float64 {
	rhs := u.inflow.At(n, t)
	if t == 0 {
		rhs += u.initialVolume[n].Value()
	}
	return rhs
}

// reservedPower returns P + sign*(pr + sc).
func (u *Unit) reservedPower(l, t int, sign float64) []lp.Term {
	terms := []lp.Term{{Var: u.power[l][t], Coef: 1}}
	if u.primary != nil {
		terms = append(terms, lp.Term{Var: u.primary[l][t], Coef: sign})
	}
	if u.secondary != nil {
		terms = append(terms, lp.Term{Var: u.secondary[l][t], Coef: sign})
	}
	return terms
}

func (u *Unit) conversionRows(l, t int) []*lp.Row {
	P, F := u.power[l][t], u.flow[l][t]
	switch u.class[l] {
	case Inactive:
		return []*lp.Row{
			lp.Equal(fmt.Sprintf("pinFlow[%d,%d]", l, t), 0, lp.Term{Var: F, Coef: 1}),
			lp.Equal(fmt.Sprintf("pinPower[%d,%d]", l, t), 0, lp.Term{Var: P, Coef: 1}),
		}
	case Pump:
		return []*lp.Row{
			lp.Equal(fmt.Sprintf("pump[%d,%d]", l, t), 0, lp.Term{Var: P, Coef: 1}, lp.Term{Var: F, Coef: -u.linear[u.offset[l]]}),
		}
	}
	rows := make([]*lp.Row, u.pieces[l])
	for h := range rows {
		k := u.offset[l] + h
		rows[h] = lp.LessEqual(fmt.Sprintf("turbine[%d,%d,%d]", l, t, h), u.constant[k], lp.Term{Var: P, Coef: 1}, lp.Term{Var: F, Coef: -u.linear[k]})
	}
	return rows
}

// rampTerms returns sign*(F(l,t) - F(l,t-1)); F(l,-1) lives on the right
// hand side.
func (u *Unit) rampTerms(l, t int, sign float64) []lp.Term {
	terms := []lp.Term{{Var: u.flow[l][t], Coef: sign}}
	if t > 0 {
		terms = append(terms, lp.Term{Var: u.flow[l][t-1], Coef: -sign})
	}
	return terms
}

func (u *Unit) rampUpRHS(l, t int) float64 {
	if t == 0 {
		return u.rampUp.At(l, 0) + u.initialFlow[l]
	}
	return u.rampUp.At(l, t)
}

func (u *Unit) rampDownRHS(l, t int) float64 {
	if t == 0 {
		return u.rampDown.At(l, 0) - u.initialFlow[l]
	}
	return u.rampDown.At(l, t)
}

// GenerateObjective sets scale * (sum cost*P - sum value*V(n,T-1)).
func (u *Unit) GenerateObjective(caps unit.Capabilities) error {
	if err := u.GenerateConstraints(caps); err != nil {
		return err
	}
	return u.Generate(unit.ObjectiveReady, func() error {
		T := u.Horizon()
		var terms []lp.Term
		for l := 0; l < u.arcs; l++ {
			for t := 0; t < T; t++ {
				terms = append(terms, lp.Term{Var: u.power[l][t], Coef: u.powerCoef(l, t)})
			}
		}
		if T > 0 {
			for n := 0; n < u.reservoirs; n++ {
				terms = append(terms, lp.Term{Var: u.volume[n][T-1], Coef: u.volumeCoef(n)})
			}
		}
		obj := u.Block().Objective()
		obj.Sense = lp.Minimize
		obj.SetTerms(terms...)
		return nil
	})
}

func (u *Unit) powerCoef(l, t int) float64 {
	return u.scale * u.cost.At(l, t)
}

func (u *Unit) volumeCoef(n int) float64 {
	return -u.scale * u.finalValue[n]
}
