// Package hydro models a cascade of reservoirs connected by turbine and pump
// arcs with transport delays and a piecewise-linear concave production curve.
package hydro

import (
	"github.com/ohowland/cgc_ucblock/internal/pkg/lp"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
	"gonum.org/v1/gonum/mat"
)

// Class is the role of an arc, fixed at load time by the sign of its flow
// domain over the whole horizon.
type Class int

const (
	Turbine Class = iota
	Pump
	Inactive
)

func (c Class) String() string {
	switch c {
	case Pump:
		return "pump"
	case Inactive:
		return "inactive"
	}
	return "turbine"
}

// Unit is a reservoir network. Reservoir data is indexed [reservoir][t] and
// arc data [arc][t].
type Unit struct {
	unit.Base

	reservoirs int
	arcs       int

	start    []int
	end      []int
	uphill   []int
	downhill []int
	class    []Class

	// pieces[l] consecutive entries of linear and constant starting at
	// offset[l] describe the production curve of arc l.
	pieces   []int
	offset   []int
	linear   []float64
	constant []float64

	minVolume  *mat.Dense
	maxVolume  *mat.Dense
	inflow     *mat.Dense
	minFlow    *mat.Dense
	maxFlow    *mat.Dense
	minPower   *mat.Dense
	maxPower   *mat.Dense
	rampUp     *mat.Dense
	rampDown   *mat.Dense
	primaryRho *mat.Dense
	secRho     *mat.Dense
	inertia    *mat.Dense
	cost       *mat.Dense

	initialVolume []unit.InitialState
	initialFlow   []float64
	finalValue    []float64
	kappa         float64
	scale         float64

	caps unit.Capabilities

	// abstract representation
	volume    [][]*lp.Variable
	flow      [][]*lp.Variable
	power     [][]*lp.Variable
	primary   [][]*lp.Variable
	secondary [][]*lp.Variable

	balance        [][]*lp.Row
	minPowerRow    [][]*lp.Row
	maxPowerRow    [][]*lp.Row
	primaryRatio   [][]*lp.Row
	secondaryRatio [][]*lp.Row
	// conversion[l][t] holds one row per piece for a turbine, the single
	// equality for a pump, and the F=0, P=0 pair for an inactive arc.
	conversion  [][][]*lp.Row
	rampUpRow   [][]*lp.Row
	rampDownRow [][]*lp.Row
}

// New returns an empty hydro unit. Deserialize fills it.
func New(name string) (*Unit, error) {
	base, err := unit.NewBase(unit.Hydro, name)
	if err != nil {
		return nil, err
	}
	return &Unit{Base: base, kappa: 1, scale: 1}, nil
}

// Reservoirs returns the number of reservoirs.
func (u *Unit) Reservoirs() int {
	return u.reservoirs
}

// Arcs returns the number of arcs.
func (u *Unit) Arcs() int {
	return u.arcs
}

// Class returns the classification of arc l.
func (u *Unit) Class(l int) Class {
	return u.class[l]
}

// Kappa returns the bound scaling factor.
func (u *Unit) Kappa() float64 {
	return u.kappa
}

// Scale returns the objective scaling factor.
func (u *Unit) Scale() float64 {
	return u.scale
}

// InitialVolume returns the boundary condition of reservoir n.
func (u *Unit) InitialVolume(n int) unit.InitialState {
	return u.initialVolume[n]
}

// Inflow returns A(n, t).
func (u *Unit) Inflow(n, t int) float64 {
	return u.inflow.At(n, t)
}

// Volume returns V(n, t), nil before the variables exist.
func (u *Unit) Volume(n, t int) *lp.Variable {
	return at(u.volume, n, t)
}

// Flow returns F(l, t).
func (u *Unit) Flow(l, t int) *lp.Variable {
	return at(u.flow, l, t)
}

// Power returns P(l, t).
func (u *Unit) Power(l, t int) *lp.Variable {
	return at(u.power, l, t)
}

// PrimaryReserve returns pr(l, t), nil when the capability is off.
func (u *Unit) PrimaryReserve(l, t int) *lp.Variable {
	return at(u.primary, l, t)
}

// SecondaryReserve returns sc(l, t), nil when the capability is off.
func (u *Unit) SecondaryReserve(l, t int) *lp.Variable {
	return at(u.secondary, l, t)
}

// BalanceRow returns the volumetric balance of reservoir n at t.
func (u *Unit) BalanceRow(n, t int) *lp.Row {
	return at(u.balance, n, t)
}

// MinPowerRow returns the lower power row of arc l at t.
func (u *Unit) MinPowerRow(l, t int) *lp.Row {
	return at(u.minPowerRow, l, t)
}

// MaxPowerRow returns the upper power row of arc l at t.
func (u *Unit) MaxPowerRow(l, t int) *lp.Row {
	return at(u.maxPowerRow, l, t)
}

// PrimaryRatioRow returns pr(l,t) - rho*P(l,t) <= 0.
func (u *Unit) PrimaryRatioRow(l, t int) *lp.Row {
	return at(u.primaryRatio, l, t)
}

// SecondaryRatioRow returns sc(l,t) - rho*P(l,t) <= 0.
func (u *Unit) SecondaryRatioRow(l, t int) *lp.Row {
	return at(u.secondaryRatio, l, t)
}

// ConversionRows returns the flow to power rows of arc l at t.
func (u *Unit) ConversionRows(l, t int) []*lp.Row {
	if l >= len(u.conversion) || t >= len(u.conversion[l]) {
		return nil
	}
	return u.conversion[l][t]
}

// RampUpRow returns the upward ramp row of arc l at t.
func (u *Unit) RampUpRow(l, t int) *lp.Row {
	return at(u.rampUpRow, l, t)
}

// RampDownRow returns the downward ramp row of arc l at t.
func (u *Unit) RampDownRow(l, t int) *lp.Row {
	return at(u.rampDownRow, l, t)
}

func at[T any](grid [][]*T, i, t int) *T {
	if i < 0 || i >= len(grid) || t < 0 || t >= len(grid[i]) {
		return nil
	}
	return grid[i][t]
}

// PowerTerms returns the active power of every arc at t.
func (u *Unit) PowerTerms(t int) []lp.Term {
	return unitTerms(u.power, t)
}

// PrimaryReserveTerms returns the primary reserve of every arc at t.
func (u *Unit) PrimaryReserveTerms(t int) []lp.Term {
	return unitTerms(u.primary, t)
}

// SecondaryReserveTerms returns the secondary reserve of every arc at t.
func (u *Unit) SecondaryReserveTerms(t int) []lp.Term {
	return unitTerms(u.secondary, t)
}

// InertiaTerms weighs the active power of every arc by its inertia
// contribution.
func (u *Unit) InertiaTerms(t int) []lp.Term {
	if u.inertia == nil {
		return nil
	}
	var terms []lp.Term
	for l := range u.power {
		if c := u.inertia.At(l, t); c != 0 && t < len(u.power[l]) {
			terms = append(terms, lp.Term{Var: u.power[l][t], Coef: c})
		}
	}
	return terms
}

func unitTerms(grid [][]*lp.Variable, t int) []lp.Term {
	var terms []lp.Term
	for _, line := range grid {
		if t >= 0 && t < len(line) {
			terms = append(terms, lp.Term{Var: line[t], Coef: 1})
		}
	}
	return terms
}

// IsFeasible checks the current variable values against every bound and row.
func (u *Unit) IsFeasible(tol float64) bool {
	return u.Feasible(tol)
}

// rowView aliases row i of m so edits write through to the matrix.
func rowView(m *mat.Dense, i int) []float64 {
	if m == nil {
		return nil
	}
	return m.RawRowView(i)
}
