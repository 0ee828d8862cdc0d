// Package battery models a storage unit charged through an intake and
// discharged through an outtake, each with its own efficiency.
package battery

import (
	"fmt"

	"github.com/ohowland/cgc_ucblock/internal/pkg/group"
	"github.com/ohowland/cgc_ucblock/internal/pkg/lp"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
)

// Unit is a storage battery. Power is positive when discharging.
type Unit struct {
	unit.Base

	minPower     []float64
	maxPower     []float64
	minStorage   []float64
	maxStorage   []float64
	rampUp       []float64
	rampDown     []float64
	storingRho   []float64
	extractRho   []float64
	cost         []float64
	maxPrimary   []float64
	maxSecondary []float64

	initialStorage unit.InitialState
	initialPower   float64
	kappa          float64
	scale          float64

	caps unit.Capabilities

	storage   []*lp.Variable
	intake    []*lp.Variable
	outtake   []*lp.Variable
	power     []*lp.Variable
	primary   []*lp.Variable
	secondary []*lp.Variable

	balance      []*lp.Row
	definition   []*lp.Row
	minPowerRow  []*lp.Row
	maxPowerRow  []*lp.Row
	primaryCap   []*lp.Row
	secondaryCap []*lp.Row
	rampUpRow    []*lp.Row
	rampDownRow  []*lp.Row
}

// New returns an empty battery. Deserialize fills it.
func New(name string) (*Unit, error) {
	base, err := unit.NewBase(unit.Battery, name)
	if err != nil {
		return nil, err
	}
	return &Unit{Base: base, kappa: 1, scale: 1}, nil
}

// Deserialize reads and validates the battery data.
func (u *Unit) Deserialize(r group.Reader) error {
	if err := u.ReadTimeFrame(r); err != nil {
		return err
	}
	u.clearAbstract()

	var err error
	required := []struct {
		name string
		dst  *[]float64
	}{
		{"MinPower", &u.minPower},
		{"MaxPower", &u.maxPower},
		{"MaxStorage", &u.maxStorage},
	}
	for _, f := range required {
		if *f.dst, err = u.RequireVector(r, f.name); err != nil {
			return err
		}
	}
	optional := []struct {
		name string
		dst  *[]float64
		def  []float64
	}{
		{"MinStorage", &u.minStorage, []float64{0}},
		{"StoringBatteryRho", &u.storingRho, []float64{1}},
		{"ExtractingBatteryRho", &u.extractRho, []float64{1}},
		{"Cost", &u.cost, []float64{0}},
		{"DeltaRampUp", &u.rampUp, nil},
		{"DeltaRampDown", &u.rampDown, nil},
		{"MaxPrimaryPower", &u.maxPrimary, nil},
		{"MaxSecondaryPower", &u.maxSecondary, nil},
	}
	for _, f := range optional {
		if *f.dst, err = u.ReadVector(r, f.name, f.def); err != nil {
			return err
		}
	}

	u.initialStorage = unit.Fixed(0)
	if v, ok := r.ReadScalar("InitialStorage"); ok {
		u.initialStorage = unit.FromSentinel(v)
	}
	u.initialPower = 0
	if v, ok := r.ReadScalar("InitialPower"); ok {
		u.initialPower = v
	}
	u.kappa, u.scale = 1, 1
	if v, ok := r.ReadScalar("Kappa"); ok {
		u.kappa = v
	}
	if v, ok := r.ReadScalar("Scale"); ok {
		u.scale = v
	}
	return u.validate()
}

func (u *Unit) clearAbstract() {
	u.storage, u.intake, u.outtake, u.power, u.primary, u.secondary = nil, nil, nil, nil, nil, nil
	u.balance, u.definition, u.minPowerRow, u.maxPowerRow = nil, nil, nil, nil
	u.primaryCap, u.secondaryCap, u.rampUpRow, u.rampDownRow = nil, nil, nil, nil
}

func (u *Unit) validate() error {
	for t := 0; t < u.Horizon(); t++ {
		if u.minPower[t] > u.maxPower[t] {
			return u.Inconsistent("MaxPower", -1, t, "%v below MinPower %v", u.maxPower[t], u.minPower[t])
		}
		if u.minStorage[t] < 0 || u.minStorage[t] > u.maxStorage[t] {
			return u.Inconsistent("MinStorage", -1, t, "%v outside [0, %v]", u.minStorage[t], u.maxStorage[t])
		}
		for _, rho := range []struct {
			name string
			v    float64
		}{{"StoringBatteryRho", u.storingRho[t]}, {"ExtractingBatteryRho", u.extractRho[t]}} {
			if rho.v <= 0 || rho.v > 1 {
				return u.Inconsistent(rho.name, -1, t, "efficiency %v outside (0, 1]", rho.v)
			}
		}
		for _, f := range []struct {
			name string
			v    []float64
		}{{"DeltaRampUp", u.rampUp}, {"DeltaRampDown", u.rampDown}, {"MaxPrimaryPower", u.maxPrimary}, {"MaxSecondaryPower", u.maxSecondary}} {
			if f.v != nil && f.v[t] < 0 {
				return u.Inconsistent(f.name, -1, t, "negative value %v", f.v[t])
			}
		}
	}
	if !u.initialStorage.IsCyclical() && u.Horizon() > 0 && u.initialStorage.Value() > u.maxStorage[0] {
		return u.Inconsistent("InitialStorage", -1, -1, "%v above MaxStorage %v", u.initialStorage.Value(), u.maxStorage[0])
	}
	return nil
}

// Kappa returns the bound scaling factor.
func (u *Unit) Kappa() float64 {
	return u.kappa
}

// InitialStorage returns the boundary condition of the storage level.
func (u *Unit) InitialStorage() unit.InitialState {
	return u.initialStorage
}

// Storage returns the storage level variable at t.
func (u *Unit) Storage(t int) *lp.Variable {
	return u.storage[t]
}

// Intake returns the charging variable at t.
func (u *Unit) Intake(t int) *lp.Variable {
	return u.intake[t]
}

// Outtake returns the discharging variable at t.
func (u *Unit) Outtake(t int) *lp.Variable {
	return u.outtake[t]
}

// Power returns the net active power variable at t.
func (u *Unit) Power(t int) *lp.Variable {
	return u.power[t]
}

// BalanceRow returns the storage balance at t.
func (u *Unit) BalanceRow(t int) *lp.Row {
	return u.balance[t]
}

// MinPowerRow returns the lower power row at t.
func (u *Unit) MinPowerRow(t int) *lp.Row {
	return u.minPowerRow[t]
}

// MaxPowerRow returns the upper power row at t.
func (u *Unit) MaxPowerRow(t int) *lp.Row {
	return u.maxPowerRow[t]
}

// PrimaryCapRow returns pr(t) <= kappa*MaxPrimaryPower(t), nil without data.
func (u *Unit) PrimaryCapRow(t int) *lp.Row {
	if u.primaryCap == nil {
		return nil
	}
	return u.primaryCap[t]
}

// RampUpRow returns the upward ramp row at t, nil without ramp data.
func (u *Unit) RampUpRow(t int) *lp.Row {
	if u.rampUpRow == nil {
		return nil
	}
	return u.rampUpRow[t]
}

// RampDownRow returns the downward ramp row at t, nil without ramp data.
func (u *Unit) RampDownRow(t int) *lp.Row {
	if u.rampDownRow == nil {
		return nil
	}
	return u.rampDownRow[t]
}

// GenerateVariables creates storage, intake, outtake, power and the
// requested reserves. Storage bounds are scaled by kappa.
func (u *Unit) GenerateVariables(caps unit.Capabilities) error {
	return u.Generate(unit.VariablesReady, func() error {
		T := u.Horizon()
		b := u.Block()
		storage := make([]*lp.Variable, T)
		intake := make([]*lp.Variable, T)
		outtake := make([]*lp.Variable, T)
		power := make([]*lp.Variable, T)
		for t := 0; t < T; t++ {
			storage[t] = b.AddVariable(fmt.Sprintf("storage[%d]", t), u.kappa*u.minStorage[t], u.kappa*u.maxStorage[t])
			intake[t] = b.AddVariable(fmt.Sprintf("intake[%d]", t), 0, lp.Inf)
			outtake[t] = b.AddVariable(fmt.Sprintf("outtake[%d]", t), 0, lp.Inf)
			power[t] = b.AddVariable(fmt.Sprintf("power[%d]", t), -lp.Inf, lp.Inf)
		}
		var primary, secondary []*lp.Variable
		if caps.PrimaryReserve {
			primary = reserves(b, "pr", T)
		}
		if caps.SecondaryReserve {
			secondary = reserves(b, "sc", T)
		}
		u.caps = caps
		u.storage, u.intake, u.outtake, u.power = storage, intake, outtake, power
		u.primary, u.secondary = primary, secondary
		return nil
	})
}

func reserves(b *lp.Block, prefix string, T int) []*lp.Variable {
	out := make([]*lp.Variable, T)
	for t := range out {
		out[t] = b.AddVariable(fmt.Sprintf("%s[%d]", prefix, t), 0, lp.Inf)
	}
	return out
}

// GenerateConstraints creates the storage balance, the power definition, the
// power bounds with reserves, the reserve caps and the ramp rows.
func (u *Unit) GenerateConstraints(caps unit.Capabilities) error {
	if err := u.GenerateVariables(caps); err != nil {
		return err
	}
	return u.Generate(unit.ConstraintsReady, func() error {
		T := u.Horizon()
		b := u.Block()
		balance := make([]*lp.Row, T)
		definition := make([]*lp.Row, T)
		minPower := make([]*lp.Row, T)
		maxPower := make([]*lp.Row, T)
		for t := 0; t < T; t++ {
			balance[t] = b.AddRow(lp.Equal(fmt.Sprintf("balance[%d]", t), u.balanceRHS(t), u.balanceTerms(t)...))
			definition[t] = b.AddRow(lp.Equal(fmt.Sprintf("definition[%d]", t), 0,
				lp.Term{Var: u.power[t], Coef: 1}, lp.Term{Var: u.outtake[t], Coef: -1}, lp.Term{Var: u.intake[t], Coef: 1}))
			minPower[t] = b.AddRow(lp.GreaterEqual(fmt.Sprintf("minPower[%d]", t), u.kappa*u.minPower[t], u.reservedPower(t, -1)...))
			maxPower[t] = b.AddRow(lp.LessEqual(fmt.Sprintf("maxPower[%d]", t), u.kappa*u.maxPower[t], u.reservedPower(t, 1)...))
		}
		u.balance, u.definition = balance, definition
		u.minPowerRow, u.maxPowerRow = minPower, maxPower
		u.primaryCap = capRows(b, "primaryCap", u.primary, u.maxPrimary, u.kappa)
		u.secondaryCap = capRows(b, "secondaryCap", u.secondary, u.maxSecondary, u.kappa)

		if u.rampUp != nil {
			u.rampUpRow = make([]*lp.Row, T)
			for t := range u.rampUpRow {
				u.rampUpRow[t] = b.AddRow(lp.LessEqual(fmt.Sprintf("rampUp[%d]", t), u.rampUpRHS(t), u.rampTerms(t, 1)...))
			}
		}
		if u.rampDown != nil {
			u.rampDownRow = make([]*lp.Row, T)
			for t := range u.rampDownRow {
				u.rampDownRow[t] = b.AddRow(lp.LessEqual(fmt.Sprintf("rampDown[%d]", t), u.rampDownRHS(t), u.rampTerms(t, -1)...))
			}
		}
		u.Log().Infow("[Battery] constraints generated", "rows", len(b.Rows()))
		return nil
	})
}

// balanceTerms builds storage(t) - storage(t-1) - rho_in*intake(t) +
// outtake(t)/rho_out. A cyclical battery links t=0 to the last period.
func (u *Unit) balanceTerms(t int) []lp.Term {
	terms := []lp.Term{{Var: u.storage[t], Coef: 1}}
	switch {
	case t > 0:
		terms = append(terms, lp.Term{Var: u.storage[t-1], Coef: -1})
	case u.initialStorage.IsCyclical():
		terms = append(terms, lp.Term{Var: u.storage[u.Horizon()-1], Coef: -1})
	}
	return append(terms,
		lp.Term{Var: u.intake[t], Coef: -u.storingRho[t]},
		lp.Term{Var: u.outtake[t], Coef: 1 / u.extractRho[t]})
}

func (u *Unit) balanceRHS(t int) float64 {
	if t == 0 {
		return u.initialStorage.Value()
	}
	return 0
}

func (u *Unit) reservedPower(t int, sign float64) []lp.Term {
	terms := []lp.Term{{Var: u.power[t], Coef: 1}}
	if u.primary != nil {
		terms = append(terms, lp.Term{Var: u.primary[t], Coef: sign})
	}
	if u.secondary != nil {
		terms = append(terms, lp.Term{Var: u.secondary[t], Coef: sign})
	}
	return terms
}

func capRows(b *lp.Block, prefix string, vars []*lp.Variable, limit []float64, kappa float64) []*lp.Row {
	if vars == nil || limit == nil {
		return nil
	}
	rows := make([]*lp.Row, len(vars))
	for t, v := range vars {
		rows[t] = b.AddRow(lp.LessEqual(fmt.Sprintf("%s[%d]", prefix, t), kappa*limit[t], lp.Term{Var: v, Coef: 1}))
	}
	return rows
}

func (u *Unit) rampTerms(t int, sign float64) []lp.Term {
	terms := []lp.Term{{Var: u.power[t], Coef: sign}}
	if t > 0 {
		terms = append(terms, lp.Term{Var: u.power[t-1], Coef: -sign})
	}
	return terms
}

func (u *Unit) rampUpRHS(t int) float64 {
	if t == 0 {
		return u.rampUp[0] + u.initialPower
	}
	return u.rampUp[t]
}

func (u *Unit) rampDownRHS(t int) float64 {
	if t == 0 {
		return u.rampDown[0] - u.initialPower
	}
	return u.rampDown[t]
}

// GenerateObjective charges Cost on the energy moved through the battery.
func (u *Unit) GenerateObjective(caps unit.Capabilities) error {
	if err := u.GenerateConstraints(caps); err != nil {
		return err
	}
	return u.Generate(unit.ObjectiveReady, func() error {
		var terms []lp.Term
		for t := 0; t < u.Horizon(); t++ {
			c := u.scale * u.cost[t]
			terms = append(terms, lp.Term{Var: u.intake[t], Coef: c}, lp.Term{Var: u.outtake[t], Coef: c})
		}
		obj := u.Block().Objective()
		obj.Sense = lp.Minimize
		obj.SetTerms(terms...)
		return nil
	})
}

// IsFeasible checks the current variable values against the unit's block.
func (u *Unit) IsFeasible(tol float64) bool {
	return u.Feasible(tol)
}

// PowerTerms returns the net power at t.
func (u *Unit) PowerTerms(t int) []lp.Term {
	return single(u.power, t)
}

// PrimaryReserveTerms returns the primary reserve at t.
func (u *Unit) PrimaryReserveTerms(t int) []lp.Term {
	return single(u.primary, t)
}

// SecondaryReserveTerms returns the secondary reserve at t.
func (u *Unit) SecondaryReserveTerms(t int) []lp.Term {
	return single(u.secondary, t)
}

// InertiaTerms is empty: a battery behind an inverter adds no inertia.
func (u *Unit) InertiaTerms(t int) []lp.Term {
	return nil
}

func single(vars []*lp.Variable, t int) []lp.Term {
	if t < 0 || t >= len(vars) {
		return nil
	}
	return []lp.Term{{Var: vars[t], Coef: 1}}
}

// Serialize writes the battery in its smallest faithful encoding.
func (u *Unit) Serialize(w group.Writer) error {
	u.WriteTimeFrame(w)
	for _, f := range []struct {
		name string
		v    []float64
	}{
		{"MinPower", u.minPower},
		{"MaxPower", u.maxPower},
		{"MinStorage", u.minStorage},
		{"MaxStorage", u.maxStorage},
		{"DeltaRampUp", u.rampUp},
		{"DeltaRampDown", u.rampDown},
		{"StoringBatteryRho", u.storingRho},
		{"ExtractingBatteryRho", u.extractRho},
		{"Cost", u.cost},
		{"MaxPrimaryPower", u.maxPrimary},
		{"MaxSecondaryPower", u.maxSecondary},
	} {
		u.WriteVector(w, f.name, f.v)
	}
	w.WriteScalar("InitialStorage", u.initialStorage.Sentinel())
	w.WriteScalar("InitialPower", u.initialPower)
	w.WriteScalar("Kappa", u.kappa)
	w.WriteScalar("Scale", u.scale)
	return nil
}
