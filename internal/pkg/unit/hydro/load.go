package hydro

import (
	"fmt"
	"math"

	"github.com/ohowland/cgc_ucblock/internal/pkg/group"
	"github.com/ohowland/cgc_ucblock/internal/pkg/timeseries"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
	"gonum.org/v1/gonum/mat"
)

// Deserialize reads the unit from r, expands every time series, validates
// the data and classifies the arcs. Any previous abstract representation is
// discarded.
func (u *Unit) Deserialize(r group.Reader) error {
	if err := u.ReadTimeFrame(r); err != nil {
		return err
	}
	u.clearAbstract()

	n, ok := r.ReadDim("NumberReservoirs")
	if !ok || n < 1 {
		return u.Inconsistent("NumberReservoirs", -1, -1, "at least one reservoir required")
	}
	l, _ := r.ReadDim("NumberArcs")
	if l < 0 {
		return u.Inconsistent("NumberArcs", -1, -1, "negative arc count %d", l)
	}
	u.reservoirs, u.arcs = n, l

	var err error
	if u.start, err = u.readInts(r, "StartArc", l, -1); err != nil {
		return err
	}
	if u.end, err = u.readInts(r, "EndArc", l, -1); err != nil {
		return err
	}
	if u.uphill, err = u.readInts(r, "UphillFlow", l, 0); err != nil {
		return err
	}
	if u.downhill, err = u.readInts(r, "DownhillFlow", l, 0); err != nil {
		return err
	}
	if u.pieces, err = u.readInts(r, "NumberPieces", l, 1); err != nil {
		return err
	}
	if err := u.readPieces(r); err != nil {
		return err
	}

	if u.minVolume, err = u.matrixOr(r, "MinVolumetric", timeseries.EntityMajor, n, 0); err != nil {
		return err
	}
	if u.maxVolume, err = u.requiredMatrix(r, "MaxVolumetric", timeseries.EntityMajor, n); err != nil {
		return err
	}
	if u.inflow, err = u.matrixOr(r, "Inflows", timeseries.EntityMajor, n, 0); err != nil {
		return err
	}

	if l > 0 {
		if u.minFlow, err = u.requiredMatrix(r, "MinFlow", timeseries.TimeMajor, l); err != nil {
			return err
		}
		if u.maxFlow, err = u.requiredMatrix(r, "MaxFlow", timeseries.TimeMajor, l); err != nil {
			return err
		}
		if u.minPower, err = u.requiredMatrix(r, "MinPower", timeseries.TimeMajor, l); err != nil {
			return err
		}
		if u.maxPower, err = u.requiredMatrix(r, "MaxPower", timeseries.TimeMajor, l); err != nil {
			return err
		}
		if u.rampUp, err = u.ReadMatrix(r, "DeltaRampUp", timeseries.TimeMajor, l); err != nil {
			return err
		}
		if u.rampDown, err = u.ReadMatrix(r, "DeltaRampDown", timeseries.TimeMajor, l); err != nil {
			return err
		}
		if u.primaryRho, err = u.matrixOr(r, "PrimaryRho", timeseries.TimeMajor, l, 0); err != nil {
			return err
		}
		if u.secRho, err = u.matrixOr(r, "SecondaryRho", timeseries.TimeMajor, l, 0); err != nil {
			return err
		}
		if u.inertia, err = u.matrixOr(r, "InertiaPower", timeseries.TimeMajor, l, 0); err != nil {
			return err
		}
		if u.cost, err = u.matrixOr(r, "ActivePowerCost", timeseries.TimeMajor, l, 0); err != nil {
			return err
		}
	}

	sentinels, err := u.readEntities(r, "InitialVolumetric", n, 0)
	if err != nil {
		return err
	}
	u.initialVolume = make([]unit.InitialState, n)
	for i, v := range sentinels {
		u.initialVolume[i] = unit.FromSentinel(v)
	}
	if u.initialFlow, err = u.readEntities(r, "InitialFlowRate", l, 0); err != nil {
		return err
	}
	if u.finalValue, err = u.readEntities(r, "FinalVolumeValue", n, 0); err != nil {
		return err
	}
	u.kappa, u.scale = 1, 1
	if v, ok := r.ReadScalar("Kappa"); ok {
		u.kappa = v
	}
	if v, ok := r.ReadScalar("Scale"); ok {
		u.scale = v
	}

	if err := u.validate(); err != nil {
		return err
	}
	u.Log().Debugw("[Hydro] loaded", "reservoirs", n, "arcs", l, "horizon", u.Horizon())
	return nil
}

func (u *Unit) clearAbstract() {
	u.volume, u.flow, u.power, u.primary, u.secondary = nil, nil, nil, nil, nil
	u.balance, u.minPowerRow, u.maxPowerRow = nil, nil, nil
	u.primaryRatio, u.secondaryRatio = nil, nil
	u.conversion, u.rampUpRow, u.rampDownRow = nil, nil, nil
}

// readEntities reads a per-entity vector. A single value is broadcast and an
// absent one yields def.
func (u *Unit) readEntities(r group.Reader, name string, n int, def float64) ([]float64, error) {
	raw, err := r.ReadSeries(name, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", u.Name(), err)
	}
	out := make([]float64, n)
	switch len(raw) {
	case 0:
		for i := range out {
			out[i] = def
		}
	case 1:
		for i := range out {
			out[i] = raw[0]
		}
	case n:
		copy(out, raw)
	default:
		return nil, u.Inconsistent(name, -1, -1, "expected %d values, found %d", n, len(raw))
	}
	return out, nil
}

// readInts is readEntities for integral data. A negative def marks the
// field as required.
func (u *Unit) readInts(r group.Reader, name string, n int, def int) ([]int, error) {
	raw, err := u.readEntities(r, name, n, math.NaN())
	if err != nil {
		return nil, err
	}
	out := make([]int, n)
	for i, v := range raw {
		switch {
		case math.IsNaN(v) && def < 0:
			return nil, u.Inconsistent(name, i, -1, "required but missing")
		case math.IsNaN(v):
			out[i] = def
		case v != math.Trunc(v):
			return nil, u.Inconsistent(name, i, -1, "%v is not integral", v)
		default:
			out[i] = int(v)
		}
	}
	return out, nil
}

func (u *Unit) readPieces(r group.Reader) error {
	total := 0
	u.offset = make([]int, u.arcs)
	for l, h := range u.pieces {
		if h < 1 {
			return u.Inconsistent("NumberPieces", l, -1, "at least one piece required, found %d", h)
		}
		u.offset[l] = total
		total += h
	}
	if declared, ok := r.ReadDim("TotalNumberPieces"); ok && declared != total {
		return u.Inconsistent("TotalNumberPieces", -1, -1, "declared %d, NumberPieces sums to %d", declared, total)
	}
	if total == 0 {
		u.linear, u.constant = nil, nil
		return nil
	}
	linear, err := r.ReadSeries("LinearTerm", total)
	if err != nil {
		return fmt.Errorf("%s: %w", u.Name(), err)
	}
	if len(linear) == 0 {
		// Only turbines and pumps read a slope; validate settles the rest.
		linear = make([]float64, total)
		for k := range linear {
			linear[k] = math.NaN()
		}
	}
	constant, err := r.ReadSeries("ConstantTerm", total)
	if err != nil {
		return fmt.Errorf("%s: %w", u.Name(), err)
	}
	if len(constant) == 0 {
		constant = make([]float64, total)
	}
	u.linear, u.constant = linear, constant
	return nil
}

func (u *Unit) requiredMatrix(r group.Reader, name string, axis timeseries.Axis, entities int) (*mat.Dense, error) {
	m, err := u.ReadMatrix(r, name, axis, entities)
	if err != nil {
		return nil, err
	}
	if m == nil && u.Horizon() > 0 {
		return nil, u.Inconsistent(name, -1, -1, "required but missing")
	}
	return m, nil
}

// matrixOr reads an optional matrix, filling an absent one with def.
func (u *Unit) matrixOr(r group.Reader, name string, axis timeseries.Axis, entities int, def float64) (*mat.Dense, error) {
	m, err := u.ReadMatrix(r, name, axis, entities)
	if err != nil || m != nil || entities == 0 || u.Horizon() == 0 {
		return m, err
	}
	m = mat.NewDense(entities, u.Horizon(), nil)
	if def != 0 {
		m.Apply(func(_, _ int, _ float64) float64 { return def }, m)
	}
	return m, nil
}

// validate checks the load-time invariants and classifies every arc.
func (u *Unit) validate() error {
	T := u.Horizon()
	for n := 0; n < u.reservoirs; n++ {
		for t := 0; t < T; t++ {
			lo, hi := u.minVolume.At(n, t), u.maxVolume.At(n, t)
			if lo < 0 {
				return u.Inconsistent("MinVolumetric", n, t, "negative volume %v", lo)
			}
			if lo > hi {
				return u.Inconsistent("MaxVolumetric", n, t, "%v below MinVolumetric %v", hi, lo)
			}
		}
	}

	u.class = make([]Class, u.arcs)
	for l := 0; l < u.arcs; l++ {
		if s := u.start[l]; s < 0 || s >= u.reservoirs {
			return u.Inconsistent("StartArc", l, -1, "reservoir %d outside [0, %d)", s, u.reservoirs)
		}
		if e := u.end[l]; e < 0 || e > u.reservoirs {
			return u.Inconsistent("EndArc", l, -1, "reservoir %d outside [0, %d]", e, u.reservoirs)
		}
		if u.start[l] == u.end[l] {
			return u.Inconsistent("EndArc", l, -1, "self loop on reservoir %d", u.start[l])
		}
		if u.downhill[l] < 0 {
			return u.Inconsistent("DownhillFlow", l, -1, "negative delay %d", u.downhill[l])
		}

		c, err := u.classify(l)
		if err != nil {
			return err
		}
		u.class[l] = c
		if c != Turbine && u.pieces[l] != 1 {
			return u.Inconsistent("NumberPieces", l, -1, "%s arc needs exactly one piece, found %d", c, u.pieces[l])
		}
		for k := u.offset[l]; k < u.offset[l]+u.pieces[l]; k++ {
			switch {
			case !math.IsNaN(u.linear[k]):
			case c == Inactive:
				u.linear[k] = 0
			default:
				return u.Inconsistent("LinearTerm", l, -1, "required for %s arc", c)
			}
		}

		for t := 0; t < T; t++ {
			if lo, hi := u.minPower.At(l, t), u.maxPower.At(l, t); lo > hi {
				return u.Inconsistent("MaxPower", l, t, "%v below MinPower %v", hi, lo)
			}
			if u.rampUp != nil && u.rampUp.At(l, t) < 0 {
				return u.Inconsistent("DeltaRampUp", l, t, "negative ramp %v", u.rampUp.At(l, t))
			}
			if u.rampDown != nil && u.rampDown.At(l, t) < 0 {
				return u.Inconsistent("DeltaRampDown", l, t, "negative ramp %v", u.rampDown.At(l, t))
			}
			if err := u.checkRho("PrimaryRho", l, t, u.primaryRho.At(l, t)); err != nil {
				return err
			}
			if err := u.checkRho("SecondaryRho", l, t, u.secRho.At(l, t)); err != nil {
				return err
			}
		}
	}
	return nil
}

// classify derives the class of arc l from the sign of its flow domain over
// every time step.
func (u *Unit) classify(l int) (Class, error) {
	T := u.Horizon()
	inactive, turbine, pump := true, true, true
	for t := 0; t < T; t++ {
		lo, hi := u.minFlow.At(l, t), u.maxFlow.At(l, t)
		if lo > hi {
			return 0, u.Inconsistent("MaxFlow", l, t, "%v below MinFlow %v", hi, lo)
		}
		inactive = inactive && lo == 0 && hi == 0
		turbine = turbine && lo >= 0
		pump = pump && hi <= 0
	}
	switch {
	case inactive:
		return Inactive, nil
	case turbine:
		return Turbine, nil
	case pump:
		return Pump, nil
	}
	for t := 0; t < T; t++ {
		if lo, hi := u.minFlow.At(l, t), u.maxFlow.At(l, t); lo < 0 && hi > 0 {
			return 0, u.Inconsistent("MinFlow", l, t, "flow range [%v, %v] changes sign", lo, hi)
		}
	}
	return 0, u.Inconsistent("MinFlow", l, -1, "flow range is a turbine at some steps and a pump at others")
}

func (u *Unit) checkRho(field string, l, t int, v float64) error {
	if v < 0 {
		return u.Inconsistent(field, l, t, "negative reserve fraction %v", v)
	}
	if v != 0 && u.class[l] != Turbine {
		return u.Inconsistent(field, l, t, "reserve fraction %v on a %s arc", v, u.class[l])
	}
	return nil
}

// fits reports whether a flow range is allowed for class c.
func fits(c Class, lo, hi float64) bool {
	if lo > hi {
		return false
	}
	switch c {
	case Turbine:
		return lo >= 0
	case Pump:
		return hi <= 0
	}
	return lo == 0 && hi == 0
}
