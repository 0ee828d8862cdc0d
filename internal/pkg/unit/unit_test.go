package unit

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_ucblock/internal/pkg/group"
	"github.com/ohowland/cgc_ucblock/internal/pkg/lp"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"gotest.tools/v3/assert"
)

func newTestBase(t *testing.T) Base {
	b, err := NewBase(Hydro, "h0")
	assert.NilError(t, err)
	g := group.New("h0")
	g.WriteDim("TimeHorizon", 4)
	assert.NilError(t, b.ReadTimeFrame(g))
	return b
}

func TestKindRoundTrip(t *testing.T) {
	for _, k := range []Kind{Battery, Hydro, Intermittent, Slack} {
		got, err := ParseKind(k.String())
		assert.NilError(t, err)
		assert.Equal(t, got, k)
	}
	_, err := ParseKind("ThermalUnitBlock")
	assert.ErrorContains(t, err, "unknown unit type")
}

func TestLifecycleNeverMovesBack(t *testing.T) {
	var l Lifecycle
	assert.Equal(t, l.Stage(), Unbuilt)
	l.Advance(ConstraintsReady)
	l.Advance(VariablesReady)
	assert.Equal(t, l.Stage(), ConstraintsReady)
	assert.Assert(t, l.Reached(VariablesReady))
	assert.Assert(t, !l.Reached(ObjectiveReady))
	l.Reset()
	assert.Equal(t, l.Stage(), Unbuilt)
}

func TestInitialStateSentinel(t *testing.T) {
	assert.Assert(t, FromSentinel(-3).IsCyclical())
	assert.Equal(t, FromSentinel(-3).Value(), 0.0)
	assert.Equal(t, FromSentinel(7).Value(), 7.0)
	assert.Equal(t, Cyclical().Sentinel(), -1.0)
	assert.Equal(t, Fixed(2).Sentinel(), 2.0)
	assert.Assert(t, !DryRun.Commits())
	assert.Assert(t, Silent.Commits())
}

func TestDataConsistencyErrorMessage(t *testing.T) {
	err := Inconsistent("h0", "MinFlow", 2, 5, "sign changes from %s", "turbine")
	assert.Error(t, err, "h0: MinFlow[2] at t=5: sign changes from turbine")
	err = Inconsistent("h0", "StartArc", 1, -1, "self loop")
	assert.Error(t, err, "h0: StartArc[1]: self loop")

	var dce *DataConsistencyError
	assert.Assert(t, errors.As(err, &dce))
	assert.Equal(t, dce.Field, "StartArc")
}

func TestGenerateIsIdempotentAndRollsBack(t *testing.T) {
	b := newTestBase(t)
	calls := 0
	build := func() error {
		calls++
		b.Block().AddVariable("x", 0, 1)
		return nil
	}
	assert.NilError(t, b.Generate(VariablesReady, build))
	assert.NilError(t, b.Generate(VariablesReady, build))
	assert.Equal(t, calls, 1)
	assert.Equal(t, len(b.Block().Variables()), 1)

	err := b.Generate(ConstraintsReady, func() error {
		x := b.Block().Variables()[0]
		b.Block().AddRow(lp.LessEqual("cap", 1, lp.Term{Var: x, Coef: 1}))
		return errors.New("bad data")
	})
	assert.ErrorContains(t, err, "bad data")
	assert.Equal(t, b.Stage(), VariablesReady)
	assert.Equal(t, len(b.Block().Rows()), 0)
}

func TestReadTimeFrameRequiresHorizon(t *testing.T) {
	b, err := NewBase(Slack, "s0")
	assert.NilError(t, err)
	assert.ErrorContains(t, b.ReadTimeFrame(group.New("s0")), "missing TimeHorizon")
}

func TestTimeFrameRoundTrip(t *testing.T) {
	b, err := NewBase(Battery, "b0")
	assert.NilError(t, err)
	g := group.New("b0")
	g.WriteDim("TimeHorizon", 6)
	g.WriteDim("NumberIntervals", 3)
	g.WriteSeries("ChangeIntervals", []float64{1, 3, 5})
	assert.NilError(t, b.ReadTimeFrame(g))

	v, err := b.ReadVector(g, "Missing", []float64{2})
	assert.NilError(t, err)
	assert.DeepEqual(t, v, []float64{2, 2, 2, 2, 2, 2})

	out := group.New("b0")
	b.WriteTimeFrame(out)
	name, _ := out.ReadString("Type")
	assert.Equal(t, name, "BatteryUnitBlock")
	bp, err := out.ReadSeries("ChangeIntervals", 3)
	assert.NilError(t, err)
	assert.DeepEqual(t, bp, []float64{1, 3, 5})
}

func TestSetNoopOnEmptyOrUnchanged(t *testing.T) {
	b := newTestBase(t)
	ch := b.Publisher().Subscribe(uuid.New())
	data := []float64{1, 1, 1, 1}
	pushed := 0
	f := Field{Kind: msg.Inflow, Data: data, Push: func([]int) error { pushed++; return nil }}

	assert.NilError(t, b.Set(f, []float64{9}, msg.Range(2, 2), Notify, Notify))
	assert.NilError(t, b.Set(f, []float64{1, 1}, msg.Subset(0, 3), Notify, Notify))
	assert.Equal(t, pushed, 0)
	assert.Equal(t, len(ch), 0)
}

func TestSetDryRunValidatesOnly(t *testing.T) {
	b := newTestBase(t)
	data := []float64{1, 1, 1, 1}
	f := Field{Kind: msg.Inflow, Data: data, Check: func(i int, v float64) error {
		if v < 0 {
			return b.Inconsistent("Inflows", 0, i, "negative")
		}
		return nil
	}}
	assert.ErrorContains(t, b.Set(f, []float64{-1}, msg.Range(0, 2), DryRun, DryRun), "negative")
	assert.NilError(t, b.Set(f, []float64{5}, msg.Range(0, 2), DryRun, Notify))
	assert.DeepEqual(t, data, []float64{1, 1, 1, 1})
	assert.ErrorContains(t, b.Set(f, []float64{1, 2, 3}, msg.Range(0, 2), Silent, Silent), "3 values for 2 indices")
	assert.ErrorContains(t, b.Set(f, []float64{1}, msg.Range(2, 6), Silent, Silent), "outside")
}

func TestSetPushesOnlyChangedIndicesOnceBuilt(t *testing.T) {
	b := newTestBase(t)
	ch := b.Publisher().Subscribe(uuid.New())
	data := []float64{1, 1, 1, 1}
	var got []int
	f := Field{Kind: msg.Inflow, Entity: 0, Data: data, Stage: ConstraintsReady, Push: func(idx []int) error {
		got = append(got, idx...)
		return nil
	}}

	// Not built yet: physical only.
	assert.NilError(t, b.Set(f, []float64{2}, msg.Subset(3), Notify, Notify))
	assert.Assert(t, got == nil)
	m := <-ch
	assert.Equal(t, m.Layer, msg.Physical)

	assert.NilError(t, b.Generate(ConstraintsReady, func() error { return nil }))
	assert.NilError(t, b.Set(f, []float64{1, 4, 4}, msg.Subset(2, 0, 1), Silent, Notify))
	assert.DeepEqual(t, got, []int{0, 1})
	assert.DeepEqual(t, data, []float64{4, 4, 1, 2})
	m = <-ch
	assert.Equal(t, m.Layer, msg.Abstract)
	assert.DeepEqual(t, m.Location.Indices(), []int{0, 1, 2})
	assert.Equal(t, len(ch), 0)
}

func TestSetNotifiesSortedLocation(t *testing.T) {
	b := newTestBase(t)
	ch := b.Publisher().Subscribe(uuid.New())
	data := []float64{1, 1, 1, 1}
	f := Field{Kind: msg.Inflow, Data: data}

	assert.NilError(t, b.Set(f, []float64{7}, msg.Subset(3, 1, 3), Notify, Silent))
	assert.DeepEqual(t, data, []float64{1, 7, 1, 7})
	m := <-ch
	assert.Equal(t, m.Layer, msg.Physical)
	assert.Assert(t, m.Location.IsSubset())
	assert.DeepEqual(t, m.Location.Indices(), []int{1, 3})
	assert.Equal(t, len(ch), 0)
}

func TestSetRevertsOnPushFailure(t *testing.T) {
	b := newTestBase(t)
	assert.NilError(t, b.Generate(ConstraintsReady, func() error { return nil }))
	data := []float64{1, 1, 1, 1}
	var seen [][]float64
	f := Field{Kind: msg.MaxFlow, Data: data, Stage: ConstraintsReady, Push: func([]int) error {
		seen = append(seen, append([]float64(nil), data...))
		if len(seen) == 1 {
			return &lp.InternalLinkageError{Row: "r", Var: "F"}
		}
		return nil
	}}
	err := b.Set(f, []float64{3}, msg.All(4), Notify, Notify)
	var le *lp.InternalLinkageError
	assert.Assert(t, errors.As(err, &le))
	assert.DeepEqual(t, data, []float64{1, 1, 1, 1})
	assert.Equal(t, len(seen), 2)
}

func TestSetScalar(t *testing.T) {
	b := newTestBase(t)
	ch := b.Publisher().Subscribe(uuid.New())
	kappa := 1.0
	f := Scalar{Kind: msg.Kappa, Value: &kappa, Check: func(v float64) error {
		if v < 0 {
			return errors.New("negative kappa")
		}
		return nil
	}}
	assert.NilError(t, b.SetScalar(f, 1, Notify, Notify))
	assert.Equal(t, len(ch), 0)
	assert.ErrorContains(t, b.SetScalar(f, -1, Notify, Notify), "negative kappa")
	assert.NilError(t, b.SetScalar(f, 2, Notify, Silent))
	assert.Equal(t, kappa, 2.0)
	m := <-ch
	assert.Equal(t, m.Kind, msg.Kappa)
	assert.Equal(t, m.Entity, msg.NoEntity)
}
