package lpdispatch

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_ucblock/internal/pkg/group"
	"github.com/ohowland/cgc_ucblock/internal/pkg/metrics"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit/battery"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit/hydro"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit/intermittent"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit/slack"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gotest.tools/v3/assert"
)

func loadSystem(t *testing.T) *Problem {
	g, err := group.Load("testdata/system.json")
	assert.NilError(t, err)
	p, err := New("system", unit.Capabilities{})
	assert.NilError(t, err)
	assert.NilError(t, p.Deserialize(g))
	return p
}

func unitsOf(p *Problem) (h *hydro.Unit, b *battery.Unit, pv *intermittent.Unit, s *slack.Unit) {
	for _, u := range p.Units() {
		switch u := u.(type) {
		case *hydro.Unit:
			h = u
		case *battery.Unit:
			b = u
		case *intermittent.Unit:
			pv = u
		case *slack.Unit:
			s = u
		}
	}
	return
}

func TestDeserializeResolvesCapabilities(t *testing.T) {
	p := loadSystem(t)
	assert.Equal(t, len(p.Units()), 4)
	assert.Equal(t, p.Horizon(), 3)
	assert.DeepEqual(t, p.Capabilities(), unit.Capabilities{PrimaryReserve: true})
	assert.DeepEqual(t, p.Requirement(msg.PrimaryDemand), []float64{1, 1, 1})
}

func TestBuildAddsSystemRows(t *testing.T) {
	p := loadSystem(t)
	assert.NilError(t, p.Build())
	assert.NilError(t, p.Build())

	demand := p.RequirementRow(msg.ActivePowerDemand, 1)
	assert.Assert(t, demand.IsEquality())
	assert.Equal(t, demand.Upper, 10.0)
	assert.Equal(t, len(demand.Terms()), 4)

	primary := p.RequirementRow(msg.PrimaryDemand, 2)
	assert.Equal(t, primary.Lower, 1.0)
	assert.Equal(t, len(primary.Terms()), 4)

	assert.Assert(t, p.RequirementRow(msg.SecondaryDemand, 0) == nil)
	assert.Assert(t, p.RequirementRow(msg.InertiaDemand, 0) == nil)
	assert.Equal(t, p.Block().Stats().Rows, 6)

	for _, u := range p.Units() {
		assert.Equal(t, u.Stage(), unit.ObjectiveReady)
	}
	late, err := slack.New("late")
	assert.NilError(t, err)
	assert.ErrorContains(t, p.AddUnit(late), "cannot add late after build")
}

func TestBuildRejectsHorizonMismatch(t *testing.T) {
	p := loadSystem(t)
	g := group.New("short")
	g.WriteDim("TimeHorizon", 2)
	g.WriteScalar("MaxPower", 1)
	s, err := slack.New("short")
	assert.NilError(t, err)
	assert.NilError(t, s.Deserialize(g))
	assert.NilError(t, p.AddUnit(s))
	assert.ErrorContains(t, p.AddUnit(s), "registered twice")
	assert.ErrorContains(t, p.Build(), "has horizon 2, want 3")
}

func TestApplyRoutesToUnits(t *testing.T) {
	p := loadSystem(t)
	assert.NilError(t, p.Build())
	h, b, pv, s := unitsOf(p)

	assert.NilError(t, p.Apply(Edit{
		Unit: h.PID(), Kind: msg.Inflow, Entity: 0, Values: []float64{7},
		Location: msg.Subset(1), Physical: unit.Silent, Abstract: unit.Silent,
	}))
	assert.Equal(t, h.BalanceRow(0, 1).Upper, 7.0)

	assert.NilError(t, p.Apply(Edit{
		Unit: h.PID(), Kind: msg.InitialVolume, Values: []float64{-1},
		Location: msg.Subset(0), Physical: unit.Silent, Abstract: unit.Silent,
	}))
	assert.Assert(t, h.InitialVolume(0).IsCyclical())
	assert.Assert(t, h.BalanceRow(0, 0).Has(h.Volume(0, 2)))

	assert.NilError(t, p.Apply(Edit{
		Unit: b.PID(), Kind: msg.InitialStorage, Values: []float64{4},
		Location: msg.Range(0, 1), Physical: unit.Silent, Abstract: unit.Silent,
	}))
	assert.Equal(t, b.InitialStorage().Value(), 4.0)
	assert.Equal(t, b.BalanceRow(0).Upper, 4.0)

	assert.NilError(t, p.Apply(Edit{
		Unit: pv.PID(), Kind: msg.Kappa, Values: []float64{0.5},
		Physical: unit.Silent, Abstract: unit.Silent,
	}))
	assert.Equal(t, pv.MaxPowerRow(1).Upper, 2.0)

	assert.NilError(t, p.Apply(Edit{
		Unit: s.PID(), Kind: msg.MaxPower, Values: []float64{500},
		Location: msg.All(3), Physical: unit.Silent, Abstract: unit.Silent,
	}))
	assert.Equal(t, s.Power(2).Upper, 500.0)
}

func TestApplyErrors(t *testing.T) {
	p := loadSystem(t)
	assert.NilError(t, p.Build())
	_, _, pv, _ := unitsOf(p)

	err := p.Apply(Edit{Unit: uuid.New(), Kind: msg.MaxPower})
	assert.ErrorContains(t, err, "no unit")
	err = p.Apply(Edit{Unit: pv.PID(), Kind: msg.Inflow, Values: []float64{1}, Location: msg.All(3)})
	assert.ErrorContains(t, err, "no editable field Inflow")
	err = p.Apply(Edit{Unit: pv.PID(), Kind: msg.Kappa, Values: []float64{1, 2}})
	assert.ErrorContains(t, err, "takes one value")
	err = p.Apply(Edit{Unit: p.PID(), Kind: msg.PrimaryDemand, Values: []float64{-1}, Location: msg.All(3), Physical: unit.Silent, Abstract: unit.Silent})
	assert.ErrorContains(t, err, "negative requirement")
}

func TestSetRequirementNotifies(t *testing.T) {
	p := loadSystem(t)
	assert.NilError(t, p.Build())
	sub := p.Subscribe(uuid.New())

	assert.NilError(t, p.Apply(Edit{
		Unit: p.PID(), Kind: msg.ActivePowerDemand, Values: []float64{12},
		Location: msg.Subset(2), Physical: unit.Notify, Abstract: unit.Notify,
	}))
	assert.Equal(t, p.RequirementRow(msg.ActivePowerDemand, 2).Lower, 12.0)
	m := <-sub
	assert.Equal(t, m.Layer, msg.Abstract)
	assert.Equal(t, m.Kind, msg.ActivePowerDemand)
	assert.Equal(t, m.PID(), p.PID())
	m = <-sub
	assert.Equal(t, m.Layer, msg.Physical)

	// unchanged and dry-run edits leave everything as is
	assert.NilError(t, p.SetRequirement(msg.ActivePowerDemand, []float64{12}, msg.Subset(2), unit.Notify, unit.Notify))
	assert.NilError(t, p.SetRequirement(msg.ActivePowerDemand, []float64{3}, msg.Subset(2), unit.DryRun, unit.Notify))
	assert.Equal(t, p.RequirementRow(msg.ActivePowerDemand, 2).Lower, 12.0)
	assert.Equal(t, len(sub), 0)
}

func TestFeasibility(t *testing.T) {
	g := group.New("island")
	g.WriteDim("TimeHorizon", 2)
	g.WriteScalar("ActivePowerDemand", 5)
	g.WriteScalar("PrimaryDemand", 1)
	pv := g.Sub("pv")
	pv.WriteDim("TimeHorizon", 2)
	pv.WriteScalar("MaxPower", 3)
	pv.WriteString("Type", unit.Intermittent.String())
	deficit := g.Sub("deficit")
	deficit.WriteDim("TimeHorizon", 2)
	deficit.WriteScalar("MaxPower", 100)
	deficit.WriteScalar("MaxPrimaryPower", 10)
	deficit.WriteString("Type", unit.Slack.String())

	p, err := New("island", unit.Capabilities{})
	assert.NilError(t, err)
	assert.NilError(t, p.Deserialize(g))
	assert.NilError(t, p.Build())

	_, _, solar, s := unitsOf(p)
	for i := 0; i < 2; i++ {
		solar.Power(i).Value = 3
		s.Power(i).Value = 2
		s.PrimaryReserve(i).Value = 1
	}
	assert.Assert(t, p.IsFeasible(1e-9))

	assert.NilError(t, p.SetRequirement(msg.ActivePowerDemand, []float64{6}, msg.Subset(1), unit.Silent, unit.Silent))
	assert.Assert(t, !p.IsFeasible(1e-9))
}

func TestBuildFailsWithoutContributors(t *testing.T) {
	g := group.New("empty")
	g.WriteDim("TimeHorizon", 2)
	g.WriteScalar("ActivePowerDemand", 5)
	p, err := New("empty", unit.Capabilities{})
	assert.NilError(t, err)
	assert.NilError(t, p.Deserialize(g))
	assert.ErrorContains(t, p.Build(), "no unit contributes to ActivePowerDemand at t=0")
	assert.Equal(t, p.Block().Stats().Rows, 0)
}

func TestSerializeRoundTrip(t *testing.T) {
	p := loadSystem(t)
	first := group.New("system")
	assert.NilError(t, p.Serialize(first))

	q, err := New("system", unit.Capabilities{})
	assert.NilError(t, err)
	assert.NilError(t, q.Deserialize(first))
	second := group.New("system")
	assert.NilError(t, q.Serialize(second))
	assert.DeepEqual(t, first, second)
	assert.Equal(t, len(second.Children()), 4)
}

func TestWriteCSV(t *testing.T) {
	p := loadSystem(t)
	assert.NilError(t, p.Build())
	var buf bytes.Buffer
	assert.NilError(t, p.WriteCSV(&buf))
	assert.Assert(t, strings.Contains(buf.String(), "ActivePowerDemand[0]"))
	assert.Assert(t, strings.Contains(buf.String(), "balance[1,2]"))
}

func TestBuildCountsSystemRows(t *testing.T) {
	p := loadSystem(t)
	before := testutil.ToFloat64(metrics.RowsGenerated.WithLabelValues("System"))
	assert.NilError(t, p.Build())
	after := testutil.ToFloat64(metrics.RowsGenerated.WithLabelValues("System"))
	assert.Equal(t, after-before, 6.0)
}
