package intermittent

import (
	"testing"

	"github.com/ohowland/cgc_ucblock/internal/pkg/group"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
	"gotest.tools/v3/assert"
)

func forecast() *group.Group {
	g := group.New("pv")
	g.WriteDim("TimeHorizon", 4)
	g.WriteDim("NumberIntervals", 2)
	g.WriteSeries("ChangeIntervals", []float64{1, 3})
	g.WriteSeries("MaxPower", []float64{3, 8})
	g.WriteScalar("Gamma", 0.25)
	g.WriteScalar("ActivePowerCost", 0.5)
	return g
}

func TestIntermittentRows(t *testing.T) {
	u, err := New("pv")
	assert.NilError(t, err)
	assert.NilError(t, u.Deserialize(forecast()))
	assert.NilError(t, u.GenerateObjective(unit.Capabilities{SecondaryReserve: true}))

	assert.Equal(t, u.MaxPowerRow(1).Upper, 3.0)
	assert.Equal(t, u.MaxPowerRow(2).Upper, 8.0)
	assert.Equal(t, len(u.MaxPowerRow(0).Terms()), 2)
	assert.Equal(t, u.InertiaTerms(3)[0].Coef, 0.25)
	assert.Equal(t, len(u.SecondaryReserveTerms(3)), 1)

	u.Power(2).Value = 8
	assert.Assert(t, u.IsFeasible(1e-9))
	u.Power(1).Value = 4
	assert.Assert(t, !u.IsFeasible(1e-9))
}

func TestIntermittentSetters(t *testing.T) {
	u, err := New("pv")
	assert.NilError(t, err)
	assert.NilError(t, u.Deserialize(forecast()))
	assert.NilError(t, u.GenerateObjective(unit.Capabilities{}))

	assert.NilError(t, u.SetMaxPower([]float64{6, 1}, msg.Subset(3, 0), unit.Silent, unit.Silent))
	assert.Equal(t, u.MaxPowerRow(0).Upper, 1.0)
	assert.Equal(t, u.MaxPowerRow(3).Upper, 6.0)
	assert.NilError(t, u.SetKappa(2, unit.Silent, unit.Silent))
	assert.Equal(t, u.MaxPowerRow(3).Upper, 12.0)
	assert.NilError(t, u.SetScale(4, unit.Silent, unit.Silent))
	c, err := u.Block().Objective().Coefficient(u.Power(1))
	assert.NilError(t, err)
	assert.Equal(t, c, 2.0)
	assert.ErrorContains(t, u.SetMaxPower([]float64{-1}, msg.Subset(0), unit.Silent, unit.Silent), "below MinPower")

	out := group.New("pv")
	assert.NilError(t, u.Serialize(out))
	maxPower, err := out.ReadSeries("MaxPower", 0)
	assert.NilError(t, err)
	assert.DeepEqual(t, maxPower, []float64{1, 3, 8, 6})
}
