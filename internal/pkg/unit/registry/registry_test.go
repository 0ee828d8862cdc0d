package registry

import (
	"testing"

	"github.com/ohowland/cgc_ucblock/internal/pkg/group"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit/hydro"
	"gotest.tools/v3/assert"
)

func TestNew(t *testing.T) {
	for _, kind := range []unit.Kind{unit.Battery, unit.Hydro, unit.Intermittent, unit.Slack} {
		u, err := New(kind.String(), "u")
		assert.NilError(t, err)
		assert.Equal(t, u.Kind(), kind)
		assert.Equal(t, u.Name(), "u")
		assert.Equal(t, u.Stage(), unit.Unbuilt)
	}
	_, err := New("ThermalUnitBlock", "u")
	assert.ErrorContains(t, err, `unknown unit type "ThermalUnitBlock"`)
}

func TestLoadAndSave(t *testing.T) {
	cascade, err := group.Load("../hydro/testdata/cascade.json")
	assert.NilError(t, err)

	doc := group.New("system")
	doc.Groups = append(doc.Groups, cascade)
	doc.Sub("notes")
	pv := doc.Sub("pv")
	pv.WriteDim("TimeHorizon", 3)
	pv.WriteScalar("MaxPower", 4)
	pv.WriteString("Type", unit.Intermittent.String())

	units, err := Load(doc)
	assert.NilError(t, err)
	assert.Equal(t, len(units), 2)
	h, ok := units[0].(*hydro.Unit)
	assert.Assert(t, ok)
	assert.Equal(t, h.Reservoirs(), 2)
	assert.Equal(t, units[1].Kind(), unit.Intermittent)

	out := group.New("system")
	assert.NilError(t, Save(out, units))
	assert.Equal(t, len(out.Children()), 2)
	kind, _ := out.Child("cascade").ReadString("Type")
	assert.Equal(t, kind, "HydroUnitBlock")
}

func TestLoadReportsBadUnit(t *testing.T) {
	doc := group.New("system")
	bad := doc.Sub("deficit")
	bad.WriteDim("TimeHorizon", 2)
	bad.WriteString("Type", unit.Slack.String())
	_, err := Load(doc)
	assert.ErrorContains(t, err, "deficit: MaxPower: required but missing")

	doc = group.New("system")
	doc.Sub("x").WriteString("Type", "Nope")
	_, err = Load(doc)
	assert.ErrorContains(t, err, "x: unknown unit type")
}
