package mongodb

import (
	"testing"
	"time"

	"github.com/ohowland/cgc_ucblock/internal/pkg/group"
	"go.mongodb.org/mongo-driver/bson"
	"gotest.tools/v3/assert"
)

func TestDocumentRoundTrip(t *testing.T) {
	g := group.New("system")
	g.WriteDim("TimeHorizon", 3)
	g.WriteSeries("ActivePowerDemand", []float64{8, 10, 6})
	pv := g.Sub("pv")
	pv.WriteScalar("MaxPower", 4)
	pv.WriteString("Type", "IntermittentUnitBlock")

	raw, err := bson.Marshal(document{Name: "system", Saved: time.Now(), Group: g})
	assert.NilError(t, err)
	got, err := decode(raw)
	assert.NilError(t, err)

	h, ok := got.ReadDim("TimeHorizon")
	assert.Assert(t, ok)
	assert.Equal(t, h, 3)
	demand, err := got.ReadSeries("ActivePowerDemand", 3)
	assert.NilError(t, err)
	assert.DeepEqual(t, demand, []float64{8, 10, 6})
	kind, _ := got.Child("pv").ReadString("Type")
	assert.Equal(t, kind, "IntermittentUnitBlock")
	// sub-groups without dims decode with usable maps
	got.Child("pv").WriteDim("TimeHorizon", 3)
}

func TestDecodeEmptyDocument(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"_id": "x"})
	assert.NilError(t, err)
	_, err = decode(raw)
	assert.ErrorContains(t, err, "x: empty document")
}
