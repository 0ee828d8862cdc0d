package hydro

import (
	"github.com/ohowland/cgc_ucblock/internal/pkg/group"
	"github.com/ohowland/cgc_ucblock/internal/pkg/timeseries"
)

// Serialize writes the physical representation in its smallest faithful
// encoding. Deserialize of the result yields the same unit.
func (u *Unit) Serialize(w group.Writer) error {
	u.WriteTimeFrame(w)
	w.WriteDim("NumberReservoirs", u.reservoirs)
	w.WriteDim("NumberArcs", u.arcs)
	w.WriteDim("TotalNumberPieces", len(u.linear))

	writeEntities(w, "StartArc", ints(u.start))
	writeEntities(w, "EndArc", ints(u.end))
	writeEntities(w, "UphillFlow", ints(u.uphill))
	writeEntities(w, "DownhillFlow", ints(u.downhill))
	writeEntities(w, "NumberPieces", ints(u.pieces))
	w.WriteSeries("LinearTerm", u.linear)
	w.WriteSeries("ConstantTerm", u.constant)

	u.WriteMatrix(w, "MinVolumetric", u.minVolume, timeseries.EntityMajor)
	u.WriteMatrix(w, "MaxVolumetric", u.maxVolume, timeseries.EntityMajor)
	u.WriteMatrix(w, "Inflows", u.inflow, timeseries.EntityMajor)
	u.WriteMatrix(w, "MinFlow", u.minFlow, timeseries.TimeMajor)
	u.WriteMatrix(w, "MaxFlow", u.maxFlow, timeseries.TimeMajor)
	u.WriteMatrix(w, "MinPower", u.minPower, timeseries.TimeMajor)
	u.WriteMatrix(w, "MaxPower", u.maxPower, timeseries.TimeMajor)
	u.WriteMatrix(w, "DeltaRampUp", u.rampUp, timeseries.TimeMajor)
	u.WriteMatrix(w, "DeltaRampDown", u.rampDown, timeseries.TimeMajor)
	u.WriteMatrix(w, "PrimaryRho", u.primaryRho, timeseries.TimeMajor)
	u.WriteMatrix(w, "SecondaryRho", u.secRho, timeseries.TimeMajor)
	u.WriteMatrix(w, "InertiaPower", u.inertia, timeseries.TimeMajor)
	u.WriteMatrix(w, "ActivePowerCost", u.cost, timeseries.TimeMajor)

	sentinels := make([]float64, len(u.initialVolume))
	for n, s := range u.initialVolume {
		sentinels[n] = s.Sentinel()
	}
	writeEntities(w, "InitialVolumetric", sentinels)
	writeEntities(w, "InitialFlowRate", u.initialFlow)
	writeEntities(w, "FinalVolumeValue", u.finalValue)
	w.WriteScalar("Kappa", u.kappa)
	w.WriteScalar("Scale", u.scale)
	return nil
}

// writeEntities writes a per-entity vector, collapsed to a scalar when every
// entity shares one value.
func writeEntities(w group.Writer, name string, v []float64) {
	if len(v) > 1 {
		for _, x := range v[1:] {
			if x != v[0] {
				w.WriteSeries(name, v)
				return
			}
		}
	}
	if len(v) > 0 {
		w.WriteScalar(name, v[0])
	}
}

func ints(v []int) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
