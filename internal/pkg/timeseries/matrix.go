package timeseries

import "gonum.org/v1/gonum/mat"

// Axis is the on-disk orientation of a two dimensional series.
type Axis int

const (
	// TimeMajor series are stored time x entity (arc quantities).
	TimeMajor Axis = iota
	// EntityMajor series are stored entity x time (reservoir quantities).
	EntityMajor
)

// orient returns raw in canonical orientation for axis as (time extent,
// entity extent, accessor). A vector with a unit axis is transposed only when
// its other extent equals a multi-entity count, which tells a per-entity
// constant apart from a per-time vector shared by every entity.
func orient(raw *mat.Dense, axis Axis, entities int) (int, int, func(t, e int) float64) {
	r, c := raw.Dims()
	if axis == TimeMajor {
		if c == 1 && r > 1 && entities > 1 && r == entities {
			return 1, r, func(t, e int) float64 { return raw.At(e, t) }
		}
		return r, c, func(t, e int) float64 { return raw.At(t, e) }
	}
	if r == 1 && c > 1 && entities > 1 && c == entities {
		return 1, c, func(t, e int) float64 { return raw.At(t, e) }
	}
	return c, r, func(t, e int) float64 { return raw.At(e, t) }
}

// ExpandMatrix expands a two dimensional compressed series into a dense
// entities x T matrix. An entity extent of one is shared by all entities. A
// nil raw, or an empty result, yields nil.
func ExpandMatrix(raw *mat.Dense, axis Axis, entities int, tf TimeFrame) (*mat.Dense, error) {
	if raw == nil || raw.IsEmpty() {
		return nil, nil
	}
	timeLen, entLen, at := orient(raw, axis, entities)
	if entLen != 1 && entLen != entities {
		r, c := raw.Dims()
		return nil, &DataShapeError{Len: r * c, Horizon: tf.horizon, Intervals: tf.intervals}
	}
	if entities == 0 || tf.horizon == 0 {
		return nil, nil
	}

	out := mat.NewDense(entities, tf.horizon, nil)
	line := make([]float64, timeLen)
	for e := 0; e < entities; e++ {
		src := e
		if entLen == 1 {
			src = 0
		}
		for t := range line {
			line[t] = at(t, src)
		}
		dense, err := Expand(line, tf)
		if err != nil {
			return nil, err
		}
		out.SetRow(e, dense)
	}
	return out, nil
}

// CompressMatrix is the inverse of ExpandMatrix for persistence. It returns a
// 1x1 matrix when every entry is equal, a per-entity vector when every entity
// is constant over time, and the full matrix in axis orientation otherwise.
func CompressMatrix(dense *mat.Dense, axis Axis) *mat.Dense {
	if dense == nil || dense.IsEmpty() {
		return nil
	}
	entities, T := dense.Dims()
	first := dense.At(0, 0)
	same, perEntity := true, true
	for e := 0; e < entities; e++ {
		row := dense.RawRowView(e)
		if !allEqual(row) {
			perEntity = false
		}
		if row[0] != first {
			same = false
		}
	}
	switch {
	case same && perEntity:
		return mat.NewDense(1, 1, []float64{first})
	case perEntity:
		vals := make([]float64, entities)
		for e := range vals {
			vals[e] = dense.At(e, 0)
		}
		if axis == TimeMajor {
			return mat.NewDense(1, entities, vals)
		}
		return mat.NewDense(entities, 1, vals)
	}
	if axis == TimeMajor {
		out := mat.NewDense(T, entities, nil)
		out.Copy(dense.T())
		return out
	}
	return mat.DenseCopyOf(dense)
}
