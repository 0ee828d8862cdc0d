package timeseries

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gotest.tools/v3/assert"
)

func newFrame(t *testing.T, horizon, intervals int, bp []int) TimeFrame {
	tf, err := NewTimeFrame(horizon, intervals, bp)
	assert.NilError(t, err)
	return tf
}

func TestNewTimeFrameDefaultsToOneIntervalPerStep(t *testing.T) {
	tf := newFrame(t, 24, 0, nil)
	assert.Equal(t, tf.Horizon(), 24)
	assert.Equal(t, tf.Intervals(), 24)
	assert.Equal(t, len(tf.Breakpoints()), 0)
}

func TestNewTimeFrameRejectsBadBreakpoints(t *testing.T) {
	_, err := NewTimeFrame(6, 3, []int{3, 1, 5})
	assert.ErrorContains(t, err, "non-decreasing")

	_, err = NewTimeFrame(6, 3, []int{2, 6, 9})
	assert.ErrorContains(t, err, "below 6")

	_, err = NewTimeFrame(6, 3, []int{2})
	var dse *DataShapeError
	assert.Assert(t, errors.As(err, &dse))
	assert.Equal(t, dse.Name, "ChangeIntervals")
}

func TestExpandEmpty(t *testing.T) {
	tf := newFrame(t, 4, 0, nil)
	out, err := Expand(nil, tf)
	assert.NilError(t, err)
	assert.Equal(t, len(out), 0)
}

func TestExpandScalarIgnoresIntervals(t *testing.T) {
	for _, tf := range []TimeFrame{
		newFrame(t, 5, 0, nil),
		newFrame(t, 5, 2, []int{1, 99}),
		newFrame(t, 5, 3, []int{0, 3, 4}),
	} {
		out, err := Expand([]float64{7.5}, tf)
		assert.NilError(t, err)
		assert.DeepEqual(t, out, []float64{7.5, 7.5, 7.5, 7.5, 7.5})
	}
}

func TestExpandIntervals(t *testing.T) {
	// the stored value of the last breakpoint is never read
	tf := newFrame(t, 6, 3, []int{1, 3, 0})
	out, err := Expand([]float64{1, 2, 3}, tf)
	assert.NilError(t, err)
	assert.DeepEqual(t, out, []float64{1, 1, 2, 2, 3, 3})
}

func TestExpandDense(t *testing.T) {
	tf := newFrame(t, 3, 2, []int{0})
	raw := []float64{4, 5, 6}
	out, err := Expand(raw, tf)
	assert.NilError(t, err)
	assert.DeepEqual(t, out, raw)

	out[0] = 100
	assert.Equal(t, raw[0], 4.0)
}

func TestExpandBadLength(t *testing.T) {
	tf := newFrame(t, 6, 3, []int{1, 3})
	for _, raw := range [][]float64{{1, 2}, {1, 2, 3, 4}, {1, 2, 3, 4, 5, 6, 7}} {
		_, err := Expand(raw, tf)
		var dse *DataShapeError
		assert.Assert(t, errors.As(err, &dse), "length %d", len(raw))
		assert.Equal(t, dse.Len, len(raw))
		assert.Equal(t, dse.Horizon, 6)
		assert.Equal(t, dse.Intervals, 3)
	}
}

func TestExpandCompressRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		T, K  int
		bp    []int
		dense []float64
		size  int
	}{
		{"constant", 4, 2, []int{1}, []float64{3, 3, 3, 3}, 1},
		{"piecewise", 6, 3, []int{1, 3}, []float64{1, 1, 2, 2, 3, 3}, 3},
		{"empty interval", 6, 4, []int{1, 1, 3}, []float64{1, 1, 2, 2, 3, 3}, 4},
		{"dense", 5, 2, []int{2}, []float64{1, 2, 3, 4, 5}, 5},
		{"one step per interval", 3, 0, nil, []float64{9, 8, 7}, 3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tf := newFrame(t, c.T, c.K, c.bp)
			raw := Compress(c.dense, tf)
			assert.Equal(t, len(raw), c.size)
			out, err := Expand(raw, tf)
			assert.NilError(t, err)
			assert.DeepEqual(t, out, c.dense)
		})
	}
}

func TestNamed(t *testing.T) {
	tf := newFrame(t, 3, 0, nil)
	_, err := Expand([]float64{1, 2}, tf)
	err = Named(err, "Inflows")
	assert.ErrorContains(t, err, "Inflows: length 2")
}

func TestExpandMatrixTimeMajorPerEntityColumn(t *testing.T) {
	tf := newFrame(t, 3, 0, nil)
	// three arcs given as a column: one constant per arc
	raw := mat.NewDense(3, 1, []float64{1, 2, 3})
	out, err := ExpandMatrix(raw, TimeMajor, 3, tf)
	assert.NilError(t, err)
	assert.DeepEqual(t, out.RawRowView(0), []float64{1, 1, 1})
	assert.DeepEqual(t, out.RawRowView(2), []float64{3, 3, 3})
}

func TestExpandMatrixTimeMajorPerTimeColumn(t *testing.T) {
	tf := newFrame(t, 3, 0, nil)
	// horizon length column with two arcs: shared by both arcs
	raw := mat.NewDense(3, 1, []float64{1, 2, 3})
	out, err := ExpandMatrix(raw, TimeMajor, 2, tf)
	assert.NilError(t, err)
	assert.DeepEqual(t, out.RawRowView(0), []float64{1, 2, 3})
	assert.DeepEqual(t, out.RawRowView(1), []float64{1, 2, 3})
}

func TestExpandMatrixSingleEntityColumnIsTime(t *testing.T) {
	tf := newFrame(t, 4, 2, []int{1})
	raw := mat.NewDense(2, 1, []float64{5, 6})
	out, err := ExpandMatrix(raw, TimeMajor, 1, tf)
	assert.NilError(t, err)
	assert.DeepEqual(t, out.RawRowView(0), []float64{5, 5, 6, 6})
}

func TestExpandMatrixEntityMajor(t *testing.T) {
	tf := newFrame(t, 4, 2, []int{1})
	raw := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	out, err := ExpandMatrix(raw, EntityMajor, 2, tf)
	assert.NilError(t, err)
	assert.DeepEqual(t, out.RawRowView(0), []float64{1, 1, 2, 2})
	assert.DeepEqual(t, out.RawRowView(1), []float64{3, 3, 4, 4})

	row := mat.NewDense(1, 2, []float64{8, 9})
	out, err = ExpandMatrix(row, EntityMajor, 2, tf)
	assert.NilError(t, err)
	assert.DeepEqual(t, out.RawRowView(0), []float64{8, 8, 8, 8})
	assert.DeepEqual(t, out.RawRowView(1), []float64{9, 9, 9, 9})
}

func TestExpandMatrixBadEntityExtent(t *testing.T) {
	tf := newFrame(t, 3, 0, nil)
	raw := mat.NewDense(3, 2, nil)
	_, err := ExpandMatrix(raw, TimeMajor, 4, tf)
	var dse *DataShapeError
	assert.Assert(t, errors.As(err, &dse))
}

func TestCompressMatrixRoundTrip(t *testing.T) {
	tf := newFrame(t, 3, 0, nil)
	for _, axis := range []Axis{TimeMajor, EntityMajor} {
		for _, dense := range []*mat.Dense{
			mat.NewDense(2, 3, []float64{1, 1, 1, 1, 1, 1}),
			mat.NewDense(2, 3, []float64{1, 1, 1, 2, 2, 2}),
			mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}),
			mat.NewDense(1, 3, []float64{1, 2, 3}),
		} {
			entities, _ := dense.Dims()
			raw := CompressMatrix(dense, axis)
			out, err := ExpandMatrix(raw, axis, entities, tf)
			assert.NilError(t, err)
			assert.Assert(t, mat.Equal(out, dense))
		}
	}
}
