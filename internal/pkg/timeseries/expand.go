package timeseries

// Expand turns a compressed series into a dense vector of length T.
//
//	empty        -> empty (the caller's default applies)
//	1 value      -> repeated T times
//	K values     -> piecewise constant on the change intervals, 1 < K < T
//	T values     -> copied unchanged
//
// Any other length fails with a *DataShapeError.
func Expand(raw []float64, tf TimeFrame) ([]float64, error) {
	T := tf.horizon
	switch n := len(raw); {
	case n == 0:
		return nil, nil
	case n == 1:
		out := make([]float64, T)
		for t := range out {
			out[t] = raw[0]
		}
		return out, nil
	case n == T:
		return append([]float64(nil), raw...), nil
	case n < T && n == tf.intervals:
		out := make([]float64, T)
		for k := 0; k < n; k++ {
			lo, hi := tf.interval(k)
			for t := lo; t <= hi; t++ {
				out[t] = raw[k]
			}
		}
		return out, nil
	default:
		return nil, &DataShapeError{Len: n, Horizon: T, Intervals: tf.intervals}
	}
}

// Compress returns the smallest encoding of dense that Expand maps back to
// dense: a scalar when all entries are equal, one value per change interval
// when dense is constant on every interval, and a copy of dense otherwise.
func Compress(dense []float64, tf TimeFrame) []float64 {
	if len(dense) == 0 {
		return nil
	}
	if allEqual(dense) {
		return []float64{dense[0]}
	}
	K := tf.intervals
	if K > 1 && K < tf.horizon && len(dense) == tf.horizon {
		out := make([]float64, K)
		ok := true
		carry := dense[0]
		for k := 0; k < K && ok; k++ {
			lo, hi := tf.interval(k)
			if lo > hi {
				out[k] = carry
				continue
			}
			out[k] = dense[lo]
			for t := lo + 1; t <= hi; t++ {
				if dense[t] != dense[lo] {
					ok = false
					break
				}
			}
			carry = dense[lo]
		}
		if ok {
			return out
		}
	}
	return append([]float64(nil), dense...)
}

func allEqual(v []float64) bool {
	for _, x := range v[1:] {
		if x != v[0] {
			return false
		}
	}
	return true
}
