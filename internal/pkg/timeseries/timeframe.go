// Package timeseries expands compressed per-unit parameters into dense
// per-time-step vectors and compresses them back for persistence.
package timeseries

import "fmt"

// TimeFrame holds the horizon and the change-interval breakpoints shared by
// every parameter of one unit.
type TimeFrame struct {
	horizon     int
	intervals   int
	breakpoints []int
}

// NewTimeFrame validates and returns a TimeFrame. A non-positive number of
// intervals means one interval per time step. The breakpoints are only read
// when 1 < intervals < horizon, and the last one never is.
func NewTimeFrame(horizon, intervals int, breakpoints []int) (TimeFrame, error) {
	if horizon < 0 {
		return TimeFrame{}, fmt.Errorf("negative time horizon %d", horizon)
	}
	if intervals <= 0 {
		intervals = horizon
	}
	tf := TimeFrame{horizon: horizon, intervals: intervals}
	if intervals <= 1 || intervals >= horizon {
		return tf, nil
	}

	if len(breakpoints) < intervals-1 {
		return TimeFrame{}, &DataShapeError{
			Name:      "ChangeIntervals",
			Len:       len(breakpoints),
			Horizon:   horizon,
			Intervals: intervals,
		}
	}

	prev := -1
	for k := 0; k < intervals-1; k++ {
		bp := breakpoints[k]
		if bp < prev || bp >= horizon {
			return TimeFrame{}, fmt.Errorf("change interval %d ends at %d: breakpoints must be non-decreasing and below %d", k, bp, horizon)
		}
		prev = bp
	}
	tf.breakpoints = append([]int(nil), breakpoints[:intervals-1]...)
	return tf, nil
}

// Horizon returns the number of time steps T.
func (tf TimeFrame) Horizon() int {
	return tf.horizon
}

// Intervals returns the number of change intervals K.
func (tf TimeFrame) Intervals() int {
	return tf.intervals
}

// Breakpoints returns the usable breakpoints, one fewer than Intervals when
// 1 < K < T and none otherwise.
func (tf TimeFrame) Breakpoints() []int {
	return append([]int(nil), tf.breakpoints...)
}

// interval returns the inclusive time span [lo, hi] covered by interval k.
func (tf TimeFrame) interval(k int) (int, int) {
	lo := 0
	if k > 0 {
		lo = tf.breakpoints[k-1] + 1
	}
	hi := tf.horizon - 1
	if k < tf.intervals-1 {
		hi = tf.breakpoints[k]
	}
	return lo, hi
}
