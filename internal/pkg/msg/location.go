package msg

import (
	"fmt"
	"sort"
)

// Location selects the affected time steps or entities of a change: either a
// half-open range [Start, Stop) or an explicit subset of indices.
type Location struct {
	Start, Stop int
	Subset      []int
	isSubset    bool
}

// Range returns the contiguous location [start, stop).
func Range(start, stop int) Location {
	return Location{Start: start, Stop: stop}
}

// All returns the range covering n indices.
func All(n int) Location {
	return Range(0, n)
}

// Subset returns the location made of the given indices.
func Subset(idx ...int) Location {
	return Location{Subset: append([]int(nil), idx...), isSubset: true}
}

// IsSubset reports whether l is an explicit subset.
func (l Location) IsSubset() bool {
	return l.isSubset
}

// Len returns the number of selected indices.
func (l Location) Len() int {
	if l.isSubset {
		return len(l.Subset)
	}
	if l.Stop <= l.Start {
		return 0
	}
	return l.Stop - l.Start
}

// Empty reports whether l selects nothing.
func (l Location) Empty() bool {
	return l.Len() == 0
}

// Clip restricts a range to [0, n) and drops subset indices outside it.
func (l Location) Clip(n int) Location {
	if !l.isSubset {
		start, stop := l.Start, l.Stop
		if start < 0 {
			start = 0
		}
		if stop > n {
			stop = n
		}
		return Range(start, stop)
	}
	out := make([]int, 0, len(l.Subset))
	for _, i := range l.Subset {
		if i >= 0 && i < n {
			out = append(out, i)
		}
	}
	return Subset(out...)
}

// Sorted returns l with a sorted, duplicate free subset.
func (l Location) Sorted() Location {
	if !l.isSubset {
		return l
	}
	idx := append([]int(nil), l.Subset...)
	sort.Ints(idx)
	out := idx[:0]
	for _, v := range idx {
		if len(out) == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return Subset(out...)
}

// Indices lists the selected indices in order.
func (l Location) Indices() []int {
	if l.isSubset {
		return append([]int(nil), l.Subset...)
	}
	out := make([]int, 0, l.Len())
	for i := l.Start; i < l.Stop; i++ {
		out = append(out, i)
	}
	return out
}

// Validate checks that every index lies in [0, n).
func (l Location) Validate(n int) error {
	if !l.isSubset {
		if l.Empty() {
			return nil
		}
		if l.Start < 0 || l.Stop > n {
			return fmt.Errorf("range [%d, %d) outside [0, %d)", l.Start, l.Stop, n)
		}
		return nil
	}
	for _, i := range l.Subset {
		if i < 0 || i >= n {
			return fmt.Errorf("index %d outside [0, %d)", i, n)
		}
	}
	return nil
}

func (l Location) String() string {
	if l.isSubset {
		return fmt.Sprint(l.Subset)
	}
	return fmt.Sprintf("[%d, %d)", l.Start, l.Stop)
}
