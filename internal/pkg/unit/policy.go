package unit

// Policy gates one side of a setter.
type Policy int

const (
	// DryRun validates the change without committing it.
	DryRun Policy = iota
	// Silent commits without emitting a Modification.
	Silent
	// Notify commits and emits a Modification.
	Notify
)

// Commits reports whether p changes data.
func (p Policy) Commits() bool {
	return p != DryRun
}

func (p Policy) String() string {
	switch p {
	case Silent:
		return "silent"
	case Notify:
		return "notify"
	}
	return "dry-run"
}

// InitialState is the boundary condition of a storage-like quantity at t=0:
// a fixed level, or cyclical (the first period follows the last one).
type InitialState struct {
	cyclical bool
	value    float64
}

// Fixed returns a fixed initial level.
func Fixed(v float64) InitialState {
	return InitialState{value: v}
}

// Cyclical returns the cyclical boundary condition.
func Cyclical() InitialState {
	return InitialState{cyclical: true}
}

// IsCyclical reports whether s is cyclical.
func (s InitialState) IsCyclical() bool {
	return s.cyclical
}

// Value returns the fixed level, zero when cyclical.
func (s InitialState) Value() float64 {
	if s.cyclical {
		return 0
	}
	return s.value
}

// FromSentinel decodes the persisted convention where a negative level
// means cyclical.
func FromSentinel(v float64) InitialState {
	if v < 0 {
		return Cyclical()
	}
	return Fixed(v)
}

// Sentinel encodes s in the persisted convention.
func (s InitialState) Sentinel() float64 {
	if s.cyclical {
		return -1
	}
	return s.value
}
