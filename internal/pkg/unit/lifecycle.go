package unit

// Stage is a step of the build lifecycle.
type Stage int

const (
	Unbuilt Stage = iota
	VariablesReady
	ConstraintsReady
	ObjectiveReady
)

func (s Stage) String() string {
	switch s {
	case VariablesReady:
		return "VariablesReady"
	case ConstraintsReady:
		return "ConstraintsReady"
	case ObjectiveReady:
		return "ObjectiveReady"
	}
	return "Unbuilt"
}

// Lifecycle replaces per-artifact "generated" flags with one monotone state.
type Lifecycle struct {
	stage Stage
}

// Stage returns the current state.
func (l Lifecycle) Stage() Stage {
	return l.stage
}

// Reached reports whether s or a later state has been reached.
func (l Lifecycle) Reached(s Stage) bool {
	return l.stage >= s
}

// Advance moves forward to s. It never moves backward.
func (l *Lifecycle) Advance(s Stage) {
	if s > l.stage {
		l.stage = s
	}
}

// Reset returns to Unbuilt, used when a unit is re-deserialized.
func (l *Lifecycle) Reset() {
	l.stage = Unbuilt
}
