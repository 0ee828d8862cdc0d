// Package unit holds the infrastructure shared by every unit model: the
// closed set of unit kinds, the build lifecycle, the capability set resolved
// by the owning problem, and the abstract/physical duality protocol.
package unit

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_ucblock/internal/pkg/group"
	"github.com/ohowland/cgc_ucblock/internal/pkg/lp"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
)

// Kind tags the closed set of unit models.
type Kind int

const (
	Battery Kind = iota
	Hydro
	Intermittent
	Slack
)

var kindNames = [...]string{"BatteryUnitBlock", "HydroUnitBlock", "IntermittentUnitBlock", "SlackUnitBlock"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a persisted type name to its Kind.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown unit type %q", s)
}

// Capabilities is the set of system-wide features units generate artifacts
// for. The owning problem resolves it once before any unit is built.
type Capabilities struct {
	PrimaryReserve   bool
	SecondaryReserve bool
	Inertia          bool
}

// Unit is the capability interface every unit model implements. The
// unexported method closes the set to types embedding Base.
type Unit interface {
	PID() uuid.UUID
	Name() string
	Kind() Kind
	Stage() Stage
	Block() *lp.Block
	Publisher() *msg.PubSub

	Deserialize(group.Reader) error
	Serialize(group.Writer) error

	GenerateVariables(Capabilities) error
	GenerateConstraints(Capabilities) error
	GenerateObjective(Capabilities) error
	IsFeasible(tol float64) bool

	// PowerTerms returns the terms of the unit's active power at time t.
	PowerTerms(t int) []lp.Term
	PrimaryReserveTerms(t int) []lp.Term
	SecondaryReserveTerms(t int) []lp.Term
	InertiaTerms(t int) []lp.Term

	isUnit()
}
