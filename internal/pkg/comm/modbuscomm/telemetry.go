package modbuscomm

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_ucblock/internal/pkg/config"
	"github.com/ohowland/cgc_ucblock/internal/pkg/dispatch/lpdispatch"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
)

// Target receives the edits built from telemetry.
type Target interface {
	Apply(lpdispatch.Edit) error
}

// Edits maps register readings to initial condition edits of unit pid.
// Reservoir levels and arc flows are addressed through the register entity,
// battery storage and power are unit wide. Registers without a reading are
// skipped.
func Edits(pid uuid.UUID, registers []config.Register, readings map[string]float64) ([]lpdispatch.Edit, error) {
	var edits []lpdispatch.Edit
	for _, r := range registers {
		v, ok := readings[r.Name]
		if !ok {
			continue
		}
		e := lpdispatch.Edit{
			Unit:     pid,
			Kind:     msg.Kind(r.Field),
			Entity:   msg.NoEntity,
			Values:   []float64{v},
			Physical: unit.Notify,
			Abstract: unit.Notify,
		}
		switch e.Kind {
		case msg.InitialVolume, msg.InitialFlowRate:
			e.Location = msg.Subset(r.Entity)
		case msg.InitialStorage, msg.InitialPower:
			e.Location = msg.Range(0, 1)
		default:
			return nil, fmt.Errorf("modbus: register %s: unsupported telemetry field %q", r.Name, r.Field)
		}
		edits = append(edits, e)
	}
	return edits, nil
}

// Apply builds the edits of readings and applies them to t in order. It
// stops at the first rejected edit.
func Apply(t Target, pid uuid.UUID, registers []config.Register, readings map[string]float64) error {
	edits, err := Edits(pid, registers, readings)
	if err != nil {
		return err
	}
	for _, e := range edits {
		if err := t.Apply(e); err != nil {
			return err
		}
	}
	return nil
}
