package modbuscomm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_ucblock/internal/pkg/config"
	"github.com/ohowland/cgc_ucblock/internal/pkg/dispatch/lpdispatch"
	"github.com/ohowland/cgc_ucblock/internal/pkg/group"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit/hydro"
	"gotest.tools/v3/assert"
)

type fakeDevice map[uint16][]byte

func (d fakeDevice) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	b, ok := d[address]
	if !ok {
		return nil, errors.New("illegal data address")
	}
	return b, nil
}

var registers = []config.Register{
	{Name: "upper level", Field: "InitialVolume", Entity: 1, Address: 100, Type: "u16", Endian: "big", Scale: 0.5},
	{Name: "turbine flow", Field: "InitialFlowRate", Entity: 0, Address: 102, Type: "f32", Endian: "big", Scale: 1},
}

func TestPollerRead(t *testing.T) {
	p := &Poller{
		client:    fakeDevice{100: {0, 40}, 102: {64, 64, 0, 0}},
		registers: registers,
	}
	values, err := p.Read()
	assert.NilError(t, err)
	assert.DeepEqual(t, values, map[string]float64{"upper level": 20, "turbine flow": 3})

	p.client = fakeDevice{100: {0, 40}}
	values, err = p.Read()
	assert.ErrorContains(t, err, "register turbine flow: illegal data address")
	assert.Equal(t, len(values), 1)
}

func TestNewPollerRejectsUnknownType(t *testing.T) {
	_, err := NewPoller(config.Modbus{Address: "localhost:502", Registers: []config.Register{{Name: "x", Type: "bcd"}}})
	assert.ErrorContains(t, err, `unknown type "bcd"`)
}

func TestEdits(t *testing.T) {
	edits, err := Edits(hydroPID, registers, map[string]float64{"turbine flow": 3})
	assert.NilError(t, err)
	assert.Equal(t, len(edits), 1)
	assert.Equal(t, edits[0].Kind, msg.InitialFlowRate)
	assert.DeepEqual(t, edits[0].Location.Indices(), []int{0})
	assert.Equal(t, edits[0].Physical, unit.Notify)

	_, err = Edits(hydroPID, []config.Register{{Name: "q", Field: "Inflow"}}, map[string]float64{"q": 1})
	assert.ErrorContains(t, err, `unsupported telemetry field "Inflow"`)
}

var hydroPID = uuid.UUID{1}

func TestTelemetryDrivesHydroInitialConditions(t *testing.T) {
	g, err := group.Load("../../dispatch/lpdispatch/testdata/system.json")
	assert.NilError(t, err)
	p, err := lpdispatch.New("system", unit.Capabilities{})
	assert.NilError(t, err)
	assert.NilError(t, p.Deserialize(g))
	assert.NilError(t, p.Build())

	var h *hydro.Unit
	for _, u := range p.Units() {
		if hu, ok := u.(*hydro.Unit); ok {
			h = hu
		}
	}
	poller := &Poller{
		client:    fakeDevice{100: {0, 40}, 102: {64, 64, 0, 0}},
		registers: registers,
		interval:  time.Millisecond,
		log:       h.Log(),
	}
	sub := h.Publisher().Subscribe(h.PID())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx, func(v map[string]float64) error {
			defer cancel()
			return Apply(p, h.PID(), registers, v)
		})
		close(done)
	}()
	<-done

	assert.Equal(t, h.InitialVolume(1).Value(), 20.0)
	assert.Equal(t, h.BalanceRow(1, 0).Upper, 20.0)
	assert.Assert(t, len(sub) >= 2)
}
