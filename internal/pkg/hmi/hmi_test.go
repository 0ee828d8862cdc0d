package hmi

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_ucblock/internal/pkg/dispatch/lpdispatch"
	"github.com/ohowland/cgc_ucblock/internal/pkg/group"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
	"gotest.tools/v3/assert"
)

func newHMI(t *testing.T) (*HMI, *lpdispatch.Problem) {
	g, err := group.Load("../dispatch/lpdispatch/testdata/system.json")
	assert.NilError(t, err)
	p, err := lpdispatch.New("system", unit.Capabilities{})
	assert.NilError(t, err)
	assert.NilError(t, p.Deserialize(g))
	h, err := New(p)
	assert.NilError(t, err)
	return h, p
}

func TestUnitTable(t *testing.T) {
	h, p := newHMI(t)
	assert.Equal(t, h.units.GetRowCount(), len(p.Units())+1)
	assert.Equal(t, h.units.GetCell(0, 2).Text, "Stage")
	assert.Equal(t, h.units.GetCell(1, 0).Text, p.Units()[0].Name())
	assert.Equal(t, h.units.GetCell(1, 4).Text, "0")

	assert.NilError(t, p.Build())
	h.Refresh()
	assert.Equal(t, h.units.GetCell(1, 2).Text, unit.ObjectiveReady.String())
	assert.Assert(t, h.units.GetCell(1, 4).Text != "0")
}

func TestLine(t *testing.T) {
	h, p := newHMI(t)
	at := time.Date(2020, 1, 1, 12, 30, 0, 0, time.UTC)

	u := p.Units()[0]
	line := h.Line(at, msg.New(u.PID(), msg.Inflow, 1, msg.Range(0, 2), msg.Abstract))
	assert.Assert(t, strings.HasPrefix(line, "12:30:00 [blue]abstract"))
	assert.Assert(t, strings.Contains(line, u.Name()+" Inflow(1) "+msg.Range(0, 2).String()))

	stranger := uuid.New()
	line = h.Line(at, msg.New(stranger, msg.Kappa, msg.NoEntity, msg.Range(0, 1), msg.Physical))
	assert.Assert(t, strings.Contains(line, "[green]physical"))
	assert.Assert(t, strings.Contains(line, stranger.String()+" Kappa "))
}
