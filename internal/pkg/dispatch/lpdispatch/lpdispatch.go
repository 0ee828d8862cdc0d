// Package lpdispatch owns a set of unit blocks and ties them together with the
// system rows: power demand, reserve requirements and minimum inertia.
package lpdispatch

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_ucblock/internal/pkg/group"
	"github.com/ohowland/cgc_ucblock/internal/pkg/log"
	"github.com/ohowland/cgc_ucblock/internal/pkg/lp"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"github.com/ohowland/cgc_ucblock/internal/pkg/timeseries"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit/registry"
	"go.uber.org/zap"
)

// Problem is the aggregate owning the units. Every exported method takes the
// lock, so edits arriving from several transports are applied one at a time
// in arrival order.
type Problem struct {
	mux       *sync.Mutex
	pid       uuid.UUID
	name      string
	publisher *msg.PubSub
	log       *zap.SugaredLogger

	caps  unit.Capabilities
	frame timeseries.TimeFrame

	demand    map[msg.Kind][]float64
	units     []unit.Unit
	index     map[uuid.UUID]unit.Unit
	block     *lp.Block
	built     bool
	rows      map[msg.Kind][]*lp.Row
}

// New returns an empty problem. caps are the capabilities forced on; more are
// switched on by Deserialize when requirement data is present.
func New(name string, caps unit.Capabilities) (*Problem, error) {
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &Problem{
		mux:       &sync.Mutex{},
		pid:       pid,
		name:      name,
		publisher: msg.NewPublisher(pid),
		log:       log.Named("LPDispatch").With("problem", name),
		caps:      caps,
		demand:    make(map[msg.Kind][]float64),
		index:     make(map[uuid.UUID]unit.Unit),
		block:     lp.NewBlock(name),
		rows:      make(map[msg.Kind][]*lp.Row),
	}, nil
}

// PID identifies the problem as the sender of system modifications.
func (p *Problem) PID() uuid.UUID {
	return p.pid
}

// Subscribe returns a channel of system level modifications.
func (p *Problem) Subscribe(pid uuid.UUID) <-chan msg.Modification {
	return p.publisher.Subscribe(pid)
}

// Unsubscribe closes the channel of pid.
func (p *Problem) Unsubscribe(pid uuid.UUID) {
	p.publisher.Unsubscribe(pid)
}

// Capabilities returns the resolved capability set.
func (p *Problem) Capabilities() unit.Capabilities {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.caps
}

// Horizon returns the number of time steps T shared by every unit.
func (p *Problem) Horizon() int {
	return p.frame.Horizon()
}

// Deserialize reads the system requirements from g and every unit sub-group.
// ActivePowerDemand is required, the reserve and inertia requirements switch
// their capability on when present.
func (p *Problem) Deserialize(g *group.Group) error {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.built {
		return fmt.Errorf("%s: already built", p.name)
	}

	horizon, ok := g.ReadDim("TimeHorizon")
	if !ok {
		return fmt.Errorf("%s: missing TimeHorizon", p.name)
	}
	intervals, _ := g.ReadDim("NumberIntervals")
	var breakpoints []int
	if intervals > 1 && intervals < horizon {
		raw, err := g.ReadSeries("ChangeIntervals", 0)
		if err != nil {
			return err
		}
		for _, v := range raw {
			breakpoints = append(breakpoints, int(v))
		}
	}
	tf, err := timeseries.NewTimeFrame(horizon, intervals, breakpoints)
	if err != nil {
		return fmt.Errorf("%s: %w", p.name, err)
	}
	p.frame = tf

	for _, kind := range requirementKinds {
		raw, err := g.ReadSeries(string(kind), 0)
		if err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
		dense, err := timeseries.Expand(raw, tf)
		if err != nil {
			return fmt.Errorf("%s: %w", p.name, timeseries.Named(err, string(kind)))
		}
		if dense == nil {
			if kind == msg.ActivePowerDemand {
				return fmt.Errorf("%s: missing %s", p.name, kind)
			}
			dense = make([]float64, horizon)
		} else {
			p.enable(kind)
		}
		p.demand[kind] = dense
	}

	units, err := registry.Load(g)
	if err != nil {
		return err
	}
	for _, u := range units {
		if err := p.add(u); err != nil {
			return err
		}
	}
	p.log.Infow("[LP Dispatch] loaded", "units", len(p.units), "horizon", horizon)
	return nil
}

var requirementKinds = []msg.Kind{msg.ActivePowerDemand, msg.PrimaryDemand, msg.SecondaryDemand, msg.InertiaDemand}

func (p *Problem) enable(kind msg.Kind) {
	switch kind {
	case msg.PrimaryDemand:
		p.caps.PrimaryReserve = true
	case msg.SecondaryDemand:
		p.caps.SecondaryReserve = true
	case msg.InertiaDemand:
		p.caps.Inertia = true
	}
}

// required reports whether the rows of kind are part of the problem.
func (p *Problem) required(kind msg.Kind) bool {
	switch kind {
	case msg.PrimaryDemand:
		return p.caps.PrimaryReserve
	case msg.SecondaryDemand:
		return p.caps.SecondaryReserve
	case msg.InertiaDemand:
		return p.caps.Inertia
	}
	return true
}

// AddUnit registers an already deserialized unit. Units can only be added
// before Build.
func (p *Problem) AddUnit(u unit.Unit) error {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.built {
		return fmt.Errorf("%s: cannot add %s after build", p.name, u.Name())
	}
	return p.add(u)
}

func (p *Problem) add(u unit.Unit) error {
	if _, ok := p.index[u.PID()]; ok {
		return fmt.Errorf("%s: unit %s registered twice", p.name, u.Name())
	}
	p.units = append(p.units, u)
	p.index[u.PID()] = u
	return nil
}

// Unit returns the unit with the given PID.
func (p *Problem) Unit(pid uuid.UUID) (unit.Unit, bool) {
	p.mux.Lock()
	defer p.mux.Unlock()
	u, ok := p.index[pid]
	return u, ok
}

// Units returns the units in registration order.
func (p *Problem) Units() []unit.Unit {
	p.mux.Lock()
	defer p.mux.Unlock()
	return append([]unit.Unit(nil), p.units...)
}

// Block returns the block holding the system rows.
func (p *Problem) Block() *lp.Block {
	return p.block
}

// Blocks returns the system block followed by every unit block.
func (p *Problem) Blocks() []*lp.Block {
	p.mux.Lock()
	defer p.mux.Unlock()
	blocks := []*lp.Block{p.block}
	for _, u := range p.units {
		blocks = append(blocks, u.Block())
	}
	return blocks
}

// Build generates every unit up to its objective and then the system rows.
// A second call is a no-op.
func (p *Problem) Build() error {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.built {
		return nil
	}
	if len(p.demand) == 0 {
		return fmt.Errorf("%s: no requirements loaded", p.name)
	}
	for _, u := range p.units {
		if h, ok := u.(interface{ Horizon() int }); ok && h.Horizon() != p.frame.Horizon() {
			return fmt.Errorf("%s: unit %s has horizon %d, want %d", p.name, u.Name(), h.Horizon(), p.frame.Horizon())
		}
		if err := u.GenerateObjective(p.caps); err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
	}
	if err := p.systemRows(); err != nil {
		return err
	}
	p.built = true
	stats := p.block.Stats()
	p.log.Infow("[LP Dispatch] built", "units", len(p.units), "rows", stats.Rows)
	return nil
}

// IsFeasible checks every unit block and the system rows.
func (p *Problem) IsFeasible(tol float64) bool {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, u := range p.units {
		if !u.IsFeasible(tol) {
			return false
		}
	}
	return p.block.IsFeasible(tol)
}

// Serialize writes the requirements and every unit into g.
func (p *Problem) Serialize(g *group.Group) error {
	p.mux.Lock()
	defer p.mux.Unlock()
	g.WriteDim("TimeHorizon", p.frame.Horizon())
	g.WriteDim("NumberIntervals", p.frame.Intervals())
	if bp := p.frame.Breakpoints(); len(bp) > 0 {
		raw := make([]float64, 0, len(bp)+1)
		for _, v := range bp {
			raw = append(raw, float64(v))
		}
		g.WriteSeries("ChangeIntervals", append(raw, float64(p.frame.Horizon()-1)))
	}
	for _, kind := range requirementKinds {
		if p.required(kind) {
			g.WriteSeries(string(kind), timeseries.Compress(p.demand[kind], p.frame))
		}
	}
	return registry.Save(g, p.units)
}

// WriteCSV dumps every row of the problem.
func (p *Problem) WriteCSV(w io.Writer) error {
	return lp.WriteCSV(w, p.Blocks()...)
}

// WriteVariablesCSV dumps every variable of the problem.
func (p *Problem) WriteVariablesCSV(w io.Writer) error {
	return lp.WriteVariablesCSV(w, p.Blocks()...)
}
