// Package msg carries Modification records from units to their observers.
package msg

import (
	"sync"

	"github.com/google/uuid"
)

// Kind tags the physical field or abstract artifact a Modification refers to.
type Kind string

// Hydro kinds
const (
	InitialVolume   Kind = "InitialVolume"
	Inflow          Kind = "Inflow"
	MinVolumetric   Kind = "MinVolumetric"
	MaxVolumetric   Kind = "MaxVolumetric"
	MinFlow         Kind = "MinFlow"
	MaxFlow         Kind = "MaxFlow"
	InitialFlowRate Kind = "InitialFlowRate"
	PrimaryRho      Kind = "PrimaryRho"
	SecondaryRho    Kind = "SecondaryRho"
	LinearTerm      Kind = "LinearTerm"
	ConstantTerm    Kind = "ConstantTerm"
)

// Shared kinds
const (
	MinPower          Kind = "MinPower"
	MaxPower          Kind = "MaxPower"
	DeltaRampUp       Kind = "DeltaRampUp"
	DeltaRampDown     Kind = "DeltaRampDown"
	ActivePowerCost   Kind = "ActivePowerCost"
	Kappa             Kind = "Kappa"
	Scale             Kind = "Scale"
	InitialPower      Kind = "InitialPower"
	MaxPrimaryPower   Kind = "MaxPrimaryPower"
	MaxSecondaryPower Kind = "MaxSecondaryPower"
)

// Battery and slack kinds
const (
	InitialStorage Kind = "InitialStorage"
	MinStorage     Kind = "MinStorage"
	MaxStorage     Kind = "MaxStorage"
	Cost           Kind = "Cost"
	PrimaryCost    Kind = "PrimaryCost"
	SecondaryCost  Kind = "SecondaryCost"
)

// System kinds
const (
	ActivePowerDemand Kind = "ActivePowerDemand"
	PrimaryDemand     Kind = "PrimaryDemand"
	SecondaryDemand   Kind = "SecondaryDemand"
	InertiaDemand     Kind = "InertiaDemand"
)

// Layer tells whether a change hit the physical data or the abstract model.
type Layer int

const (
	Physical Layer = iota
	Abstract
)

func (l Layer) String() string {
	if l == Abstract {
		return "abstract"
	}
	return "physical"
}

// NoEntity is the Entity of unit-wide changes.
const NoEntity = -1

// Modification describes one completed change. It never carries the new
// values, only the fact and location of the change.
type Modification struct {
	Sender   uuid.UUID
	Kind     Kind
	Entity   int
	Location Location
	Layer    Layer
}

// New is the Modification factory function.
func New(sender uuid.UUID, kind Kind, entity int, loc Location, layer Layer) Modification {
	return Modification{sender, kind, entity, loc.Sorted(), layer}
}

// PID returns the sender's PID
func (m Modification) PID() uuid.UUID {
	return m.Sender
}

// Publisher is an interface for objects that allow subscription to their
// modifications.
type Publisher interface {
	Subscribe(uuid.UUID) <-chan Modification
	Unsubscribe(uuid.UUID)
}

// PubSub fans Modifications out to subscribers.
type PubSub struct {
	mux         *sync.Mutex
	pid         uuid.UUID
	subscribers map[uuid.UUID]chan Modification
	buffer      int
}

// NewPublisher returns a PubSub owned by pid.
func NewPublisher(pid uuid.UUID) *PubSub {
	return &PubSub{&sync.Mutex{}, pid, make(map[uuid.UUID]chan Modification), 64}
}

// PID returns the owner's PID
func (p *PubSub) PID() uuid.UUID {
	return p.pid
}

// Subscribe returns a buffered read only channel of Modifications for pid.
func (p *PubSub) Subscribe(pid uuid.UUID) <-chan Modification {
	p.mux.Lock()
	defer p.mux.Unlock()
	if ch, ok := p.subscribers[pid]; ok {
		return ch
	}
	ch := make(chan Modification, p.buffer)
	p.subscribers[pid] = ch
	return ch
}

// Unsubscribe closes the channel associated with pid.
func (p *PubSub) Unsubscribe(pid uuid.UUID) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if ch, ok := p.subscribers[pid]; ok {
		delete(p.subscribers, pid)
		close(ch)
	}
}

// Publish delivers m to every subscriber without blocking. It returns the
// number of subscribers whose buffer was full.
func (p *PubSub) Publish(m Modification) int {
	p.mux.Lock()
	defer p.mux.Unlock()
	dropped := 0
	for _, ch := range p.subscribers {
		select {
		case ch <- m:
		default:
			dropped++
		}
	}
	return dropped
}

// Close unsubscribes everybody.
func (p *PubSub) Close() {
	p.mux.Lock()
	defer p.mux.Unlock()
	for pid, ch := range p.subscribers {
		delete(p.subscribers, pid)
		close(ch)
	}
}
