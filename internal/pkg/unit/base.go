package unit

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_ucblock/internal/pkg/group"
	"github.com/ohowland/cgc_ucblock/internal/pkg/log"
	"github.com/ohowland/cgc_ucblock/internal/pkg/lp"
	"github.com/ohowland/cgc_ucblock/internal/pkg/metrics"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"github.com/ohowland/cgc_ucblock/internal/pkg/timeseries"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Base is embedded by every unit model. It owns the identity, the time
// frame, the build lifecycle, the abstract block and the publisher.
type Base struct {
	pid       uuid.UUID
	name      string
	kind      Kind
	frame     timeseries.TimeFrame
	lifecycle Lifecycle
	block     *lp.Block
	publisher *msg.PubSub
	log       *zap.SugaredLogger
}

// NewBase returns a Base with a fresh PID.
func NewBase(kind Kind, name string) (Base, error) {
	pid, err := uuid.NewUUID()
	if err != nil {
		return Base{}, err
	}
	return Base{
		pid:       pid,
		name:      name,
		kind:      kind,
		block:     lp.NewBlock(name),
		publisher: msg.NewPublisher(pid),
		log:       log.Named(kind.String()).With("unit", name),
	}, nil
}

func (b *Base) isUnit() {}

// PID is a getter for the unit PID
func (b *Base) PID() uuid.UUID {
	return b.pid
}

// Name is a getter for the unit name
func (b *Base) Name() string {
	return b.name
}

// Kind is a getter for the unit kind
func (b *Base) Kind() Kind {
	return b.kind
}

// Stage returns the build lifecycle state.
func (b *Base) Stage() Stage {
	return b.lifecycle.Stage()
}

// Block returns the abstract representation.
func (b *Base) Block() *lp.Block {
	return b.block
}

// Publisher returns the unit's Modification publisher.
func (b *Base) Publisher() *msg.PubSub {
	return b.publisher
}

// TimeFrame returns the unit's time frame.
func (b *Base) TimeFrame() timeseries.TimeFrame {
	return b.frame
}

// Horizon returns the number of time steps.
func (b *Base) Horizon() int {
	return b.frame.Horizon()
}

// Log returns the unit's logger.
func (b *Base) Log() *zap.SugaredLogger {
	return b.log
}

// Inconsistent builds a DataConsistencyError attributed to this unit.
func (b *Base) Inconsistent(field string, index, t int, format string, args ...interface{}) error {
	return Inconsistent(b.name, field, index, t, format, args...)
}

// ReadTimeFrame reads TimeHorizon, NumberIntervals and ChangeIntervals and
// resets the lifecycle, which discards any abstract representation.
func (b *Base) ReadTimeFrame(r group.Reader) error {
	horizon, ok := r.ReadDim("TimeHorizon")
	if !ok {
		return fmt.Errorf("%s: missing TimeHorizon", b.name)
	}
	intervals, _ := r.ReadDim("NumberIntervals")
	var breakpoints []int
	if intervals > 1 && intervals < horizon {
		raw, err := r.ReadSeries("ChangeIntervals", 0)
		if err != nil {
			return err
		}
		breakpoints = make([]int, len(raw))
		for i, v := range raw {
			breakpoints[i] = int(v)
		}
	}
	tf, err := timeseries.NewTimeFrame(horizon, intervals, breakpoints)
	if err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}
	b.frame = tf
	b.lifecycle.Reset()
	b.block = lp.NewBlock(b.name)
	return nil
}

// WriteTimeFrame is the mirror of ReadTimeFrame.
func (b *Base) WriteTimeFrame(w group.Writer) {
	w.WriteString("Type", b.kind.String())
	w.WriteDim("TimeHorizon", b.frame.Horizon())
	w.WriteDim("NumberIntervals", b.frame.Intervals())
	if bp := b.frame.Breakpoints(); len(bp) > 0 {
		raw := make([]float64, len(bp)+1)
		for i, v := range bp {
			raw[i] = float64(v)
		}
		raw[len(bp)] = float64(b.frame.Horizon() - 1)
		w.WriteSeries("ChangeIntervals", raw)
	}
}

// ReadVector reads and expands a per-time series. An absent series yields
// def repeated over the horizon; a nil def leaves it empty.
func (b *Base) ReadVector(r group.Reader, name string, def []float64) ([]float64, error) {
	raw, err := r.ReadSeries(name, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.name, err)
	}
	if len(raw) == 0 {
		raw = def
	}
	dense, err := timeseries.Expand(raw, b.frame)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.name, timeseries.Named(err, name))
	}
	return dense, nil
}

// RequireVector is ReadVector for series without a default.
func (b *Base) RequireVector(r group.Reader, name string) ([]float64, error) {
	v, err := b.ReadVector(r, name, nil)
	if err != nil {
		return nil, err
	}
	if len(v) == 0 && b.Horizon() > 0 {
		return nil, b.Inconsistent(name, -1, -1, "required but missing")
	}
	return v, nil
}

// WriteVector writes a dense per-time series in its smallest encoding.
func (b *Base) WriteVector(w group.Writer, name string, dense []float64) {
	w.WriteSeries(name, timeseries.Compress(dense, b.frame))
}

// ReadMatrix reads and expands a two dimensional series into an
// entities x T matrix. Rank one data is laid along the time axis first.
func (b *Base) ReadMatrix(r group.Reader, name string, axis timeseries.Axis, entities int) (*mat.Dense, error) {
	var raw *mat.Dense
	if r.Rank(name) <= 1 {
		v, err := r.ReadSeries(name, 0)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.name, err)
		}
		if len(v) > 0 {
			if axis == timeseries.TimeMajor {
				raw = mat.NewDense(len(v), 1, v)
			} else {
				raw = mat.NewDense(1, len(v), v)
			}
		}
	} else {
		raw, _ = r.ReadMatrix(name)
	}
	dense, err := timeseries.ExpandMatrix(raw, axis, entities, b.frame)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.name, timeseries.Named(err, name))
	}
	return dense, nil
}

// WriteMatrix writes an entities x T matrix in its smallest encoding.
func (b *Base) WriteMatrix(w group.Writer, name string, dense *mat.Dense, axis timeseries.Axis) {
	w.WriteMatrix(name, timeseries.CompressMatrix(dense, axis))
}

// Generate runs build once for stage. A failed build discards everything it
// created and leaves the lifecycle where it was.
func (b *Base) Generate(stage Stage, build func() error) error {
	if b.lifecycle.Reached(stage) {
		return nil
	}
	mark := b.block.Mark()
	before := b.block.Stats()
	if err := build(); err != nil {
		b.block.Truncate(mark)
		metrics.GenerationFailures.WithLabelValues(b.kind.String()).Inc()
		b.log.Errorw("[Unit] generation failed", "stage", stage.String(), "error", err)
		return err
	}
	after := b.block.Stats()
	metrics.VariablesGenerated.WithLabelValues(b.kind.String()).Add(float64(after.Variables - before.Variables))
	metrics.RowsGenerated.WithLabelValues(b.kind.String()).Add(float64(after.Rows - before.Rows))
	b.lifecycle.Advance(stage)
	b.log.Debugw("[Unit] generated", "stage", stage.String(), "variables", after.Variables, "rows", after.Rows)
	return nil
}

// Built reports whether the abstract artifacts of stage exist.
func (b *Base) Built(stage Stage) bool {
	return b.lifecycle.Reached(stage)
}

// Notify emits a Modification for a completed change.
func (b *Base) Notify(kind msg.Kind, entity int, loc msg.Location, layer msg.Layer) {
	m := msg.New(b.pid, kind, entity, loc, layer)
	metrics.Modifications.WithLabelValues(string(kind), layer.String()).Inc()
	if dropped := b.publisher.Publish(m); dropped > 0 {
		b.log.Warnw("[Unit] modification dropped by slow subscribers", "kind", kind, "dropped", dropped)
	}
}

// Feasible checks the current variable values against the unit's block.
func (b *Base) Feasible(tol float64) bool {
	if !b.lifecycle.Reached(ConstraintsReady) {
		return false
	}
	violations := b.block.Violations(tol)
	for _, v := range violations {
		b.log.Debugw("[Unit] infeasible", "artifact", v.Name, "amount", v.Amount)
	}
	return len(violations) == 0
}
