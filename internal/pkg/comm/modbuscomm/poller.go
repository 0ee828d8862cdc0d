package modbuscomm

import (
	"context"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
	"github.com/ohowland/cgc_ucblock/internal/pkg/config"
	"github.com/ohowland/cgc_ucblock/internal/pkg/log"
	"go.uber.org/zap"
)

type reader interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
}

// Poller continuously polls a telemetry device
type Poller struct {
	handler   *modbus.TCPClientHandler
	client    reader
	registers []config.Register
	interval  time.Duration
	log       *zap.SugaredLogger
}

// NewPoller is a factory for the Poller struct
func NewPoller(cfg config.Modbus) (*Poller, error) {
	for _, r := range cfg.Registers {
		if sizeOf(DataType(r.Type)) == 0 {
			return nil, fmt.Errorf("modbus: register %s: unknown type %q", r.Name, r.Type)
		}
	}
	handler := modbus.NewTCPClientHandler(cfg.Address)
	handler.Timeout = cfg.Timeout
	handler.SlaveId = cfg.SlaveID
	return &Poller{
		handler:   handler,
		client:    modbus.NewClient(handler),
		registers: cfg.Registers,
		interval:  cfg.Interval,
		log:       log.Named("Modbus").With("address", cfg.Address),
	}, nil
}

// Read returns every register value, scaled, keyed by register name. A
// failed register is left out and its error returned after the others are
// read.
func (p *Poller) Read() (map[string]float64, error) {
	values := make(map[string]float64, len(p.registers))
	var err error
	for _, r := range p.registers {
		resp, readErr := p.client.ReadHoldingRegisters(r.Address, sizeOf(DataType(r.Type)))
		if readErr != nil {
			err = fmt.Errorf("modbus: register %s: %w", r.Name, readErr)
			continue
		}
		v, decodeErr := decode(resp, DataType(r.Type), Endian(r.Endian))
		if decodeErr != nil {
			err = fmt.Errorf("modbus: register %s: %w", r.Name, decodeErr)
			continue
		}
		values[r.Name] = v * r.Scale
	}
	return values, err
}

// Run reads every interval and hands the readings to apply until ctx ends.
func (p *Poller) Run(ctx context.Context, apply func(map[string]float64) error) {
	if p.handler != nil {
		if err := p.handler.Connect(); err != nil {
			p.log.Errorw("[Modbus] connect failed", "error", err)
			return
		}
		defer p.handler.Close()
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.log.Infow("[Modbus] polling", "interval", p.interval)
	for {
		select {
		case <-ticker.C:
			values, err := p.Read()
			if err != nil {
				p.log.Warnw("[Modbus] read failed", "error", err)
			}
			if len(values) == 0 {
				continue
			}
			if err := apply(values); err != nil {
				p.log.Warnw("[Modbus] telemetry rejected", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
