// Package natshandler streams Modifications to a NATS server as msgpack.
package natshandler

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"
	"github.com/ohowland/cgc_ucblock/internal/pkg/config"
	"github.com/ohowland/cgc_ucblock/internal/pkg/log"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

type publisher interface {
	Publish(subject string, data []byte) error
}

type Handler struct {
	pid    uuid.UUID
	prefix string
	conn   publisher
	pubs   []msg.Publisher
	inbox  chan msg.Modification
	stop   chan struct{}
	wg     *sync.WaitGroup
	log    *zap.SugaredLogger
}

// Connect dials cfg.URL and returns a handler over pubs.
func Connect(cfg config.NATS, pubs ...msg.Publisher) (*Handler, *nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	h, err := New(nc, cfg.Prefix, pubs...)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	return h, nc, nil
}

// New returns a handler publishing through conn.
func New(conn publisher, prefix string, pubs ...msg.Publisher) (*Handler, error) {
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	h := &Handler{
		pid:    pid,
		prefix: prefix,
		conn:   conn,
		pubs:   pubs,
		inbox:  make(chan msg.Modification, 64),
		stop:   make(chan struct{}),
		wg:     &sync.WaitGroup{},
		log:    log.Named("NATS"),
	}
	for _, p := range pubs {
		ch := p.Subscribe(pid)
		h.wg.Add(1)
		go h.redirect(ch)
	}
	return h, nil
}

func (h *Handler) PID() uuid.UUID {
	return h.pid
}

func (h *Handler) redirect(ch <-chan msg.Modification) {
	defer h.wg.Done()
	for m := range ch {
		select {
		case h.inbox <- m:
		case <-h.stop:
			return
		}
	}
}

// Subject is the subject modifications of sender are published on.
func Subject(prefix string, sender uuid.UUID) string {
	return fmt.Sprintf("%s.%s.modification", prefix, sender)
}

// Encode packs m as msgpack using the json field names of msg.Record.
func Encode(m msg.Modification) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(m.Record()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode is the inverse of Encode.
func Decode(data []byte) (msg.Modification, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	r := msg.Record{}
	if err := dec.Decode(&r); err != nil {
		return msg.Modification{}, err
	}
	return r.Modification()
}

// Process publishes modifications until Stop is called.
func (h *Handler) Process() {
	h.log.Infow("[NATS client] Process Started")
loop:
	for {
		select {
		case m := <-h.inbox:
			data, err := Encode(m)
			if err != nil {
				h.log.Errorw("[NATS client] encode failed", "error", err)
				continue
			}
			if err := h.conn.Publish(Subject(h.prefix, m.Sender), data); err != nil {
				h.log.Warnw("[NATS client] unable to publish", "error", err)
			}
		case <-h.stop:
			break loop
		}
	}
	h.log.Infow("[NATS client] Process Shutdown")
}

// Stop ends Process and unsubscribes from every publisher.
func (h *Handler) Stop() {
	close(h.stop)
	for _, p := range h.pubs {
		p.Unsubscribe(h.pid)
	}
	h.wg.Wait()
}
