// Package mqtthandler streams Modifications to an MQTT broker as JSON.
package mqtthandler

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/ohowland/cgc_ucblock/internal/pkg/config"
	"github.com/ohowland/cgc_ucblock/internal/pkg/log"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"go.uber.org/zap"
)

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type Handler struct {
	pid     uuid.UUID
	prefix  string
	qos     byte
	timeout time.Duration
	client  publisher
	pubs    []msg.Publisher
	inbox   chan msg.Modification
	stop    chan struct{}
	wg      *sync.WaitGroup
	log     *zap.SugaredLogger
}

// Connect dials cfg.Broker and returns a handler over pubs.
func Connect(cfg config.MQTT, pubs ...msg.Publisher) (*Handler, mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(cfg.Timeout).
		SetAutoReconnect(true)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, nil, fmt.Errorf("mqtt: connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, nil, err
	}
	h, err := New(client, cfg, pubs...)
	if err != nil {
		client.Disconnect(250)
		return nil, nil, err
	}
	return h, client, nil
}

// New returns a handler publishing through client.
func New(client publisher, cfg config.MQTT, pubs ...msg.Publisher) (*Handler, error) {
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	h := &Handler{
		pid:     pid,
		prefix:  cfg.Prefix,
		qos:     cfg.QoS,
		timeout: cfg.Timeout,
		client:  client,
		pubs:    pubs,
		inbox:   make(chan msg.Modification, 64),
		stop:    make(chan struct{}),
		wg:      &sync.WaitGroup{},
		log:     log.Named("MQTT"),
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

// Topic is the topic modifications of sender are published on.
func Topic(prefix string, sender uuid.UUID) string {
	return fmt.Sprintf("%s/%s/modification", prefix, sender)
}

func (h *Handler) publish(m msg.Modification) error {
	payload, err := json.Marshal(m.Record())
	if err != nil {
		return err
	}
	token := h.client.Publish(Topic(h.prefix, m.Sender), h.qos, false, payload)
	if !token.WaitTimeout(h.timeout) {
		return fmt.Errorf("publish timed out")
	}
	return token.Error()
}

// Process publishes modifications until Stop is called.
func (h *Handler) Process() {
	h.log.Infow("[MQTT client] Process Started")
loop:
	for {
		select {
		case m := <-h.inbox:
			if err := h.publish(m); err != nil {
				h.log.Warnw("[MQTT client] unable to publish", "kind", m.Kind, "error", err)
			}
		case <-h.stop:
			break loop
		}
	}
	h.log.Infow("[MQTT client] Process Shutdown")
}

// Stop ends Process and unsubscribes from every publisher.
func (h *Handler) Stop() {
	close(h.stop)
	for _, p := range h.pubs {
		p.Unsubscribe(h.pid)
	}
	h.wg.Wait()
}
