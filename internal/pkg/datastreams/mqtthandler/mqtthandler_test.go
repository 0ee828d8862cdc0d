package mqtthandler

import (
	"encoding/json"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/ohowland/cgc_ucblock/internal/pkg/config"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"gotest.tools/v3/assert"
)

type sent struct {
	topic   string
	qos     byte
	payload []byte
}

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Error() error                   { return nil }

func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeClient chan sent

func (c fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c <- sent{topic, qos, payload.([]byte)}
	return doneToken{}
}

func TestTopic(t *testing.T) {
	pid := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	assert.Equal(t, Topic("ucblock", pid), "ucblock/6ba7b810-9dad-11d1-80b4-00c04fd430c8/modification")
}

func TestHandlerPublishesJSON(t *testing.T) {
	owner, _ := uuid.NewUUID()
	pub := msg.NewPublisher(owner)
	client := make(fakeClient, 1)
	h, err := New(client, config.MQTT{Prefix: "ucblock", QoS: 1, Timeout: time.Second}, pub)
	assert.NilError(t, err)
	go h.Process()
	defer h.Stop()

	pub.Publish(msg.New(owner, msg.MaxStorage, msg.NoEntity, msg.Range(2, 4), msg.Abstract))

	select {
	case s := <-client:
		assert.Equal(t, s.topic, Topic("ucblock", owner))
		assert.Equal(t, s.qos, byte(1))
		r := msg.Record{}
		assert.NilError(t, json.Unmarshal(s.payload, &r))
		m, err := r.Modification()
		assert.NilError(t, err)
		assert.Equal(t, m.Sender, owner)
		assert.Equal(t, m.Kind, msg.MaxStorage)
		assert.Equal(t, m.Layer, msg.Abstract)
		assert.DeepEqual(t, m.Location.Indices(), []int{2, 3})
	case <-time.After(time.Second):
		t.Fatal("nothing published")
	}
}
