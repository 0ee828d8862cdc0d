package config

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

const sample = `
document: testdata/system.json
debug: true
capabilities:
  inertia: true
mongodb:
  uri: mongodb://localhost:27017
  database: ucblock
mysql:
  server: localhost
  username: ucblock
  password: secret
  database: journal
nats:
  url: nats://localhost:4222
modbus:
  address: localhost:502
  unit: cascade
  interval: 5s
  registers:
    - name: upper level
      field: InitialVolume
      entity: 0
      address: 100
      scale: 1000
    - name: turbine flow
      field: InitialFlowRate
      address: 102
webservice: {}
`

func TestParseFillsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	assert.NilError(t, err)

	assert.Equal(t, cfg.Document, "testdata/system.json")
	assert.Assert(t, cfg.Debug)
	assert.DeepEqual(t, cfg.Capabilities, Capabilities{Inertia: true})
	assert.Equal(t, cfg.MongoDB.Collection, "documents")
	assert.Equal(t, cfg.MongoDB.Timeout, 10*time.Second)
	assert.Equal(t, cfg.MySQL.Port, 3306)
	assert.Equal(t, cfg.NATS.Prefix, "ucblock")
	assert.Equal(t, cfg.Modbus.Interval, 5*time.Second)
	assert.Equal(t, cfg.Modbus.Registers[0].Scale, 1000.0)
	assert.Equal(t, cfg.Modbus.Registers[1].Scale, 1.0)
	assert.Equal(t, cfg.Modbus.Registers[1].Type, "f32")
	assert.Equal(t, cfg.Modbus.Registers[1].Endian, "big")
	assert.Equal(t, cfg.Webservice.Listen, ":8080")
}

func TestParseRejectsIncompleteSections(t *testing.T) {
	_, err := Parse([]byte("debug: true\n"))
	assert.ErrorContains(t, err, "no document file")

	_, err = Parse([]byte("document: a.json\nmongodb:\n  uri: mongodb://x\n"))
	assert.ErrorContains(t, err, "mongodb needs uri and database")

	_, err = Parse([]byte("document: a.json\nmodbus:\n  address: x:502\n"))
	assert.ErrorContains(t, err, "name of the unit")
}

func TestParsePostgresJournal(t *testing.T) {
	cfg, err := Parse([]byte("document: a.json\npostgres:\n  server: db\n  database: journal\n"))
	assert.NilError(t, err)
	assert.Equal(t, cfg.Postgres.Port, 5432)
	assert.Equal(t, cfg.Postgres.SSLMode, "disable")

	_, err = Parse([]byte("document: a.json\npostgres:\n  server: db\nmysql:\n  server: db\n"))
	assert.ErrorContains(t, err, "either mysql or postgres")
}

func TestParseMQTT(t *testing.T) {
	cfg, err := Parse([]byte("document: a.json\nmqtt:\n  broker: tcp://localhost:1883\n  qos: 1\n"))
	assert.NilError(t, err)
	assert.Equal(t, cfg.MQTT.ClientID, "ucblock")
	assert.Equal(t, cfg.MQTT.Prefix, "ucblock")
	assert.Equal(t, cfg.MQTT.QoS, byte(1))
	assert.Equal(t, cfg.MQTT.Timeout, 5*time.Second)

	_, err = Parse([]byte("document: a.json\nmqtt:\n  qos: 1\n"))
	assert.ErrorContains(t, err, "mqtt needs a broker")
	_, err = Parse([]byte("document: a.json\nmqtt:\n  broker: tcp://b:1883\n  qos: 3\n"))
	assert.ErrorContains(t, err, "out of range")
}

func TestParseForecasts(t *testing.T) {
	cfg, err := Parse([]byte(`
document: a.json
forecasts:
  - unit: pv
    rating: 4
    tilt: 30
    latitude: 42
    start: 2020-06-21T00:00:00Z
`))
	assert.NilError(t, err)
	assert.Equal(t, len(cfg.Forecasts), 1)
	assert.Equal(t, cfg.Forecasts[0].Step, time.Hour)
	assert.Assert(t, cfg.Forecasts[0].Start.Equal(time.Date(2020, time.June, 21, 0, 0, 0, 0, time.UTC)))

	_, err = Parse([]byte("document: a.json\nforecasts:\n  - unit: pv\n"))
	assert.ErrorContains(t, err, "positive rating")
}
