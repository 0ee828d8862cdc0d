// Package config reads the run configuration of the ucblock binary.
package config

import (
	"fmt"
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of the YAML run configuration. Optional sections are
// nil when absent, which disables the matching component.
type Config struct {
	Document     string       `yaml:"document"`
	Debug        bool         `yaml:"debug"`
	Dump         string       `yaml:"dump"`
	Capabilities Capabilities `yaml:"capabilities"`
	MongoDB      *MongoDB     `yaml:"mongodb"`
	MySQL        *MySQL       `yaml:"mysql"`
	Postgres     *Postgres    `yaml:"postgres"`
	NATS         *NATS        `yaml:"nats"`
	MQTT         *MQTT        `yaml:"mqtt"`
	Modbus       *Modbus      `yaml:"modbus"`
	Webservice   *Webservice  `yaml:"webservice"`
	Forecasts    []Forecast   `yaml:"forecasts"`
}

// Capabilities forces system features on regardless of the requirement
// data found in the document.
type Capabilities struct {
	PrimaryReserve   bool `yaml:"primaryReserve"`
	SecondaryReserve bool `yaml:"secondaryReserve"`
	Inertia          bool `yaml:"inertia"`
}

// MongoDB locates the unit document store.
type MongoDB struct {
	URI        string        `yaml:"uri"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
	// Load reads the document from the store instead of the Document file.
	Load bool `yaml:"load"`
}

// MySQL locates the modification journal.
type MySQL struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// Postgres locates the modification journal when it lives in PostgreSQL.
type Postgres struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// NATS locates the modification stream.
type NATS struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

// MQTT locates the broker modifications are mirrored to.
type MQTT struct {
	Broker   string        `yaml:"broker"`
	ClientID string        `yaml:"clientId"`
	Prefix   string        `yaml:"prefix"`
	QoS      byte          `yaml:"qos"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Modbus describes the telemetry device feeding initial conditions.
type Modbus struct {
	Address   string        `yaml:"address"`
	SlaveID   byte          `yaml:"slaveId"`
	Timeout   time.Duration `yaml:"timeout"`
	Interval  time.Duration `yaml:"interval"`
	Unit      string        `yaml:"unit"`
	Registers []Register    `yaml:"registers"`
}

// Register maps one holding register block to a unit field.
type Register struct {
	Name    string  `yaml:"name"`
	Field   string  `yaml:"field"`
	Entity  int     `yaml:"entity"`
	Address uint16  `yaml:"address"`
	Type    string  `yaml:"type"`
	Endian  string  `yaml:"endian"`
	Scale   float64 `yaml:"scale"`
}

// Forecast replaces the MaxPower series of an intermittent unit with a clear
// sky profile of its array. Angles in degrees, elevation in km.
type Forecast struct {
	Unit      string        `yaml:"unit"`
	Rating    float64       `yaml:"rating"`
	Tilt      float64       `yaml:"tilt"`
	Latitude  float64       `yaml:"latitude"`
	Elevation float64       `yaml:"elevation"`
	Start     time.Time     `yaml:"start"`
	Step      time.Duration `yaml:"step"`
}

// Webservice is the HTTP listener.
type Webservice struct {
	Listen string `yaml:"listen"`
}

// Load reads and validates the configuration at path.
func Load(path string) (Config, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(raw)
}

// Parse decodes a YAML configuration and fills defaults.
func Parse(raw []byte) (Config, error) {
	cfg := Config{}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Document == "" && (cfg.MongoDB == nil || !cfg.MongoDB.Load) {
		return Config{}, fmt.Errorf("config: no document file and no store to load from")
	}
	if m := cfg.MongoDB; m != nil {
		if m.URI == "" || m.Database == "" {
			return Config{}, fmt.Errorf("config: mongodb needs uri and database")
		}
		if m.Collection == "" {
			m.Collection = "documents"
		}
		if m.Timeout == 0 {
			m.Timeout = 10 * time.Second
		}
	}
	if s := cfg.MySQL; s != nil && s.Port == 0 {
		s.Port = 3306
	}
	if p := cfg.Postgres; p != nil {
		if cfg.MySQL != nil {
			return Config{}, fmt.Errorf("config: journal is either mysql or postgres")
		}
		if p.Port == 0 {
			p.Port = 5432
		}
		if p.SSLMode == "" {
			p.SSLMode = "disable"
		}
	}
	if n := cfg.NATS; n != nil && n.Prefix == "" {
		n.Prefix = "ucblock"
	}
	if q := cfg.MQTT; q != nil {
		if q.Broker == "" {
			return Config{}, fmt.Errorf("config: mqtt needs a broker")
		}
		if q.QoS > 2 {
			return Config{}, fmt.Errorf("config: mqtt qos %d out of range", q.QoS)
		}
		if q.ClientID == "" {
			q.ClientID = "ucblock"
		}
		if q.Prefix == "" {
			q.Prefix = "ucblock"
		}
		if q.Timeout == 0 {
			q.Timeout = 5 * time.Second
		}
	}
	if m := cfg.Modbus; m != nil {
		if m.Unit == "" {
			return Config{}, fmt.Errorf("config: modbus needs the name of the unit it feeds")
		}
		if m.Interval == 0 {
			m.Interval = time.Second
		}
		if m.Timeout == 0 {
			m.Timeout = time.Second
		}
		for i := range m.Registers {
			if m.Registers[i].Scale == 0 {
				m.Registers[i].Scale = 1
			}
			if m.Registers[i].Type == "" {
				m.Registers[i].Type = "f32"
			}
			if m.Registers[i].Endian == "" {
				m.Registers[i].Endian = "big"
			}
		}
	}
	for i := range cfg.Forecasts {
		f := &cfg.Forecasts[i]
		if f.Unit == "" || f.Rating <= 0 {
			return Config{}, fmt.Errorf("config: forecast needs a unit and a positive rating")
		}
		if f.Step == 0 {
			f.Step = time.Hour
		}
	}
	if w := cfg.Webservice; w != nil && w.Listen == "" {
		w.Listen = ":8080"
	}
	return cfg, nil
}
