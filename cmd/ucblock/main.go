package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/ohowland/cgc_ucblock/internal/pkg/comm/modbuscomm"
	"github.com/ohowland/cgc_ucblock/internal/pkg/config"
	"github.com/ohowland/cgc_ucblock/internal/pkg/database/mongodb"
	"github.com/ohowland/cgc_ucblock/internal/pkg/database/sqldb"
	"github.com/ohowland/cgc_ucblock/internal/pkg/datastreams/mqtthandler"
	"github.com/ohowland/cgc_ucblock/internal/pkg/datastreams/natshandler"
	"github.com/ohowland/cgc_ucblock/internal/pkg/dispatch/lpdispatch"
	"github.com/ohowland/cgc_ucblock/internal/pkg/group"
	"github.com/ohowland/cgc_ucblock/internal/pkg/hmi"
	"github.com/ohowland/cgc_ucblock/internal/pkg/log"
	"github.com/ohowland/cgc_ucblock/internal/pkg/metrics"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit/intermittent"
	"github.com/ohowland/cgc_ucblock/internal/pkg/webservice"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "./config/ucblock.yaml", "run configuration")
	name := flag.String("name", "system", "document name in the store")
	dashboard := flag.Bool("hmi", false, "run the terminal dashboard")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	if err := log.Init(cfg.Debug); err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Infow("[Main] Starting ucblock", "config", *configPath)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Fatalw("[Main] metrics", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store *mongodb.Store
	if cfg.MongoDB != nil {
		log.Infow("[Main] Connecting MongoDB", "uri", cfg.MongoDB.URI)
		store, err = mongodb.Connect(ctx, *cfg.MongoDB)
		if err != nil {
			log.Fatalw("[Main] mongodb", "error", err)
		}
		defer store.Close(context.Background())
	}

	log.Infow("[Main] Loading document")
	doc, err := loadDocument(ctx, cfg, store, *name)
	if err != nil {
		log.Fatalw("[Main] document", "error", err)
	}

	log.Infow("[Main] Building problem")
	problem, err := buildProblem(cfg, *name, doc)
	if err != nil {
		log.Fatalw("[Main] problem", "error", err)
	}
	if err := applyForecasts(problem, cfg.Forecasts); err != nil {
		log.Fatalw("[Main] forecast", "error", err)
	}
	if cfg.Dump != "" {
		if err := dump(problem, cfg.Dump); err != nil {
			log.Errorw("[Main] dump failed", "path", cfg.Dump, "error", err)
		}
	}

	pubs := problem.Publishers()
	var stops []func()

	var archive *sqldb.Archive
	if cfg.MySQL != nil || cfg.Postgres != nil {
		var journal *sqldb.Journal
		var db *sqlx.DB
		if cfg.MySQL != nil {
			log.Infow("[Main] Starting modification journal", "driver", "mysql", "server", cfg.MySQL.Server)
			journal, db, err = sqldb.OpenMySQL(*cfg.MySQL, pubs...)
		} else {
			log.Infow("[Main] Starting modification journal", "driver", "postgres", "server", cfg.Postgres.Server)
			journal, db, err = sqldb.OpenPostgres(*cfg.Postgres, pubs...)
		}
		if err != nil {
			log.Fatalw("[Main] journal", "error", err)
		}
		archive = sqldb.NewArchive(db)
		go journal.Process()
		stops = append(stops, func() {
			journal.Stop()
			db.Close()
		})
	}

	if cfg.NATS != nil {
		log.Infow("[Main] Connecting NATS", "url", cfg.NATS.URL)
		handler, nc, err := natshandler.Connect(*cfg.NATS, pubs...)
		if err != nil {
			log.Fatalw("[Main] nats", "error", err)
		}
		go handler.Process()
		stops = append(stops, func() {
			handler.Stop()
			nc.Close()
		})
	}

	if cfg.MQTT != nil {
		log.Infow("[Main] Connecting MQTT", "broker", cfg.MQTT.Broker)
		handler, client, err := mqtthandler.Connect(*cfg.MQTT, pubs...)
		if err != nil {
			log.Fatalw("[Main] mqtt", "error", err)
		}
		go handler.Process()
		stops = append(stops, func() {
			handler.Stop()
			client.Disconnect(250)
		})
	}

	wg := &sync.WaitGroup{}
	if cfg.Modbus != nil {
		if err := startTelemetry(ctx, wg, problem, *cfg.Modbus); err != nil {
			log.Fatalw("[Main] modbus", "error", err)
		}
	}

	var srv *http.Server
	if cfg.Webservice != nil {
		app := webservice.New(problem, prometheus.DefaultGatherer)
		if archive != nil {
			app.History = archive
		}
		srv = &http.Server{
			Addr:    cfg.Webservice.Listen,
			Handler: app.Router(),
		}
		go func() {
			log.Infow("[Main] Starting server", "listen", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorw("[Main] server", "error", err)
			}
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	if *dashboard {
		if err := runHMI(ctx, problem, sigs); err != nil {
			log.Errorw("[Main] hmi", "error", err)
		}
	} else {
		<-sigs
	}

	log.Infow("[Main] Stopping")
	cancel()
	wg.Wait()
	if srv != nil {
		shutdown, done := context.WithTimeout(context.Background(), 5*time.Second)
		srv.Shutdown(shutdown)
		done()
	}
	for _, stop := range stops {
		stop()
	}
	if store != nil {
		if err := saveDocument(store, problem, *name); err != nil {
			log.Errorw("[Main] save failed", "error", err)
		}
	}
}

func runHMI(ctx context.Context, p *lpdispatch.Problem, sigs <-chan os.Signal) error {
	h, err := hmi.New(p)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-sigs:
			cancel()
		case <-ctx.Done():
		}
	}()
	return h.Run(ctx)
}

func findUnit(p *lpdispatch.Problem, name string) (unit.Unit, error) {
	for _, u := range p.Units() {
		if u.Name() == name {
			return u, nil
		}
	}
	return nil, fmt.Errorf("no unit named %s", name)
}

func applyForecasts(p *lpdispatch.Problem, forecasts []config.Forecast) error {
	for _, f := range forecasts {
		u, err := findUnit(p, f.Unit)
		if err != nil {
			return err
		}
		if u.Kind() != unit.Intermittent {
			return fmt.Errorf("forecast: %s is not an intermittent unit", f.Unit)
		}
		sky := intermittent.ClearSky{Rating: f.Rating, Tilt: f.Tilt, Latitude: f.Latitude, Elevation: f.Elevation}
		err = p.Apply(lpdispatch.Edit{
			Unit:     u.PID(),
			Kind:     msg.MaxPower,
			Values:   sky.Profile(f.Start, f.Step, p.Horizon()),
			Location: msg.All(p.Horizon()),
			Physical: unit.Notify,
			Abstract: unit.Notify,
		})
		if err != nil {
			return err
		}
		log.Infow("[Main] Forecast applied", "unit", f.Unit, "start", f.Start)
	}
	return nil
}

func loadDocument(ctx context.Context, cfg config.Config, store *mongodb.Store, name string) (*group.Group, error) {
	if store != nil && cfg.MongoDB.Load {
		return store.Load(ctx, name)
	}
	return group.Load(cfg.Document)
}

func buildProblem(cfg config.Config, name string, doc *group.Group) (*lpdispatch.Problem, error) {
	caps := unit.Capabilities{
		PrimaryReserve:   cfg.Capabilities.PrimaryReserve,
		SecondaryReserve: cfg.Capabilities.SecondaryReserve,
		Inertia:          cfg.Capabilities.Inertia,
	}
	p, err := lpdispatch.New(name, caps)
	if err != nil {
		return nil, err
	}
	if err := p.Deserialize(doc); err != nil {
		return nil, err
	}
	if err := p.Build(); err != nil {
		return nil, err
	}
	log.Infow("[Main] Problem built", "units", len(p.Units()), "horizon", p.Horizon())
	return p, nil
}

func dump(p *lpdispatch.Problem, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return p.WriteCSV(f)
}

func startTelemetry(ctx context.Context, wg *sync.WaitGroup, p *lpdispatch.Problem, cfg config.Modbus) error {
	target, err := findUnit(p, cfg.Unit)
	if err != nil {
		return fmt.Errorf("modbus: %w", err)
	}
	poller, err := modbuscomm.NewPoller(cfg)
	if err != nil {
		return err
	}
	log.Infow("[Main] Starting telemetry", "address", cfg.Address, "unit", cfg.Unit)
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(ctx, func(readings map[string]float64) error {
			return modbuscomm.Apply(p, target.PID(), cfg.Registers, readings)
		})
	}()
	return nil
}

func saveDocument(store *mongodb.Store, p *lpdispatch.Problem, name string) error {
	g := group.New(name)
	if err := p.Serialize(g); err != nil {
		return err
	}
	return store.Save(context.Background(), name, g)
}
