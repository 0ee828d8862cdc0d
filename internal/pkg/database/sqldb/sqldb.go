// Package sqldb journals every Modification into a MySQL or PostgreSQL
// table and reads the journal back.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/ohowland/cgc_ucblock/internal/pkg/config"
	"github.com/ohowland/cgc_ucblock/internal/pkg/log"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"go.uber.org/zap"
)

// Dialects keyed by database/sql driver name.
var createTable = map[string]string{
	"mysql": `CREATE TABLE IF NOT EXISTS modifications(
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	received DATETIME(6) NOT NULL,
	pid CHAR(36) NOT NULL,
	kind VARCHAR(64) NOT NULL,
	entity INT NOT NULL,
	layer VARCHAR(16) NOT NULL,
	location TEXT NOT NULL)`,
	"postgres": `CREATE TABLE IF NOT EXISTS modifications(
	id BIGSERIAL PRIMARY KEY,
	received TIMESTAMPTZ NOT NULL,
	pid UUID NOT NULL,
	kind VARCHAR(64) NOT NULL,
	entity INT NOT NULL,
	layer VARCHAR(16) NOT NULL,
	location TEXT NOT NULL)`,
}

const insertRow = `INSERT INTO modifications (received, pid, kind, entity, layer, location) VALUES (?, ?, ?, ?, ?, ?)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Journal subscribes to a set of publishers and writes what they emit.
type Journal struct {
	pid    uuid.UUID
	db     execer
	insert string
	pubs   []msg.Publisher
	inbox  chan msg.Modification
	stop   chan struct{}
	wg     *sync.WaitGroup
	log    *zap.SugaredLogger
}

// DSN builds the go-sql-driver connection string of cfg.
func DSN(cfg config.MySQL) string {
	c := mysql.NewConfig()
	c.User = cfg.Username
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", cfg.Server, cfg.Port)
	c.DBName = cfg.Database
	c.ParseTime = true
	return c.FormatDSN()
}

// PostgresDSN builds the lib/pq connection string of cfg.
func PostgresDSN(cfg config.Postgres) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Server, cfg.Port, cfg.Username, cfg.Password, cfg.Database, cfg.SSLMode)
}

// OpenMySQL opens the journal described by cfg.
func OpenMySQL(cfg config.MySQL, pubs ...msg.Publisher) (*Journal, *sqlx.DB, error) {
	return Open("mysql", DSN(cfg), pubs...)
}

// OpenPostgres opens the journal described by cfg.
func OpenPostgres(cfg config.Postgres, pubs ...msg.Publisher) (*Journal, *sqlx.DB, error) {
	return Open("postgres", PostgresDSN(cfg), pubs...)
}

// Open connects with driver, creates the table if needed and returns a
// journal over pubs.
func Open(driver, dsn string, pubs ...msg.Publisher) (*Journal, *sqlx.DB, error) {
	create, ok := createTable[driver]
	if !ok {
		return nil, nil, fmt.Errorf("sqldb: unsupported driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, nil, err
	}
	if _, err := db.Exec(create); err != nil {
		db.Close()
		return nil, nil, err
	}
	j, err := New(db, pubs...)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	j.insert = db.Rebind(insertRow)
	return j, db, nil
}

// New returns a journal writing through db. The table must exist.
func New(db execer, pubs ...msg.Publisher) (*Journal, error) {
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	j := &Journal{
		pid:    pid,
		db:     db,
		insert: insertRow,
		pubs:   pubs,
		inbox:  make(chan msg.Modification, 64),
		stop:   make(chan struct{}),
		wg:     &sync.WaitGroup{},
		log:    log.Named("SQL"),
	}
	for _, p := range pubs {
		ch := p.Subscribe(pid)
		j.wg.Add(1)
		go j.redirect(ch)
	}
	return j, nil
}

// PID identifies the journal as a subscriber.
func (j *Journal) PID() uuid.UUID {
	return j.pid
}

func (j *Journal) redirect(ch <-chan msg.Modification) {
	defer j.wg.Done()
	for m := range ch {
		select {
		case j.inbox <- m:
		case <-j.stop:
			return
		}
	}
}

// Process writes modifications until Stop is called.
func (j *Journal) Process() {
	j.log.Infow("[SQL] journal started")
loop:
	for {
		select {
		case m := <-j.inbox:
			if err := j.write(context.Background(), m); err != nil {
				j.log.Errorw("[SQL] insert failed", "kind", m.Kind, "error", err)
			}
		case <-j.stop:
			break loop
		}
	}
	j.log.Infow("[SQL] journal stopped")
}

// Stop ends Process and unsubscribes from every publisher. Modifications
// still queued are dropped.
func (j *Journal) Stop() {
	close(j.stop)
	for _, p := range j.pubs {
		p.Unsubscribe(j.pid)
	}
	j.wg.Wait()
}

func (j *Journal) write(ctx context.Context, m msg.Modification) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, err := j.db.ExecContext(ctx, j.insert, record(time.Now().UTC(), m)...)
	return err
}

func record(at time.Time, m msg.Modification) []interface{} {
	return []interface{}{at, m.PID().String(), string(m.Kind), m.Entity, m.Layer.String(), m.Location.String()}
}
