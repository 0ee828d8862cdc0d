package sqldb

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_ucblock/internal/pkg/config"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"gotest.tools/v3/assert"
)

type fakeDB struct {
	mux  sync.Mutex
	rows [][]interface{}
	done chan struct{}
}

func (f *fakeDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	f.rows = append(f.rows, args)
	f.done <- struct{}{}
	return nil, nil
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.MySQL{Server: "localhost", Port: 3306, Username: "ucblock", Password: "secret", Database: "journal"})
	assert.Equal(t, dsn, "ucblock:secret@tcp(localhost:3306)/journal?parseTime=true")
}

func TestRecord(t *testing.T) {
	pid, _ := uuid.NewUUID()
	at := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	m := msg.New(pid, msg.Inflow, 1, msg.Subset(4, 2), msg.Abstract)
	got := record(at, m)
	assert.Equal(t, len(got), 6)
	assert.Equal(t, got[0], at)
	assert.Equal(t, got[1], pid.String())
	assert.Equal(t, got[2], "Inflow")
	assert.Equal(t, got[3], 1)
	assert.Equal(t, got[4], "abstract")
	assert.Equal(t, got[5], msg.Subset(2, 4).String())
}

func TestJournalWritesPublishedModifications(t *testing.T) {
	owner, _ := uuid.NewUUID()
	pub := msg.NewPublisher(owner)
	db := &fakeDB{done: make(chan struct{}, 1)}
	j, err := New(db, pub)
	assert.NilError(t, err)
	go j.Process()

	pub.Publish(msg.New(owner, msg.Kappa, msg.NoEntity, msg.Range(0, 1), msg.Physical))
	select {
	case <-db.done:
	case <-time.After(time.Second):
		t.Fatal("modification not written")
	}
	j.Stop()

	db.mux.Lock()
	defer db.mux.Unlock()
	assert.Equal(t, len(db.rows), 1)
	assert.Equal(t, db.rows[0][2], "Kappa")
}

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.Postgres{Server: "db", Port: 5432, Username: "ucblock", Password: "secret", Database: "journal", SSLMode: "disable"})
	assert.Equal(t, dsn, "host=db port=5432 user=ucblock password=secret dbname=journal sslmode=disable")
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, _, err := Open("sqlite3", "")
	assert.ErrorContains(t, err, "unsupported driver")
}

type fakeSelecter struct {
	query string
	args  []interface{}
}

func (f *fakeSelecter) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	f.query, f.args = query, args
	*dest.(*[]Entry) = []Entry{{ID: 2, Kind: "Inflow"}, {ID: 1, Kind: "Kappa"}}
	return nil
}

func (f *fakeSelecter) Rebind(query string) string {
	return strings.Replace(query, "?", "$1", 1)
}

func TestArchiveRecent(t *testing.T) {
	db := &fakeSelecter{}
	a := &Archive{db: db}

	entries, err := a.Recent(context.Background(), 2)
	assert.NilError(t, err)
	assert.Equal(t, len(entries), 2)
	assert.Equal(t, entries[0].Kind, "Inflow")
	assert.Assert(t, strings.HasSuffix(db.query, "LIMIT $1"))
	assert.DeepEqual(t, db.args, []interface{}{2})

	entries, err = a.Recent(context.Background(), 0)
	assert.NilError(t, err)
	assert.Equal(t, len(entries), 0)
}
