package sqldb

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

const selectRecent = `SELECT id, received, pid, kind, entity, layer, location FROM modifications ORDER BY id DESC LIMIT ?`

// Entry is one journaled modification.
type Entry struct {
	ID       int64     `json:"id" db:"id"`
	Received time.Time `json:"received" db:"received"`
	PID      string    `json:"pid" db:"pid"`
	Kind     string    `json:"kind" db:"kind"`
	Entity   int       `json:"entity" db:"entity"`
	Layer    string    `json:"layer" db:"layer"`
	Location string    `json:"location" db:"location"`
}

type selecter interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Rebind(query string) string
}

// Archive reads the journal back.
type Archive struct {
	db selecter
}

func NewArchive(db *sqlx.DB) *Archive {
	return &Archive{db: db}
}

// Recent returns the last n entries, newest first.
func (a *Archive) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	entries := []Entry{}
	if err := a.db.SelectContext(ctx, &entries, a.db.Rebind(selectRecent), n); err != nil {
		return nil, err
	}
	return entries, nil
}
