// Package webservice exposes the problem over HTTP: unit inspection, field
// edits, a live modification feed and the prometheus metrics.
package webservice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/ohowland/cgc_ucblock/internal/pkg/database/sqldb"
	"github.com/ohowland/cgc_ucblock/internal/pkg/dispatch/lpdispatch"
	"github.com/ohowland/cgc_ucblock/internal/pkg/log"
	"github.com/ohowland/cgc_ucblock/internal/pkg/lp"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// UnitSummary is the JSON view of a unit.
type UnitSummary struct {
	PID        uuid.UUID `json:"PID"`
	Name       string    `json:"Name"`
	Kind       string    `json:"Kind"`
	Stage      string    `json:"Stage"`
	Variables  int       `json:"Variables"`
	Rows       int       `json:"Rows"`
	Equalities int       `json:"Equalities"`
	Nonzeros   int       `json:"Nonzeros"`
}

// EditRequest is the body of a field edit. Without Subset the edit covers
// [Start, Stop). Policies are "dry-run", "silent" or "notify", the default.
type EditRequest struct {
	Entity   int       `json:"Entity"`
	Values   []float64 `json:"Values"`
	Start    int       `json:"Start"`
	Stop     int       `json:"Stop"`
	Subset   []int     `json:"Subset"`
	Physical string    `json:"Physical"`
	Abstract string    `json:"Abstract"`
}

// History reads journaled modifications back, newest first.
type History interface {
	Recent(ctx context.Context, n int) ([]sqldb.Entry, error)
}

type App struct {
	Problem  *lpdispatch.Problem
	Gatherer prometheus.Gatherer
	// History is nil when no journal is configured.
	History  History
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
}

func New(p *lpdispatch.Problem, g prometheus.Gatherer) *App {
	return &App{
		Problem:  p,
		Gatherer: g,
		log:      log.Named("Webservice"),
	}
}

func (app *App) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", app.BaseHandler)
	r.HandleFunc("/units", app.UnitsHandler).Methods("GET")
	r.HandleFunc("/units/{pid}", app.UnitHandler).Methods("GET")
	r.HandleFunc("/units/{pid}/rows", app.RowsHandler).Methods("GET")
	r.HandleFunc("/units/{pid}/fields/{kind}", app.EditHandler).Methods("PUT")
	r.HandleFunc("/requirements/{kind}", app.RequirementHandler).Methods("GET", "PUT")
	r.HandleFunc("/modifications", app.FeedHandler).Methods("GET")
	r.HandleFunc("/journal", app.JournalHandler).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(app.Gatherer, promhttp.HandlerOpts{}))
	return r
}

func (app *App) BaseHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
}

func summary(u unit.Unit) UnitSummary {
	s := u.Block().Stats()
	return UnitSummary{
		PID:        u.PID(),
		Name:       u.Name(),
		Kind:       u.Kind().String(),
		Stage:      u.Stage().String(),
		Variables:  s.Variables,
		Rows:       s.Rows,
		Equalities: s.Equalities,
		Nonzeros:   s.Nonzeros,
	}
}

func (app *App) UnitsHandler(w http.ResponseWriter, r *http.Request) {
	var out []UnitSummary
	for _, u := range app.Problem.Units() {
		out = append(out, summary(u))
	}
	app.writeJSON(w, http.StatusOK, out)
}

func (app *App) unit(w http.ResponseWriter, r *http.Request) (unit.Unit, bool) {
	pid, err := uuid.Parse(mux.Vars(r)["pid"])
	if err != nil {
		app.writeError(w, http.StatusBadRequest, fmt.Errorf("malformed UUID: %w", err))
		return nil, false
	}
	u, ok := app.Problem.Unit(pid)
	if !ok {
		app.writeError(w, http.StatusNotFound, fmt.Errorf("no unit %s", pid))
		return nil, false
	}
	return u, true
}

func (app *App) UnitHandler(w http.ResponseWriter, r *http.Request) {
	if u, ok := app.unit(w, r); ok {
		app.writeJSON(w, http.StatusOK, summary(u))
	}
}

// RowsHandler dumps the rows of a unit block as CSV.
func (app *App) RowsHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := app.unit(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	if err := lp.WriteCSV(w, u.Block()); err != nil {
		app.log.Warnw("[Webservice] csv write failed", "error", err)
	}
}

func parsePolicy(s string) (unit.Policy, error) {
	switch s {
	case "", "notify":
		return unit.Notify, nil
	case "silent":
		return unit.Silent, nil
	case "dry-run":
		return unit.DryRun, nil
	}
	return 0, fmt.Errorf("unknown policy %q", s)
}

func (req EditRequest) edit(pid uuid.UUID, kind string) (lpdispatch.Edit, error) {
	physical, err := parsePolicy(req.Physical)
	if err != nil {
		return lpdispatch.Edit{}, err
	}
	abstract, err := parsePolicy(req.Abstract)
	if err != nil {
		return lpdispatch.Edit{}, err
	}
	loc := msg.Range(req.Start, req.Stop)
	if req.Subset != nil {
		loc = msg.Subset(req.Subset...)
	}
	return lpdispatch.Edit{
		Unit:     pid,
		Kind:     msg.Kind(kind),
		Entity:   req.Entity,
		Values:   req.Values,
		Location: loc,
		Physical: physical,
		Abstract: abstract,
	}, nil
}

func (app *App) apply(w http.ResponseWriter, r *http.Request, pid uuid.UUID) {
	req := EditRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		app.writeError(w, http.StatusBadRequest, fmt.Errorf("malformed JSON: %w", err))
		return
	}
	e, err := req.edit(pid, mux.Vars(r)["kind"])
	if err != nil {
		app.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := app.Problem.Apply(e); err != nil {
		app.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	app.log.Infow("[Webservice] edit applied", "unit", pid, "kind", e.Kind, "location", e.Location.String())
	w.WriteHeader(http.StatusNoContent)
}

// EditHandler applies a field edit to a unit.
func (app *App) EditHandler(w http.ResponseWriter, r *http.Request) {
	if u, ok := app.unit(w, r); ok {
		app.apply(w, r, u.PID())
	}
}

// RequirementHandler reads or edits a system requirement series.
func (app *App) RequirementHandler(w http.ResponseWriter, r *http.Request) {
	kind := msg.Kind(mux.Vars(r)["kind"])
	if r.Method == http.MethodPut {
		app.apply(w, r, app.Problem.PID())
		return
	}
	values := app.Problem.Requirement(kind)
	if values == nil {
		app.writeError(w, http.StatusNotFound, fmt.Errorf("no requirement %s", kind))
		return
	}
	app.writeJSON(w, http.StatusOK, values)
}

// JournalHandler returns the last journaled modifications. The count comes
// from the n query parameter and defaults to 100.
func (app *App) JournalHandler(w http.ResponseWriter, r *http.Request) {
	if app.History == nil {
		app.writeError(w, http.StatusNotFound, fmt.Errorf("no journal configured"))
		return
	}
	n := 100
	if q := r.URL.Query().Get("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 0 {
			app.writeError(w, http.StatusBadRequest, fmt.Errorf("malformed count %q", q))
			return
		}
		n = v
	}
	entries, err := app.History.Recent(r.Context(), n)
	if err != nil {
		app.writeError(w, http.StatusInternalServerError, err)
		return
	}
	app.writeJSON(w, http.StatusOK, entries)
}

// FeedHandler upgrades to a websocket and streams every modification of the
// problem and its units as JSON records until the client goes away.
func (app *App) FeedHandler(w http.ResponseWriter, r *http.Request) {
	pid, err := uuid.NewUUID()
	if err != nil {
		app.writeError(w, http.StatusInternalServerError, err)
		return
	}
	pubs := app.Problem.Publishers()
	feed := make(chan msg.Modification, 64)
	done := make(chan struct{})
	wg := &sync.WaitGroup{}
	for _, p := range pubs {
		ch := p.Subscribe(pid)
		wg.Add(1)
		go func(ch <-chan msg.Modification) {
			defer wg.Done()
			for m := range ch {
				select {
				case feed <- m:
				case <-done:
					return
				}
			}
		}(ch)
	}
	defer func() {
		close(done)
		for _, p := range pubs {
			p.Unsubscribe(pid)
		}
		wg.Wait()
	}()

	conn, err := app.upgrader.Upgrade(w, r, nil)
	if err != nil {
		app.log.Warnw("[Webservice] websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	for {
		select {
		case m := <-feed:
			if err := conn.WriteJSON(m.Record()); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (app *App) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		app.log.Errorw("[Webservice] malformed JSON", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	w.Write(body)
}

func (app *App) writeError(w http.ResponseWriter, status int, err error) {
	app.writeJSON(w, status, struct {
		Error string `json:"Error"`
	}{err.Error()})
}
