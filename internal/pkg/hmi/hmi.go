// Package hmi is a terminal dashboard over a running problem: one table row
// per unit and a scrolling log of the modifications they emit.
package hmi

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gdamore/tcell"
	"github.com/google/uuid"
	"github.com/ohowland/cgc_ucblock/internal/pkg/dispatch/lpdispatch"
	"github.com/ohowland/cgc_ucblock/internal/pkg/log"
	"github.com/ohowland/cgc_ucblock/internal/pkg/msg"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

var header = []string{"Unit", "Kind", "Stage", "Variables", "Rows", "Nonzeros"}

type HMI struct {
	pid     uuid.UUID
	problem *lpdispatch.Problem
	names   map[uuid.UUID]string
	app     *tview.Application
	units   *tview.Table
	feed    *tview.TextView
	log     *zap.SugaredLogger
}

func New(p *lpdispatch.Problem) (*HMI, error) {
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	h := &HMI{
		pid:     pid,
		problem: p,
		names:   map[uuid.UUID]string{p.PID(): "system"},
		app:     tview.NewApplication(),
		units:   tview.NewTable().SetFixed(1, 1),
		feed:    tview.NewTextView().SetDynamicColors(true),
		log:     log.Named("HMI"),
	}
	for _, u := range p.Units() {
		h.names[u.PID()] = u.Name()
	}
	h.units.SetBorder(true).SetTitle(" Units ")
	h.feed.SetBorder(true).SetTitle(" Modifications ")
	h.Refresh()
	return h, nil
}

// Refresh rewrites the unit table from the problem.
func (h *HMI) Refresh() {
	for col, name := range header {
		h.units.SetCell(0, col, tview.NewTableCell(name).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false))
	}
	for row, u := range h.problem.Units() {
		s := u.Block().Stats()
		cells := []string{
			u.Name(),
			u.Kind().String(),
			u.Stage().String(),
			strconv.Itoa(s.Variables),
			strconv.Itoa(s.Rows),
			strconv.Itoa(s.Nonzeros),
		}
		for col, text := range cells {
			color := tcell.ColorWhite
			if col == 0 {
				color = tcell.ColorDarkCyan
			}
			h.units.SetCell(row+1, col, tview.NewTableCell(text).
				SetTextColor(color).
				SetAlign(tview.AlignLeft))
		}
	}
}

// Line formats m for the modification log.
func (h *HMI) Line(at time.Time, m msg.Modification) string {
	name, ok := h.names[m.PID()]
	if !ok {
		name = m.PID().String()
	}
	color := "green"
	if m.Layer == msg.Abstract {
		color = "blue"
	}
	entity := ""
	if m.Entity != msg.NoEntity {
		entity = fmt.Sprintf("(%d)", m.Entity)
	}
	return fmt.Sprintf("%s [%s]%-8s[white] %s %s%s %s",
		at.Format("15:04:05"), color, m.Layer, name, m.Kind, entity, m.Location)
}

// Run draws the dashboard until the user quits or ctx ends.
func (h *HMI) Run(ctx context.Context) error {
	pubs := h.problem.Publishers()
	done := make(chan struct{})
	wg := &sync.WaitGroup{}
	for _, p := range pubs {
		ch := p.Subscribe(h.pid)
		wg.Add(1)
		go func(ch <-chan msg.Modification) {
			defer wg.Done()
			for m := range ch {
				line := h.Line(time.Now(), m)
				h.app.QueueUpdateDraw(func() {
					fmt.Fprintln(h.feed, line)
					h.feed.ScrollToEnd()
					h.Refresh()
				})
			}
		}(ch)
	}
	go func() {
		select {
		case <-ctx.Done():
			h.app.Stop()
		case <-done:
		}
	}()

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(h.units, 0, 1, true).
		AddItem(h.feed, 0, 2, false)

	h.log.Infow("[HMI] started")
	err := h.app.SetRoot(layout, true).Run()
	close(done)
	for _, p := range pubs {
		p.Unsubscribe(h.pid)
	}
	wg.Wait()
	return err
}
