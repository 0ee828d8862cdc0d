package main

import (
	"testing"
	"time"

	"github.com/ohowland/cgc_ucblock/internal/pkg/config"
	"github.com/ohowland/cgc_ucblock/internal/pkg/group"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit/intermittent"
	"gotest.tools/v3/assert"
)

func loadProblem(t *testing.T) *config.Config {
	cfg, err := config.Parse([]byte("document: ../../internal/pkg/dispatch/lpdispatch/testdata/system.json\n"))
	assert.NilError(t, err)
	return &cfg
}

func TestBuildProblem(t *testing.T) {
	cfg := loadProblem(t)
	doc, err := group.Load(cfg.Document)
	assert.NilError(t, err)
	p, err := buildProblem(*cfg, "system", doc)
	assert.NilError(t, err)
	assert.Equal(t, len(p.Units()), 4)

	u, err := findUnit(p, "pv")
	assert.NilError(t, err)
	assert.Equal(t, u.Name(), "pv")
	_, err = findUnit(p, "wind")
	assert.ErrorContains(t, err, "no unit named wind")
}

func TestApplyForecasts(t *testing.T) {
	cfg := loadProblem(t)
	doc, err := group.Load(cfg.Document)
	assert.NilError(t, err)
	p, err := buildProblem(*cfg, "system", doc)
	assert.NilError(t, err)

	start := time.Date(2020, time.June, 21, 11, 0, 0, 0, time.UTC)
	err = applyForecasts(p, []config.Forecast{{Unit: "pv", Rating: 2, Tilt: 30, Latitude: 42, Start: start, Step: time.Hour}})
	assert.NilError(t, err)

	u, _ := findUnit(p, "pv")
	pv := u.(*intermittent.Unit)
	sky := intermittent.ClearSky{Rating: 2, Tilt: 30, Latitude: 42}
	want := sky.Profile(start, time.Hour, 3)
	for i, v := range want {
		assert.Equal(t, pv.MaxPowerRow(i).Upper, v)
	}

	err = applyForecasts(p, []config.Forecast{{Unit: "bess", Rating: 1, Step: time.Hour}})
	assert.ErrorContains(t, err, "not an intermittent unit")
}
