// Package metrics holds the prometheus collectors of the unit models.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// VariablesGenerated counts abstract variables created per unit kind.
	VariablesGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ucblock",
			Name:      "variables_generated_total",
			Help:      "Abstract variables generated, by unit kind.",
		},
		[]string{"kind"},
	)

	// RowsGenerated counts abstract row constraints created per unit kind.
	RowsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ucblock",
			Name:      "rows_generated_total",
			Help:      "Abstract row constraints generated, by unit kind.",
		},
		[]string{"kind"},
	)

	// Modifications counts emitted modification records per field kind and layer.
	Modifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ucblock",
			Name:      "modifications_total",
			Help:      "Modification records emitted, by field kind and layer.",
		},
		[]string{"kind", "layer"},
	)

	// NoopEdits counts setter calls that changed nothing.
	NoopEdits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ucblock",
			Name:      "noop_edits_total",
			Help:      "Setter calls short-circuited because nothing changed.",
		},
		[]string{"kind"},
	)

	// GenerationFailures counts unit builds that failed on a data error.
	GenerationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ucblock",
			Name:      "generation_failures_total",
			Help:      "Unit generation calls that failed, by unit kind.",
		},
		[]string{"kind"},
	)
)

// Collectors returns every collector of the package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		VariablesGenerated,
		RowsGenerated,
		Modifications,
		NoopEdits,
		GenerationFailures,
	}
}

// Register registers every collector with reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
