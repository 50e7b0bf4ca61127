// Package metrics exposes Prometheus collectors for the prospection
// pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	combosTotal       *prometheus.CounterVec
	listingsTotal     prometheus.Counter
	updatesTotal      *prometheus.CounterVec
	creditsTotal      prometheus.Counter
	activeWorkers     prometheus.Gauge
	comboDurationSecs prometheus.Histogram

	once        sync.Once
	initialized bool
)

// Init registers the collectors. Safe to call multiple times; the
// observation helpers are no-ops until it runs.
func Init() {
	once.Do(func() {
		combosTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prospector_combos_total",
				Help: "Total combos processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		listingsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "prospector_listings_total",
				Help: "Total listings retained after merge and dedup.",
			},
		)

		updatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prospector_updates_total",
				Help: "Total staged enrichment updates, labeled by field.",
			},
			[]string{"field"},
		)

		creditsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "prospector_fetch_credits_total",
				Help: "Total proxy credits consumed across all attempts.",
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "prospector_active_workers",
				Help: "Number of workers currently claiming combos.",
			},
		)

		comboDurationSecs = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "prospector_combo_duration_seconds",
				Help:    "Histogram of end-to-end combo processing time.",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
		)

		initialized = true
	})
}

// Handler returns an http.Handler exposing the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCombo counts one processed combo and its duration.
func ObserveCombo(outcome string, duration time.Duration) {
	if !initialized {
		return
	}
	combosTotal.WithLabelValues(outcome).Inc()
	comboDurationSecs.Observe(duration.Seconds())
}

// ObserveListings adds retained listings.
func ObserveListings(n int) {
	if !initialized || n <= 0 {
		return
	}
	listingsTotal.Add(float64(n))
}

// ObserveUpdate counts one staged update for the given field.
func ObserveUpdate(field string) {
	if !initialized {
		return
	}
	updatesTotal.WithLabelValues(field).Inc()
}

// AddCredits adds consumed proxy credits.
func AddCredits(n int) {
	if !initialized || n <= 0 {
		return
	}
	creditsTotal.Add(float64(n))
}

// SetActiveWorkers records the current worker population.
func SetActiveWorkers(n int) {
	if !initialized {
		return
	}
	activeWorkers.Set(float64(n))
}
