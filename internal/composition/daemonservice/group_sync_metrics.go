package daemonservice

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MLS sync pipeline metrics, registered on prometheus.DefaultRegisterer (the
// registerer the real_waku build's go-waku message store also uses). No
// package in this module serves a scrape endpoint for it.
var (
	mlsSyncCycles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aim_mls_sync_cycles_total",
		Help: "Completed welcome+group sync passes.",
	})
	mlsSyncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "aim_mls_sync_duration_seconds",
		Help:    "Wall time of a full welcome+group sync pass.",
		Buckets: prometheus.DefBuckets,
	})
	mlsWelcomesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aim_mls_welcomes_processed_total",
		Help: "Welcomes successfully turned into local group state.",
	})
	mlsEnvelopeOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aim_mls_group_sync_outcomes_total",
		Help: "Sync outcomes: ok once per pass with no group errors, error once per failing group.",
	}, []string{"outcome"})
	mlsKeyPackageRotations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aim_mls_key_package_rotations_total",
		Help: "Key packages rotated in because a pool hit its trigger.",
	})
)

func init() {
	prometheus.DefaultRegisterer.MustRegister(
		mlsSyncCycles,
		mlsSyncDuration,
		mlsWelcomesProcessed,
		mlsEnvelopeOutcomes,
		mlsKeyPackageRotations,
	)
}

func observeMLSSyncCycle(started time.Time, joined int, groupErrs []error) {
	mlsSyncCycles.Inc()
	mlsSyncDuration.Observe(time.Since(started).Seconds())
	mlsWelcomesProcessed.Add(float64(joined))
	if len(groupErrs) == 0 {
		mlsEnvelopeOutcomes.WithLabelValues("ok").Inc()
		return
	}
	mlsEnvelopeOutcomes.WithLabelValues("error").Add(float64(len(groupErrs)))
}
