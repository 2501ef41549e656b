package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	serviceStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drivr",
			Subsystem: "service",
			Name:      "starts_total",
			Help:      "Number of driver processes launched.",
		}, []string{"name"},
	)
	serviceReuses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drivr",
			Subsystem: "service",
			Name:      "reuses_total",
			Help:      "Number of starts satisfied by an already running driver.",
		}, []string{"name"},
	)
	serviceStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drivr",
			Subsystem: "service",
			Name:      "stops_total",
			Help:      "Number of driver stops.",
		}, []string{"name"},
	)
	serviceState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "drivr",
			Subsystem: "service",
			Name:      "state",
			Help:      "Current lifecycle state of the driver (1 = active state, 0 = inactive).",
		}, []string{"name", "state"},
	)
	sessionConnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drivr",
			Subsystem: "session",
			Name:      "connects_total",
			Help:      "Connections by outcome (reused or created).",
		}, []string{"outcome"},
	)
	retryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drivr",
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "Absorbed failures that led to another attempt.",
		}, []string{"op"},
	)
	retryExhausted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "drivr",
			Subsystem: "retry",
			Name:      "exhausted_total",
			Help:      "Operations that failed after using every attempt.",
		}, []string{"op"},
	)
	lockWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "drivr",
			Subsystem: "state",
			Name:      "lock_wait_seconds",
			Help:      "Time spent acquiring a state record lock.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"record"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		serviceStarts, serviceReuses, serviceStops, serviceState,
		sessionConnects, retryAttempts, retryExhausted, lockWait,
		driverCPUPercent, driverMemoryMB, driverNumThreads,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncStart(name string) {
	if regOK.Load() {
		serviceStarts.WithLabelValues(name).Inc()
	}
}

func IncReuse(name string) {
	if regOK.Load() {
		serviceReuses.WithLabelValues(name).Inc()
	}
}

func IncStop(name string) {
	if regOK.Load() {
		serviceStops.WithLabelValues(name).Inc()
	}
}

// SetState marks state as the only active state for name.
func SetState(name, state string, all []string) {
	if !regOK.Load() {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		serviceState.WithLabelValues(name, s).Set(v)
	}
}

func IncConnect(outcome string) {
	if regOK.Load() {
		sessionConnects.WithLabelValues(outcome).Inc()
	}
}

func IncRetry(op string) {
	if regOK.Load() {
		retryAttempts.WithLabelValues(op).Inc()
	}
}

func IncExhausted(op string) {
	if regOK.Load() {
		retryExhausted.WithLabelValues(op).Inc()
	}
}

func ObserveLockWait(record string, seconds float64) {
	if regOK.Load() {
		lockWait.WithLabelValues(record).Observe(seconds)
	}
}
