// Package metrics exposes fleet-wide health for the Inference3D driver.
// The teacher's pkg/monitoring/prometheus/client.go is a Prometheus QUERY
// client — it reads metrics scraped from somewhere else. This process has
// nothing external to query: it is the thing that should be scraped. So
// this package keeps the same library (github.com/prometheus/client_golang)
// but uses its exposition side (prometheus.Registry + promhttp) instead of
// its API-query side.
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the gauges/counters the driver updates as it dispatches
// datapoints across the fleet.
type Registry struct {
	reg *prometheus.Registry

	DatapointsCompleted prometheus.Counter
	DatapointsFailed    prometheus.Counter
	DatapointsInflight  prometheus.Gauge
	IterationsTotal     prometheus.Counter
	AcceptanceRate      prometheus.Gauge
	server              *http.Server
}

// NewRegistry creates a fresh registry with all fleet gauges registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Registry{
		reg: reg,
		DatapointsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "aem_inversion_datapoints_completed_total",
			Help: "Number of datapoint inversions that completed successfully.",
		}),
		DatapointsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "aem_inversion_datapoints_failed_total",
			Help: "Number of datapoint inversions that failed (halfspace or chain error, cancelled chain, or IOError).",
		}),
		DatapointsInflight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aem_inversion_datapoints_inflight",
			Help: "Number of datapoint inversions currently running.",
		}),
		IterationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "aem_inversion_iterations_total",
			Help: "Total MCMC iterations executed across all datapoints.",
		}),
		AcceptanceRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aem_inversion_acceptance_rate",
			Help: "Most recently reported window acceptance rate (0-100), across all active chains.",
		}),
	}
}

// Serve starts the /metrics HTTP endpoint on addr in the background and
// returns immediately; call Shutdown to stop it. Mirrors the --debug flag
// boundary documented in spec.md §6.
func (r *Registry) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	r.server = &http.Server{Handler: mux}
	go r.server.Serve(ln) //nolint:errcheck
	return nil
}

// Shutdown stops the metrics HTTP server, if running.
func (r *Registry) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return r.server.Shutdown(shutdownCtx)
}
