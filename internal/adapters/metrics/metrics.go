package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tickerSignal/internal/domain"
)

// Recorder implements ports.MetricsRecorder with Prometheus counters. Each
// Recorder owns its registry so several can coexist in one process (tests).
type Recorder struct {
	registry     *prometheus.Registry
	ticksTotal   *prometheus.CounterVec
	signalsTotal *prometheus.CounterVec
	storeErrors  *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
}

// NewRecorder creates and registers the service counters.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ticksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "ticks_ingested_total", Help: "Count of ticker records ingested"},
			[]string{"symbol"},
		),
		signalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "signals_computed_total", Help: "Crossover signals computed"},
			[]string{"symbol", "signal"},
		),
		storeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "store_errors_total", Help: "Ticker store failures by operation"},
			[]string{"operation"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "http_requests_total", Help: "HTTP requests by route and status code"},
			[]string{"route", "code"},
		),
	}
	r.registry.MustRegister(
		r.ticksTotal,
		r.signalsTotal,
		r.storeErrors,
		r.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) TicksIngested(symbol string, n int) {
	r.ticksTotal.WithLabelValues(symbol).Add(float64(n))
}

func (r *Recorder) SignalComputed(symbol string, signal domain.Signal) {
	r.signalsTotal.WithLabelValues(symbol, string(signal)).Inc()
}

func (r *Recorder) StoreError(operation string) {
	r.storeErrors.WithLabelValues(operation).Inc()
}

// HTTPRequest counts a served request.
func (r *Recorder) HTTPRequest(route string, status int) {
	r.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
