// Package metrics exports Prometheus metrics for the reconciliation
// subsystem on a dedicated registry, served by its own HTTP listener.
package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/vidforge/rendertrack/pkg/models"
	"github.com/vidforge/rendertrack/pkg/store"
)

// Exporter records reconciliation counters and serves them together
// with job-state gauges computed from the store on each scrape.
type Exporter struct {
	store     store.Store
	registry  *promclient.Registry
	startTime time.Time

	polls          *promclient.CounterVec
	callbacks      *promclient.CounterVec
	backendQueries *promclient.CounterVec
}

// NewExporter creates an exporter backed by its own registry
func NewExporter(s store.Store) *Exporter {
	e := &Exporter{
		store:     s,
		registry:  promclient.NewRegistry(),
		startTime: time.Now(),
		polls: promclient.NewCounterVec(
			promclient.CounterOpts{
				Name: "rendertrack_polls_total",
				Help: "Total status polls by outcome",
			},
			[]string{"outcome"},
		),
		callbacks: promclient.NewCounterVec(
			promclient.CounterOpts{
				Name: "rendertrack_callbacks_total",
				Help: "Total backend callbacks by outcome",
			},
			[]string{"outcome"},
		),
		backendQueries: promclient.NewCounterVec(
			promclient.CounterOpts{
				Name: "rendertrack_backend_queries_total",
				Help: "Total backend status queries by backend kind and result",
			},
			[]string{"backend", "result"},
		),
	}

	e.registry.MustRegister(e.polls)
	e.registry.MustRegister(e.callbacks)
	e.registry.MustRegister(e.backendQueries)
	return e
}

// RecordPoll records one poll by outcome
func (e *Exporter) RecordPoll(outcome string) {
	e.polls.WithLabelValues(outcome).Inc()
}

// RecordCallback records one ingested callback by outcome
func (e *Exporter) RecordCallback(outcome string) {
	e.callbacks.WithLabelValues(outcome).Inc()
}

// RecordBackendQuery records one backend status query
func (e *Exporter) RecordBackendQuery(kind, result string) {
	e.backendQueries.WithLabelValues(kind, result).Inc()
}

// ServeHTTP serves Prometheus-compatible metrics at /metrics
func (e *Exporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	// Job-state gauges are computed from the store on each scrape so
	// they never drift from the persisted truth.
	jobsByStatus := map[models.JobStatus]int{
		models.JobStatusPending:    0,
		models.JobStatusProcessing: 0,
		models.JobStatusCompleted:  0,
		models.JobStatusFailed:     0,
	}
	jobsByBackend := map[models.BackendKind]int{
		models.BackendServerless: 0,
		models.BackendGPU:        0,
		models.BackendLocal:      0,
	}
	jobs, err := e.store.ListJobs(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Error collecting job metrics: %v", err), http.StatusInternalServerError)
		return
	}
	for _, job := range jobs {
		jobsByStatus[job.Status]++
		jobsByBackend[job.Backend.Kind]++
	}

	fmt.Fprintf(w, "# HELP rendertrack_jobs Jobs by lifecycle status\n")
	fmt.Fprintf(w, "# TYPE rendertrack_jobs gauge\n")
	for _, status := range []models.JobStatus{
		models.JobStatusPending, models.JobStatusProcessing,
		models.JobStatusCompleted, models.JobStatusFailed,
	} {
		fmt.Fprintf(w, "rendertrack_jobs{status=\"%s\"} %d\n", status, jobsByStatus[status])
	}

	fmt.Fprintf(w, "\n# HELP rendertrack_jobs_by_backend Jobs by backend kind\n")
	fmt.Fprintf(w, "# TYPE rendertrack_jobs_by_backend gauge\n")
	for _, kind := range []models.BackendKind{
		models.BackendServerless, models.BackendGPU, models.BackendLocal,
	} {
		fmt.Fprintf(w, "rendertrack_jobs_by_backend{backend=\"%s\"} %d\n", kind, jobsByBackend[kind])
	}

	fmt.Fprintf(w, "\n# HELP rendertrack_uptime_seconds Reconciler uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE rendertrack_uptime_seconds gauge\n")
	fmt.Fprintf(w, "rendertrack_uptime_seconds %.0f\n", time.Since(e.startTime).Seconds())

	fmt.Fprintf(w, "\n")

	metricFamilies, err := e.registry.Gather()
	if err != nil {
		fmt.Fprintf(w, "# Error gathering Prometheus metrics: %v\n", err)
		return
	}
	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range metricFamilies {
		if err := encoder.Encode(mf); err != nil {
			fmt.Fprintf(w, "# Error encoding metric %s: %v\n", mf.GetName(), err)
		}
	}
	w.Write(buf.Bytes())
}
