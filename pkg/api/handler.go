// Package api exposes the reconciliation subsystem over HTTP: the poll
// endpoint clients hit for job status, the callback endpoint render
// backends push final results to, and operational endpoints.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/vidforge/rendertrack/pkg/reconcile"
	"github.com/vidforge/rendertrack/pkg/store"
)

// Handler handles reconciliation API requests
type Handler struct {
	reconciler *reconcile.Reconciler
	store      store.Store
	log        *zap.SugaredLogger
	startTime  time.Time
}

// NewHandler creates a new API handler
func NewHandler(rec *reconcile.Reconciler, s store.Store, log *zap.SugaredLogger) *Handler {
	return &Handler{
		reconciler: rec,
		store:      s,
		log:        log,
		startTime:  time.Now(),
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Callback route before the parameterized status route
	r.HandleFunc("/jobs/callback", h.JobCallback).Methods("POST")
	r.HandleFunc("/jobs/{id}/status", h.GetJobStatus).Methods("GET")
	r.HandleFunc("/jobs", h.ListJobs).Methods("GET")

	// Operational routes
	r.HandleFunc("/dispatches", h.ListDispatches).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")
}

// GetJobStatus reconciles and returns the status of one render job
func (h *Handler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	jobID := vars["id"]

	status, err := h.reconciler.Poll(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		h.log.Errorw("poll failed", "job_id", jobID, "error", err)
		http.Error(w, "Failed to get job status", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// JobCallback ingests a completion callback pushed by a render backend
func (h *Handler) JobCallback(w http.ResponseWriter, r *http.Request) {
	var cb reconcile.Callback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.reconciler.Ingest(r.Context(), cb)
	if err != nil {
		var verr *reconcile.ValidationError
		switch {
		case errors.Is(err, reconcile.ErrBadSecret):
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		case errors.As(err, &verr):
			http.Error(w, verr.Msg, http.StatusBadRequest)
		case errors.Is(err, store.ErrJobNotFound):
			http.Error(w, "Job not found", http.StatusNotFound)
		default:
			h.log.Errorw("callback ingest failed", "job_id", cb.JobID, "error", err)
			http.Error(w, "Failed to process callback", http.StatusInternalServerError)
		}
		return
	}

	if result.Skipped {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "skipped",
			"job_id":  cb.JobID,
			"message": result.Message,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":         "ok",
		"job_id":         cb.JobID,
		"updated_status": string(result.UpdatedStatus),
	})
}

// ListJobs returns all job records (debugging and the ops CLI)
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.ListJobs(r.Context())
	if err != nil {
		h.log.Errorw("list jobs failed", "error", err)
		http.Error(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// ListDispatches returns the recorded downstream dispatch attempts
func (h *Handler) ListDispatches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reconciler.Dispatcher().Records())
}

// Health returns the health status of the reconciler process
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	storeStatus := "ok"
	if err := h.store.HealthCheck(); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		storeStatus = err.Error()
	}

	health := map[string]interface{}{
		"status":         status,
		"store":          storeStatus,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		health["memory_used_percent"] = vm.UsedPercent
	}
	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		health["cpu_percent"] = cpuPercent[0]
	}

	writeJSON(w, code, health)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
