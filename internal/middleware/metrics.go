package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	AuditsTotal        uint64
	AuditsRunning      uint64
	AuditsFailed       uint64
	EmailsSent         uint64
	EmailsFailed       uint64
	StartTime          time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

// IncrementRequests increments total request counter
func IncrementRequests() {
	atomic.AddUint64(&globalMetrics.RequestsTotal, 1)
}

// IncrementInProgress increments in-progress request counter
func IncrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, 1)
}

// DecrementInProgress decrements in-progress request counter
func DecrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0))
}

// IncrementSuccess increments successful request counter
func IncrementSuccess() {
	atomic.AddUint64(&globalMetrics.RequestsSuccess, 1)
}

// IncrementFailed increments failed request counter
func IncrementFailed() {
	atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
}

// IncrementAudits increments total audit session counter
func IncrementAudits() {
	atomic.AddUint64(&globalMetrics.AuditsTotal, 1)
}

// IncrementAuditsRunning increments running session counter
func IncrementAuditsRunning() {
	atomic.AddUint64(&globalMetrics.AuditsRunning, 1)
}

// DecrementAuditsRunning decrements running session counter
func DecrementAuditsRunning() {
	atomic.AddUint64(&globalMetrics.AuditsRunning, ^uint64(0))
}

// IncrementAuditsFailed increments failed session counter
func IncrementAuditsFailed() {
	atomic.AddUint64(&globalMetrics.AuditsFailed, 1)
}

// IncrementEmailsSent increments delivered email counter
func IncrementEmailsSent() {
	atomic.AddUint64(&globalMetrics.EmailsSent, 1)
}

// IncrementEmailsFailed increments failed email counter
func IncrementEmailsFailed() {
	atomic.AddUint64(&globalMetrics.EmailsFailed, 1)
}

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"audits_total":         atomic.LoadUint64(&globalMetrics.AuditsTotal),
		"audits_running":       atomic.LoadUint64(&globalMetrics.AuditsRunning),
		"audits_failed":        atomic.LoadUint64(&globalMetrics.AuditsFailed),
		"emails_sent":          atomic.LoadUint64(&globalMetrics.EmailsSent),
		"emails_failed":        atomic.LoadUint64(&globalMetrics.EmailsFailed),
		"uptime_seconds":       time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		IncrementInProgress()
		defer DecrementInProgress()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			IncrementSuccess()
		} else {
			IncrementFailed()
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
