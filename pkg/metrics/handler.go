package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type MetricsHandler struct {
	metrics  *Metrics
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	stop     chan struct{}
	stopOnce sync.Once
}

func NewMetricsHandler(metrics *Metrics, gatherer prometheus.Gatherer, logger *zap.Logger) *MetricsHandler {
	handler := &MetricsHandler{
		metrics:  metrics,
		gatherer: gatherer,
		logger:   logger,
		stop:     make(chan struct{}),
	}

	go handler.collectSystemMetrics(10 * time.Second)

	return handler
}

func (h *MetricsHandler) Handler() http.Handler {
	return promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(h.logger),
	})
}

func (h *MetricsHandler) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}

func (h *MetricsHandler) collectSystemMetrics(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.metrics.System.GoroutineCount.Set(float64(runtime.NumGoroutine()))
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.metrics.System.GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

func (h *MetricsHandler) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	h.metrics.Http.RequestsTotal.WithLabelValues(method, path).Inc()
	h.metrics.Http.ResponseStatusCode.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	h.metrics.Http.RequestDuration.WithLabelValues(path).Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrader take over an instrumented connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Instrument wraps next so every request is counted under path. Upgraded
// WebSocket requests are recorded when the handler returns.
func (h *MetricsHandler) Instrument(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		h.RecordHTTPRequest(r.Method, path, rec.status, time.Since(start))
	}
}
