package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/microbrsoil-backend/internal/jobs/queue"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

const defaultScrapeInterval = 15 * time.Second

// Metrics holds the process metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge
	jobs        *CounterVec
	jobDuration *HistogramVec
	queueDepth  *GaugeVec
	redisUp     *Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("microbrsoil_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"microbrsoil_api_request_duration_seconds",
			"API request latency in seconds by method/route.",
			[]string{"method", "route"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight: NewGauge("microbrsoil_api_inflight_requests", "In-flight API requests."),
		jobs:        NewCounterVec("microbrsoil_pipeline_tasks_total", "Pipeline task deliveries by task type and outcome.", []string{"task_type", "outcome"}),
		jobDuration: NewHistogramVec(
			"microbrsoil_pipeline_task_duration_seconds",
			"Pipeline task delivery duration in seconds.",
			[]string{"task_type", "outcome"},
			[]float64{1, 10, 60, 300, 900, 1800, 3600, 3 * 3600, 6 * 3600, 12 * 3600},
		),
		queueDepth: NewGaugeVec("microbrsoil_queue_tasks", "Tasks in the pipeline queue by state.", []string{"state"}),
		redisUp:    NewGauge("microbrsoil_redis_up", "1 when the last queue inspection succeeded."),
	}
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(strings.ToUpper(method), route, status)
	m.apiLatency.Observe(dur.Seconds(), strings.ToUpper(method), route)
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Add(1)
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Add(-1)
}

// ObserveTask records one task delivery. outcome is "ok" or the failure kind.
func (m *Metrics) ObserveTask(taskType, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobs.Inc(taskType, outcome)
	m.jobDuration.Observe(dur.Seconds(), taskType, outcome)
}

func (m *Metrics) SetQueueStats(st *queue.Stats) {
	if m == nil || st == nil {
		return
	}
	m.queueDepth.Set(float64(st.Pending), "pending")
	m.queueDepth.Set(float64(st.Active), "active")
	m.queueDepth.Set(float64(st.Scheduled), "scheduled")
	m.queueDepth.Set(float64(st.Retry), "retry")
	m.queueDepth.Set(float64(st.Archived), "archived")
	m.queueDepth.Set(float64(st.Completed), "completed")
}

// StartQueueCollector polls queue stats until ctx is done.
func (m *Metrics) StartQueueCollector(ctx context.Context, log *logger.Logger, q queue.Queue, interval time.Duration) {
	if m == nil || q == nil {
		return
	}
	if interval <= 0 {
		interval = defaultScrapeInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st, err := q.Stats(ctx)
				if err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: queue inspection failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.SetQueueStats(st)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests,
		m.apiLatency,
		m.apiInflight,
		m.jobs,
		m.jobDuration,
		m.queueDepth,
		m.redisUp,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}
