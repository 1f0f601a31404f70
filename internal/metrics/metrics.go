// Package metrics 提供运行指标采集
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标集合
type Metrics struct {
	registry *prometheus.Registry

	SolveTotal    *prometheus.CounterVec   // 求解次数（按结果）
	SolveDuration prometheus.Histogram     // 求解耗时
	EventTotal    *prometheus.CounterVec   // 扰动事件次数（按类型）
	WaitlistSize  prometheus.Gauge         // 当前等待列表长度
	Makespan      prometheus.Gauge         // 当前方案完工时间（分钟）
	ScheduledRows prometheus.Gauge         // 当前方案行数
	HTTPRequests  *prometheus.CounterVec   // HTTP 请求数
	HTTPDuration  *prometheus.HistogramVec // HTTP 请求耗时
}

// New 创建指标集合
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SolveTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paitai_solve_total",
			Help: "求解次数，按结果分类",
		}, []string{"status"}), // feasible/infeasible
		SolveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "paitai_solve_duration_seconds",
			Help:    "单次求解耗时",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 20, 30, 60},
		}),
		EventTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paitai_event_total",
			Help: "扰动事件次数，按类型分类",
		}, []string{"kind"}),
		WaitlistSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "paitai_waitlist_size",
			Help: "当前等待列表长度",
		}),
		Makespan: factory.NewGauge(prometheus.GaugeOpts{
			Name: "paitai_makespan_minutes",
			Help: "当前方案完工时间（当日分钟）",
		}),
		ScheduledRows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "paitai_scheduled_cases",
			Help: "当前方案已排病例数",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paitai_http_requests_total",
			Help: "HTTP 请求数",
		}, []string{"method", "path", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "paitai_http_request_duration_seconds",
			Help:    "HTTP 请求耗时",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// ObserveSolve 记录一次求解
func (m *Metrics) ObserveSolve(feasible bool, elapsed time.Duration) {
	status := "feasible"
	if !feasible {
		status = "infeasible"
	}
	m.SolveTotal.WithLabelValues(status).Inc()
	m.SolveDuration.Observe(elapsed.Seconds())
}

// ObserveSchedule 记录当前方案状态
func (m *Metrics) ObserveSchedule(rows, waitlisted, makespan int) {
	m.ScheduledRows.Set(float64(rows))
	m.WaitlistSize.Set(float64(waitlisted))
	m.Makespan.Set(float64(makespan))
}

// ObserveEvent 记录一次扰动事件
func (m *Metrics) ObserveEvent(kind string) {
	m.EventTotal.WithLabelValues(kind).Inc()
}

// Handler 返回指标暴露端点
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware HTTP 指标中间件
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		m.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// statusRecorder 捕获响应状态码
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
