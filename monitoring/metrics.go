// Package monitoring 提供Prometheus指标和模型文件监控
package monitoring

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "loanscore"

// Metrics 指标收集器，使用独立的registry
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	predictionsTotal   *prometheus.CounterVec
	predictionFailures *prometheus.CounterVec
	artifactChanges    *prometheus.CounterVec
	modelAccuracy      *prometheus.GaugeVec
}

// NewMetrics 创建指标收集器
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		requestInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "in_flight_requests",
				Help:      "Number of in-flight HTTP requests.",
			},
		),
		predictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "predictor",
				Name:      "predictions_total",
				Help:      "Successful predictions by risk level and decision.",
			},
			[]string{"risk_level", "approved"},
		),
		predictionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "predictor",
				Name:      "failures_total",
				Help:      "Failed predictions by error kind.",
			},
			[]string{"kind"},
		),
		artifactChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "artifacts",
				Name:      "changes_total",
				Help:      "Artifact files modified on disk while the service was running.",
			},
			[]string{"file"},
		),
		modelAccuracy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "model",
				Name:      "accuracy",
				Help:      "Accuracy recorded at training time for the loaded model.",
			},
			[]string{"split"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
		m.predictionsTotal,
		m.predictionFailures,
		m.artifactChanges,
		m.modelAccuracy,
	)
	return m
}

// Handler 返回/metrics处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware 记录请求数、耗时和并发数
// path标签取自路由模式，未匹配的请求统一记为"unmatched"
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := routeLabel(r)
		m.requestTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordPrediction 记录一次成功的预测
func (m *Metrics) RecordPrediction(riskLevel string, approved bool) {
	m.predictionsTotal.WithLabelValues(riskLevel, strconv.FormatBool(approved)).Inc()
}

// RecordPredictionFailure 记录一次失败的预测
func (m *Metrics) RecordPredictionFailure(kind string) {
	m.predictionFailures.WithLabelValues(kind).Inc()
}

// RecordArtifactChange 记录模型文件变更
func (m *Metrics) RecordArtifactChange(file string) {
	m.artifactChanges.WithLabelValues(file).Inc()
}

// SetModelAccuracy 记录已加载模型的训练/测试准确率
func (m *Metrics) SetModelAccuracy(train, test float64) {
	m.modelAccuracy.WithLabelValues("train").Set(train)
	m.modelAccuracy.WithLabelValues("test").Set(test)
}

func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	if _, path, ok := strings.Cut(r.Pattern, " "); ok {
		return path
	}
	return r.Pattern
}

// statusRecorder 包装ResponseWriter以获取状态码
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}
