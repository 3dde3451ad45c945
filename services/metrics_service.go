package services

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/APasz/Yukibot/internal/logger"
)

var (
	requestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yukibot_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"service"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yukibot_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	requestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yukibot_request_errors_total",
			Help: "Total HTTP requests answered with an error status",
		},
		[]string{"service"},
	)

	matcherErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yukibot_matcher_errors_total",
			Help: "Total log matcher failures",
		},
		[]string{"matcher"},
	)

	relayQueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "yukibot_relay_queued_total",
			Help: "Total messages accepted by the chat relay",
		},
	)

	relayDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "yukibot_relay_delivered_total",
			Help: "Total messages delivered by the chat relay",
		},
	)

	relayDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "yukibot_relay_dropped_total",
			Help: "Total messages dropped by the chat relay",
		},
	)

	adminReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yukibot_admin_reconnects_total",
			Help: "Total admin connection setup attempts after the first",
		},
		[]string{"app", "protocol"},
	)
)

func init() {
	prometheus.MustRegister(requestCount)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(requestErrors)
	prometheus.MustRegister(matcherErrors)
	prometheus.MustRegister(relayQueued)
	prometheus.MustRegister(relayDelivered)
	prometheus.MustRegister(relayDropped)
	prometheus.MustRegister(adminReconnects)
}

/**
 * MetricsService 指标服务
 * @description
 * - 包装Prometheus指标，同时维护本地计数器供健康检查读取
 * - Prometheus的Counter不可读，健康检查需要原子计数器镜像
 */
type MetricsService struct {
	totalRequests int64
	totalErrors   int64
}

var (
	metricsService     *MetricsService
	metricsServiceOnce sync.Once
)

func GetMetricsService() *MetricsService {
	metricsServiceOnce.Do(func() {
		metricsService = &MetricsService{}
	})
	return metricsService
}

func (m *MetricsService) IncrementRequestCount(service string) {
	requestCount.WithLabelValues(service).Inc()
	atomic.AddInt64(&m.totalRequests, 1)
}

func (m *MetricsService) RecordRequestDuration(service string, seconds float64) {
	requestDuration.WithLabelValues(service).Observe(seconds)
}

func (m *MetricsService) IncrementErrorCount(service string) {
	requestErrors.WithLabelValues(service).Inc()
	atomic.AddInt64(&m.totalErrors, 1)
}

func (m *MetricsService) IncrementMatcherError(matcher string) {
	matcherErrors.WithLabelValues(matcher).Inc()
}

func (m *MetricsService) IncrementRelayQueued()    { relayQueued.Inc() }
func (m *MetricsService) IncrementRelayDelivered() { relayDelivered.Inc() }
func (m *MetricsService) IncrementRelayDropped()   { relayDropped.Inc() }

func (m *MetricsService) IncrementAdminReconnect(app, protocol string) {
	adminReconnects.WithLabelValues(app, protocol).Inc()
}

/**
 * StartPushReporter 周期性推送指标到Pushgateway
 * @param {string} gateway - Pushgateway地址
 * @param {time.Duration} interval - 推送间隔
 * @description
 * - 推送失败只记日志，下个周期重试
 */
func (m *MetricsService) StartPushReporter(gateway string, interval time.Duration) {
	pusher := push.New(gateway, "yukibot").Gatherer(prometheus.DefaultGatherer)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			if err := pusher.Push(); err != nil {
				logger.Warnf("Failed to push metrics to %s: %v", gateway, err)
			}
		}
	}()
}

func (m *MetricsService) GetTotalRequestCount() int64 {
	return atomic.LoadInt64(&m.totalRequests)
}

func (m *MetricsService) GetTotalErrorCount() int64 {
	return atomic.LoadInt64(&m.totalErrors)
}

// 供中间件使用的包级入口
func IncrementRequestCount(service string) { GetMetricsService().IncrementRequestCount(service) }
func RecordRequestDuration(service string, seconds float64) {
	GetMetricsService().RecordRequestDuration(service, seconds)
}
func IncrementErrorCount(service string) { GetMetricsService().IncrementErrorCount(service) }
func GetTotalRequestCount() int64        { return GetMetricsService().GetTotalRequestCount() }
func GetTotalErrorCount() int64          { return GetMetricsService().GetTotalErrorCount() }
