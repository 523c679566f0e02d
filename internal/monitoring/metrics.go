package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
//
// 所有记录方法允许 nil 接收者，未启用监控时组件可以直接传 nil。
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 轮询指标
	PollsTotal    *prometheus.CounterVec
	PollsSkipped  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	InboxMessages prometheus.Gauge

	// 监控列表指标
	LookupEntries      prometheus.Gauge
	LookupUnread       *prometheus.GaugeVec
	NotificationsTotal *prometheus.CounterVec
	AddressesGenerated *prometheus.CounterVec

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 限流指标
	RateLimitBlocks *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics 创建监控指标并注册到独立的注册表
//
// reg 为 nil 时新建注册表并附带 Go 运行时与进程指标
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			prometheus.NewGoCollector(),
			prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_client_http_requests_total",
				Help: "Total number of local API requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tempmail_client_http_request_duration_seconds",
				Help:    "Local API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		PollsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_client_polls_total",
				Help: "Total number of backend polls by source and result",
			},
			[]string{"source", "result"},
		),

		PollsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_client_polls_skipped_total",
				Help: "Polls skipped because of inactivity or an in-flight fetch",
			},
			[]string{"source", "reason"},
		),

		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tempmail_client_fetch_duration_seconds",
				Help:    "Backend fetch duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"source"},
		),

		InboxMessages: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tempmail_client_inbox_messages",
				Help: "Number of messages in the active inbox",
			},
		),

		LookupEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tempmail_client_lookup_entries",
				Help: "Number of addresses in the lookup list",
			},
		),

		LookupUnread: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tempmail_client_lookup_unread",
				Help: "Unread message count per watched address",
			},
			[]string{"address"},
		),

		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_client_notifications_total",
				Help: "Notifications emitted for watched addresses",
			},
			[]string{"result"},
		),

		AddressesGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_client_addresses_generated_total",
				Help: "Address generations by username mode and result",
			},
			[]string{"mode", "result"},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_client_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_client_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_client_rate_limit_blocks_total",
				Help: "Requests blocked by a rate limiter",
			},
			[]string{"type"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordPoll 记录一次轮询结果
func (m *Metrics) RecordPoll(source string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.PollsTotal.WithLabelValues(source, result).Inc()
	m.FetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordPollSkipped 记录跳过的轮询
func (m *Metrics) RecordPollSkipped(source, reason string) {
	if m == nil {
		return
	}
	m.PollsSkipped.WithLabelValues(source, reason).Inc()
}

// UpdateInboxMessages 更新收件箱邮件数
func (m *Metrics) UpdateInboxMessages(count int) {
	if m == nil {
		return
	}
	m.InboxMessages.Set(float64(count))
}

// UpdateLookupEntries 更新监控列表条目数
func (m *Metrics) UpdateLookupEntries(count int) {
	if m == nil {
		return
	}
	m.LookupEntries.Set(float64(count))
}

// UpdateLookupUnread 更新监控地址未读数
func (m *Metrics) UpdateLookupUnread(address string, count int) {
	if m == nil {
		return
	}
	m.LookupUnread.WithLabelValues(address).Set(float64(count))
}

// RemoveLookupUnread 移除监控地址的未读指标
func (m *Metrics) RemoveLookupUnread(address string) {
	if m == nil {
		return
	}
	m.LookupUnread.DeleteLabelValues(address)
}

// RecordNotification 记录通知发送结果
func (m *Metrics) RecordNotification(result string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(result).Inc()
}

// RecordAddressGenerated 记录地址生成
func (m *Metrics) RecordAddressGenerated(mode string, ok bool) {
	if m == nil {
		return
	}
	m.AddressesGenerated.WithLabelValues(mode, strconv.FormatBool(ok)).Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock(limitType string) {
	if m == nil {
		return
	}
	m.RateLimitBlocks.WithLabelValues(limitType).Inc()
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
