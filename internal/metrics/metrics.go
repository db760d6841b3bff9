package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "settlement"

// 结算阶段结果
const (
	OutcomeDone     = "done"
	OutcomeSkipped  = "skipped"
	OutcomeDeferred = "deferred"
	OutcomeAborted  = "aborted"
	OutcomeFailed   = "failed"
)

var (
	StageRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Settlement stage executions by outcome",
		},
		[]string{"stage", "outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Settlement stage execution time",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	CommissionsCreditedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commissions_credited_total",
			Help:      "Commission rows written to the ledger",
		},
		[]string{"level"},
	)

	CommissionAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commission_amount_total",
			Help:      "Commission amount credited to wallets",
		},
		[]string{"level"},
	)

	OutboxRedispatchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_redispatched_total",
			Help:      "Stale settlement tasks picked up by the sweeper",
		},
	)

	TaskFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_failures_total",
			Help:      "Queue task failures, exhausted marks the final attempt",
		},
		[]string{"task_type", "exhausted"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPResponseSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_time_seconds",
			Help:      "Histogram of response times",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// ObserveStage 记录一次阶段执行
func ObserveStage(stage, outcome string, elapsed time.Duration) {
	StageRunsTotal.WithLabelValues(stage, outcome).Inc()
	if outcome != OutcomeSkipped && outcome != OutcomeDeferred {
		StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	}
}

// CommissionCredited 记录一笔新入账佣金
func CommissionCredited(level int, amount decimal.Decimal) {
	label := strconv.Itoa(level)
	CommissionsCreditedTotal.WithLabelValues(label).Inc()
	if amount.IsPositive() {
		CommissionAmountTotal.WithLabelValues(label).Add(amount.InexactFloat64())
	}
}

// OutboxRedispatched 记录补偿扫描重新派发的任务数
func OutboxRedispatched(count int) {
	if count > 0 {
		OutboxRedispatchedTotal.Add(float64(count))
	}
}

// TaskFailed 记录队列任务失败
func TaskFailed(taskType string, exhausted bool) {
	TaskFailuresTotal.WithLabelValues(taskType, strconv.FormatBool(exhausted)).Inc()
}

// Middleware 按路由模板统计请求，未匹配路由归为同一标签
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPResponseSeconds.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler 暴露默认注册表
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
