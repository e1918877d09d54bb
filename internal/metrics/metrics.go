package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 结果标签取值
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
	OutcomeDenied   = "denied"
	OutcomeMismatch = "state_mismatch"
)

// Metrics 业务指标
// 每个实例绑定自己的 Registerer，测试里可以用独立 registry
type Metrics struct {
	OAuthCallbacks *prometheus.CounterVec
	TokenRefreshes *prometheus.CounterVec
	SyncRuns       *prometheus.CounterVec
	SyncDuration   prometheus.Histogram
	SyncedRecords  *prometheus.CounterVec
}

// New 在 reg 上注册全部指标，reg 为 nil 时不注册 (仅计数)
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OAuthCallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backoffice",
			Name:      "oauth_callbacks_total",
			Help:      "OAuth callbacks by outcome.",
		}, []string{"outcome"}),
		TokenRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backoffice",
			Name:      "token_refreshes_total",
			Help:      "Etsy token refresh attempts by outcome.",
		}, []string{"outcome"}),
		SyncRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backoffice",
			Name:      "sync_runs_total",
			Help:      "Shop sync runs by outcome.",
		}, []string{"outcome"}),
		SyncDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "backoffice",
			Name:      "sync_duration_seconds",
			Help:      "Duration of successful shop syncs.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		SyncedRecords: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backoffice",
			Name:      "synced_records_total",
			Help:      "Records written by sync, by kind.",
		}, []string{"kind"}),
	}
}

// Nop 不注册到任何 registry
func Nop() *Metrics {
	return New(nil)
}

func (m *Metrics) ObserveCallback(outcome string) {
	m.OAuthCallbacks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRefresh(outcome string) {
	m.TokenRefreshes.WithLabelValues(outcome).Inc()
}

// ObserveSync 记录一次同步，只有成功的同步计入耗时
func (m *Metrics) ObserveSync(outcome string, elapsed time.Duration) {
	m.SyncRuns.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess {
		m.SyncDuration.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) AddRecords(kind string, n int) {
	if n > 0 {
		m.SyncedRecords.WithLabelValues(kind).Add(float64(n))
	}
}
