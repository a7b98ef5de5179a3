// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlinePlayers       prometheus.Gauge
	ActiveRooms         prometheus.Gauge
	QueueLength         prometheus.Gauge
	MessagesReceived    *prometheus.CounterVec
	RoundsResolved      *prometheus.CounterVec
	PersistenceFailures *prometheus.CounterVec
	MessageLatency      prometheus.Histogram
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of distinct online users",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of active rooms",
		}),
		QueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Number of users waiting in the matchmaking queue",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of messages received, by event",
		}, []string{"event"}),
		RoundsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_resolved_total",
			Help:      "Resolved rounds, by outcome (decisive|draw)",
		}, []string{"outcome"}),
		PersistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Failed leaderboard store operations, by operation",
		}, []string{"op"}),
		MessageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_latency_seconds",
			Help:      "Message processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}

	reg.MustRegister(
		m.OnlinePlayers,
		m.ActiveRooms,
		m.QueueLength,
		m.MessagesReceived,
		m.RoundsResolved,
		m.PersistenceFailures,
		m.MessageLatency,
	)

	return m
}

type Monitor struct {
	metrics      *Metrics
	registry     *prometheus.Registry
	startTime    time.Time
	requestCount int64
	mutex        sync.Mutex
}

var (
	expvarOnce sync.Once
	current    atomic.Pointer[Monitor]
)

// NewMonitor builds a monitor with its own registry, so several can live in
// one process (tests).
func NewMonitor(namespace string) *Monitor {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Monitor{
		metrics:   NewMetrics(namespace, reg),
		registry:  reg,
		startTime: time.Now(),
	}
	current.Store(m)

	// 添加expvar指标 (expvar 名称全局唯一，只注册一次)
	expvarOnce.Do(func() {
		expvar.Publish("uptime", expvar.Func(func() interface{} {
			return time.Since(current.Load().startTime).Seconds()
		}))
		expvar.Publish("requests", expvar.Func(func() interface{} {
			return current.Load().RequestCount()
		}))
	})

	return m
}

// Handler serves the prometheus text format for this monitor's registry.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ExpvarHandler serves /debug/vars.
func (m *Monitor) ExpvarHandler() http.Handler {
	return expvar.Handler()
}

func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

func (m *Monitor) SetOnlinePlayers(count int) {
	m.metrics.OnlinePlayers.Set(float64(count))
}

func (m *Monitor) SetActiveRooms(count int) {
	m.metrics.ActiveRooms.Set(float64(count))
}

func (m *Monitor) SetQueueLength(count int) {
	m.metrics.QueueLength.Set(float64(count))
}

func (m *Monitor) IncMessagesReceived(event string) {
	m.metrics.MessagesReceived.WithLabelValues(event).Inc()
	m.mutex.Lock()
	m.requestCount++
	m.mutex.Unlock()
}

func (m *Monitor) RequestCount() int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.requestCount
}

func (m *Monitor) IncRoundsResolved(outcome string) {
	m.metrics.RoundsResolved.WithLabelValues(outcome).Inc()
}

func (m *Monitor) IncPersistenceFailure(op string) {
	m.metrics.PersistenceFailures.WithLabelValues(op).Inc()
}

func (m *Monitor) ObserveMessageLatency(duration time.Duration) {
	m.metrics.MessageLatency.Observe(duration.Seconds())
}
