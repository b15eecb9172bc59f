package metrics

import (
	"context"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ark-network/lottery/internal/core/domain"
	"github.com/ark-network/lottery/internal/core/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const namespace = "lottery"

// Metrics keeps its own registry so that more than one instance can live
// in the same process.
type Metrics struct {
	registry *prometheus.Registry

	eventsTotal     *prometheus.CounterVec
	players         prometheus.Gauge
	pot             prometheus.Gauge
	state           prometheus.Gauge
	drawsTotal      prometheus.Counter
	prizesTotal     prometheus.Counter
	drawLatency     prometheus.Histogram
	httpReqTotal    *prometheus.CounterVec
	httpReqDuration *prometheus.HistogramVec

	requestedAt int64
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		eventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Total lottery events committed by type",
			},
			[]string{"type"},
		),
		players: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "players",
			Help:      "Number of entries in the current round",
		}),
		pot: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pot_wei",
			Help:      "Value held by the lottery for the current round",
		}),
		state: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "Lottery state, 0 open and 1 calculating",
		}),
		drawsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draws_total",
			Help:      "Total completed draws",
		}),
		prizesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prizes_paid_wei_total",
			Help:      "Total value paid out to winners",
		}),
		drawLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "draw_latency_seconds",
			Help:      "Time between a draw request and its fulfillment",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		httpReqTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		httpReqDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_ms",
				Help:    "HTTP request duration in ms",
				Buckets: prometheus.ExponentialBuckets(5, 2, 10),
			},
			[]string{"path", "method"},
		),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Listen feeds every event published by notifier into the collectors
// until ctx is done.
func (m *Metrics) Listen(ctx context.Context, notifier ports.EventNotifier) error {
	events, err := notifier.Subscribe(ctx)
	if err != nil {
		return err
	}

	go func() {
		for event := range events {
			m.Observe(event)
		}
		log.Debug("metrics: stopped listening for lottery events")
	}()
	return nil
}

// Seed sets the round gauges to the state of a lottery restored from its
// stored events, which are never published again.
func (m *Metrics) Seed(players int, pot *big.Int, state domain.LotteryState) {
	m.players.Set(float64(players))
	m.pot.Set(toFloat(pot))
	m.state.Set(float64(state))
}

func (m *Metrics) Observe(event domain.Event) {
	m.eventsTotal.WithLabelValues(event.GetType().String()).Inc()

	switch e := event.(type) {
	case domain.LotteryStarted:
		m.players.Set(0)
		m.pot.Set(0)
		m.state.Set(float64(domain.OpenState))
	case domain.PlayerJoined:
		m.players.Inc()
		m.pot.Add(toFloat(e.Amount))
	case domain.DrawRequested:
		m.requestedAt = e.Timestamp
		m.players.Set(float64(len(e.Players)))
		m.pot.Set(toFloat(e.Pot))
		m.state.Set(float64(domain.CalculatingState))
	case domain.WinnerPicked:
		if m.requestedAt > 0 && e.Timestamp >= m.requestedAt {
			m.drawLatency.Observe(float64(e.Timestamp - m.requestedAt))
		}
		m.requestedAt = 0
		m.drawsTotal.Inc()
		m.prizesTotal.Add(toFloat(e.Prize))
		m.players.Set(0)
		m.pot.Set(0)
		m.state.Set(float64(domain.OpenState))
	}
}

func (m *Metrics) RecordHTTP(path, method string, status int, started time.Time) {
	if path == "" {
		path = "unknown"
	}
	dur := time.Since(started).Milliseconds()
	m.httpReqDuration.WithLabelValues(path, method).Observe(float64(dur))
	m.httpReqTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
}

func toFloat(amount *big.Int) float64 {
	if amount == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(amount).Float64()
	return f
}
