package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skalibog/bnlive/internal/exchange"
	"github.com/skalibog/bnlive/internal/refresh"
	"github.com/skalibog/bnlive/pkg/models"
)

var (
	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bnlive_fetch_total", Help: "Source fetches by outcome"},
		[]string{"status"},
	)
	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "bnlive_fetch_duration_seconds", Help: "Source fetch latency", Buckets: prometheus.DefBuckets},
	)
	RefreshTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bnlive_refresh_total", Help: "Published snapshots"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bnlive_signals_total", Help: "Signal of the latest bar per snapshot"},
		[]string{"signal"},
	)
	SessionBars = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "bnlive_session_bars", Help: "Bars in the latest session table"},
	)
	LatestClose = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "bnlive_latest_close", Help: "Close of the latest bar"},
	)
	LatestEMA = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "bnlive_latest_ema20", Help: "EMA20 of the latest bar"},
	)
	LatestStochRSI = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "bnlive_latest_stoch_rsi", Help: "StochRSI of the latest bar"},
	)
)

func init() {
	prometheus.MustRegister(FetchTotal, FetchDuration, RefreshTotal, SignalsTotal, SessionBars, LatestClose, LatestEMA, LatestStochRSI)
}

// Serve поднимает /metrics в отдельной горутине
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

// Sink обновляет метрики по каждому снимку
type Sink struct{}

func (Sink) Publish(snap refresh.Snapshot) {
	RefreshTotal.Inc()
	SessionBars.Set(float64(len(snap.Bars)))
	latest, ok := snap.Latest()
	if !ok {
		return
	}
	SignalsTotal.WithLabelValues(latest.Signal.String()).Inc()
	LatestClose.Set(latest.Close)
	LatestEMA.Set(latest.EMA20)
	LatestStochRSI.Set(latest.StochRSI)
}

// InstrumentedSource считает обращения к источнику и их длительность
type InstrumentedSource struct {
	next exchange.Source
}

// Instrument оборачивает источник метриками
func Instrument(next exchange.Source) *InstrumentedSource {
	return &InstrumentedSource{next: next}
}

func (s *InstrumentedSource) Fetch(ctx context.Context, req exchange.FetchRequest) ([]models.RawBar, error) {
	timer := prometheus.NewTimer(FetchDuration)
	defer timer.ObserveDuration()

	bars, err := s.next.Fetch(ctx, req)
	switch {
	case err != nil:
		FetchTotal.WithLabelValues("error").Inc()
	case len(bars) == 0:
		FetchTotal.WithLabelValues("empty").Inc()
	default:
		FetchTotal.WithLabelValues("ok").Inc()
	}
	return bars, err
}
