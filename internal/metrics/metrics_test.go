package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/skalibog/bnlive/internal/exchange"
	"github.com/skalibog/bnlive/internal/refresh"
	"github.com/skalibog/bnlive/pkg/models"
)

func TestServeRegistersMetrics(t *testing.T) {
	srv := Serve(":0")
	defer srv.Close()

	FetchTotal.WithLabelValues("ok").Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "bnlive_fetch_total" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("bnlive_fetch_total metric not found")
	}
}

func TestSinkPublish(t *testing.T) {
	before := testutil.ToFloat64(SignalsTotal.WithLabelValues("PE BUY"))
	Sink{}.Publish(refresh.Snapshot{Bars: []models.EnrichedBar{{
		Bar:      models.Bar{Close: 48000.5},
		EMA20:    48010,
		StochRSI: 0.8,
		Signal:   models.SignalPEBuy,
	}}})

	if got := testutil.ToFloat64(SignalsTotal.WithLabelValues("PE BUY")); got != before+1 {
		t.Fatalf("signals_total not incremented: %v", got)
	}
	if testutil.ToFloat64(LatestClose) != 48000.5 || testutil.ToFloat64(LatestStochRSI) != 0.8 {
		t.Fatalf("latest gauges not set")
	}

	Sink{}.Publish(refresh.Snapshot{})
	if testutil.ToFloat64(SessionBars) != 0 {
		t.Fatalf("session bars must reset on empty snapshot")
	}
}

type stubSource struct {
	bars []models.RawBar
	err  error
}

func (s stubSource) Fetch(context.Context, exchange.FetchRequest) ([]models.RawBar, error) {
	return s.bars, s.err
}

func TestInstrumentedSource(t *testing.T) {
	errBefore := testutil.ToFloat64(FetchTotal.WithLabelValues("error"))
	emptyBefore := testutil.ToFloat64(FetchTotal.WithLabelValues("empty"))

	if _, err := Instrument(stubSource{err: errors.New("down")}).Fetch(context.Background(), exchange.FetchRequest{}); err == nil {
		t.Fatalf("error must pass through")
	}
	if _, err := Instrument(stubSource{}).Fetch(context.Background(), exchange.FetchRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if testutil.ToFloat64(FetchTotal.WithLabelValues("error")) != errBefore+1 {
		t.Fatalf("error fetch not counted")
	}
	if testutil.ToFloat64(FetchTotal.WithLabelValues("empty")) != emptyBefore+1 {
		t.Fatalf("empty fetch not counted")
	}
}
