package aggregator

import (
	"math"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/skalibog/bnlive/internal/config"
	"github.com/skalibog/bnlive/pkg/models"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	cfg := config.Default()
	p, err := NewPipeline(cfg.Session, cfg.Analysis)
	if err != nil {
		t.Fatalf("NewPipeline returned error: %v", err)
	}
	return p
}

func fmtPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// syntheticHistory строит пятиминутные свечи за несколько сессий в UTC, как их отдает Yahoo
func syntheticHistory(days int) []models.RawBar {
	var out []models.RawBar
	price := 48123.4567
	step := 0
	for d := 0; d < days; d++ {
		// 03:45 UTC = 09:15 IST; 76 свечей до 15:30 IST
		start := time.Date(2024, 3, 4+d, 3, 45, 0, 0, time.UTC)
		for i := 0; i < 76; i++ {
			step++
			switch {
			case step%9 < 4:
				price += 17.333
			case step%9 < 7:
				price -= 23.111
			default:
				price += 3.5
			}
			out = append(out, models.RawBar{
				Time:   start.Add(time.Duration(i) * 5 * time.Minute),
				Open:   fmtPrice(price - 2),
				High:   fmtPrice(price + 10.005),
				Low:    fmtPrice(price - 10.004),
				Close:  fmtPrice(price),
				Volume: strconv.Itoa(1000 + step),
			})
		}
		// свеча вне сессии
		out = append(out, models.RawBar{Time: start.Add(8 * time.Hour), Open: "1", High: "1", Low: "1", Close: "1"})
	}
	return out
}

func TestRunEmptyInput(t *testing.T) {
	p := newTestPipeline(t)
	if out := p.Run(nil); len(out) != 0 {
		t.Fatalf("expected empty result, got %d bars", len(out))
	}
	if _, ok := Latest(nil); ok {
		t.Fatalf("expected no latest bar on empty result")
	}
}

func TestRunSelectsLatestSessionDescending(t *testing.T) {
	p := newTestPipeline(t)
	out := p.Run(syntheticHistory(3))
	if len(out) != 76 {
		t.Fatalf("expected one session of 76 bars, got %d", len(out))
	}
	day := out[0].Time.Day()
	if day != 6 {
		t.Fatalf("expected last session day 6, got %d", day)
	}
	for i, b := range out {
		if b.Time.Day() != day {
			t.Fatalf("bar %d belongs to another day", i)
		}
		if i > 0 && !b.Time.Before(out[i-1].Time) {
			t.Fatalf("bars not strictly descending at %d", i)
		}
	}
	if got := out[0].Time.Format("15:04"); got != "15:30" {
		t.Fatalf("expected latest bar at 15:30 IST, got %s", got)
	}
	latest, ok := Latest(out)
	if !ok || !latest.Time.Equal(out[0].Time) {
		t.Fatalf("Latest must return the first bar")
	}
}

func TestRunInvariants(t *testing.T) {
	p := newTestPipeline(t)
	out := p.Run(syntheticHistory(4))
	for i, b := range out {
		if b.StochRSI < 0 || b.StochRSI > 1 {
			t.Fatalf("stochrsi out of range at %d: %v", i, b.StochRSI)
		}
		switch b.Signal {
		case models.SignalCEBuy:
			if b.Trend != models.TrendUp {
				t.Fatalf("CE BUY with trend %s", b.Trend)
			}
		case models.SignalPEBuy:
			if b.Trend != models.TrendDown {
				t.Fatalf("PE BUY with trend %s", b.Trend)
			}
		case models.SignalNoTrade:
		default:
			t.Fatalf("unexpected signal %v", b.Signal)
		}
		for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.EMA20} {
			if math.Abs(v*100-math.Round(v*100)) > 1e-6 {
				t.Fatalf("value %v not rounded to 2 places at %d", v, i)
			}
		}
	}
}

func TestRunIdempotent(t *testing.T) {
	p := newTestPipeline(t)
	raw := syntheticHistory(3)
	first := p.Run(raw)
	second := p.Run(raw)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("pipeline output differs between runs")
	}
}

func TestClassifyTrendAndFirstBar(t *testing.T) {
	p := newTestPipeline(t)
	start := time.Date(2024, 3, 4, 9, 15, 0, 0, time.UTC)
	bars := []models.Bar{
		{Time: start, High: 100, Low: 90, Close: 95},
		{Time: start.Add(5 * time.Minute), High: 105, Low: 95, Close: 100},
		{Time: start.Add(10 * time.Minute), High: 103, Low: 97, Close: 99},
	}
	out := p.Classify(bars)
	want := []models.Trend{models.TrendNA, models.TrendUp, models.TrendSideways}
	for i := range want {
		if out[i].Trend != want[i] {
			t.Fatalf("bar %d: expected %s, got %s", i, want[i], out[i].Trend)
		}
	}
	if out[0].Signal != models.SignalNoTrade || out[0].Remark != "" {
		t.Fatalf("first bar must be NO TRADE without remark, got %s %q", out[0].Signal, out[0].Remark)
	}
	if out[2].Remark != "Market sideways" {
		t.Fatalf("unexpected remark %q", out[2].Remark)
	}
	if out[0].EMA20 != 95 {
		t.Fatalf("expected ema seeded with first close, got %v", out[0].EMA20)
	}
}

func TestRoundForDisplay(t *testing.T) {
	b := roundForDisplay(models.EnrichedBar{
		Bar:      models.Bar{Open: 1.005, High: 2.499, Low: -1.005, Close: 48123.4567},
		EMA20:    48000.125,
		StochRSI: 0.123456,
	})
	if b.Open != 1.01 || b.High != 2.5 || b.Low != -1.01 || b.Close != 48123.46 || b.EMA20 != 48000.13 {
		t.Fatalf("unexpected rounding: %+v", b)
	}
	if b.StochRSI != 0.123456 {
		t.Fatalf("oscillator must keep full precision, got %v", b.StochRSI)
	}
}
