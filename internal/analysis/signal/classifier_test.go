package signal

import (
	"strings"
	"testing"

	"github.com/skalibog/bnlive/internal/config"
	"github.com/skalibog/bnlive/pkg/models"
)

func defaultClassifier() *Classifier {
	return NewClassifier(config.SignalConfig{})
}

func TestClassifyCEBuy(t *testing.T) {
	got := defaultClassifier().Classify(Input{Trend: models.TrendUp, Close: 1000, EMA: 950, StochRSI: 0.2})
	if got.Signal != models.SignalCEBuy {
		t.Fatalf("expected CE BUY, got %s", got.Signal)
	}
	if got.Remark != "HH-HL + EMA near + StochRSI < 0.3" {
		t.Fatalf("unexpected remark %q", got.Remark)
	}
}

func TestClassifyPEBuy(t *testing.T) {
	got := defaultClassifier().Classify(Input{Trend: models.TrendDown, Close: 1000, EMA: 1100, StochRSI: 0.71})
	if got.Signal != models.SignalPEBuy {
		t.Fatalf("expected PE BUY at distance 100, got %s", got.Signal)
	}
	if got.Remark != "LH-LL + EMA near + StochRSI > 0.7" {
		t.Fatalf("unexpected remark %q", got.Remark)
	}
}

func TestClassifyFarFromEMABlocksTrade(t *testing.T) {
	got := defaultClassifier().Classify(Input{Trend: models.TrendUp, Close: 1000, EMA: 800, StochRSI: 0.1})
	if got.Signal != models.SignalNoTrade {
		t.Fatalf("expected NO TRADE, got %s", got.Signal)
	}
	if !strings.Contains(got.Remark, "Price far from EMA20") {
		t.Fatalf("expected far-from-EMA remark, got %q", got.Remark)
	}
}

func TestClassifyNoTradeRemarks(t *testing.T) {
	c := defaultClassifier()
	cases := []struct {
		name string
		in   Input
		want string
	}{
		{"sideways", Input{Trend: models.TrendSideways, Close: 100, EMA: 100, StochRSI: 0.1}, "Market sideways"},
		{"sideways far", Input{Trend: models.TrendSideways, Close: 300, EMA: 100, StochRSI: 0.9}, "Price far from EMA20; Market sideways"},
		{"up not low", Input{Trend: models.TrendUp, Close: 100, EMA: 100, StochRSI: 0.3}, "StochRSI not low for CE"},
		{"up far not low", Input{Trend: models.TrendUp, Close: 100, EMA: 250, StochRSI: 0.5}, "Price far from EMA20; StochRSI not low for CE"},
		{"down not high", Input{Trend: models.TrendDown, Close: 100, EMA: 100, StochRSI: 0.7}, "StochRSI not high for PE"},
		{"down far high", Input{Trend: models.TrendDown, Close: 100, EMA: 201, StochRSI: 0.9}, "Price far from EMA20"},
		{"first bar", Input{Trend: models.TrendNA, Close: 100, EMA: 100, StochRSI: 0.1}, ""},
	}
	for _, tc := range cases {
		got := c.Classify(tc.in)
		if got.Signal != models.SignalNoTrade {
			t.Fatalf("%s: expected NO TRADE, got %s", tc.name, got.Signal)
		}
		if got.Remark != tc.want {
			t.Fatalf("%s: expected remark %q, got %q", tc.name, tc.want, got.Remark)
		}
	}
}

func TestClassifySidewaysNeverTrades(t *testing.T) {
	c := defaultClassifier()
	for _, osc := range []float64{0, 0.1, 0.29, 0.5, 0.71, 1} {
		for _, ema := range []float64{990, 1000, 1010, 2000} {
			got := c.Classify(Input{Trend: models.TrendSideways, Close: 1000, EMA: ema, StochRSI: osc})
			if got.Signal.IsTrade() {
				t.Fatalf("sideways produced %s (osc=%v ema=%v)", got.Signal, osc, ema)
			}
		}
	}
}

func TestClassifierConfigurableDistance(t *testing.T) {
	c := NewClassifier(config.SignalConfig{MaxEMADistance: 10})
	if c.MaxDistance() != 10 {
		t.Fatalf("expected distance 10, got %v", c.MaxDistance())
	}
	got := c.Classify(Input{Trend: models.TrendUp, Close: 1000, EMA: 950, StochRSI: 0.2})
	if got.Signal != models.SignalNoTrade {
		t.Fatalf("expected NO TRADE with tighter threshold, got %s", got.Signal)
	}
	if defaultClassifier().MaxDistance() != 100 {
		t.Fatalf("expected default distance 100")
	}
}
