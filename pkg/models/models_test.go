package models

import (
	"encoding/json"
	"testing"
)

func TestTrendAndSignalNames(t *testing.T) {
	trends := map[Trend]string{TrendNA: "NA", TrendUp: "UP", TrendDown: "DOWN", TrendSideways: "Sideways"}
	for tr, want := range trends {
		if tr.String() != want {
			t.Fatalf("expected %s, got %s", want, tr.String())
		}
	}
	signals := map[Signal]string{SignalNoTrade: "NO TRADE", SignalCEBuy: "CE BUY", SignalPEBuy: "PE BUY"}
	for s, want := range signals {
		if s.String() != want {
			t.Fatalf("expected %s, got %s", want, s.String())
		}
	}
	if SignalNoTrade.IsTrade() || !SignalCEBuy.IsTrade() || !SignalPEBuy.IsTrade() {
		t.Fatalf("unexpected IsTrade result")
	}
}

func TestEnrichedBarJSONUsesLabels(t *testing.T) {
	bar := EnrichedBar{Bar: Bar{Close: 1}, Trend: TrendSideways, Signal: SignalPEBuy}
	data, err := json.Marshal(bar)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["trend"] != "Sideways" || decoded["signal"] != "PE BUY" {
		t.Fatalf("unexpected labels: %v / %v", decoded["trend"], decoded["signal"])
	}

	var back EnrichedBar
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal back: %v", err)
	}
	if back.Trend != TrendSideways || back.Signal != SignalPEBuy {
		t.Fatalf("labels did not decode: %v %v", back.Trend, back.Signal)
	}
}

func TestUnknownLabelRejected(t *testing.T) {
	var tr Trend
	if err := tr.UnmarshalText([]byte("FLAT")); err == nil {
		t.Fatalf("expected error for unknown trend")
	}
	var s Signal
	if err := s.UnmarshalText([]byte("SELL")); err == nil {
		t.Fatalf("expected error for unknown signal")
	}
}
