package models

import (
	"fmt"
	"time"
)

// RawBar представляет строку от источника данных до нормализации.
// Значения хранятся как текст: пустая строка или мусор означают отсутствие значения.
type RawBar struct {
	Time   time.Time `json:"time"`
	Open   string    `json:"open"`
	High   string    `json:"high"`
	Low    string    `json:"low"`
	Close  string    `json:"close"`
	Volume string    `json:"volume"`
}

// Bar представляет нормализованную свечу в торговом часовом поясе
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Trend направление движения относительно предыдущей свечи
type Trend uint8

const (
	TrendNA Trend = iota
	TrendUp
	TrendDown
	TrendSideways
)

var trendNames = [...]string{
	TrendNA:       "NA",
	TrendUp:       "UP",
	TrendDown:     "DOWN",
	TrendSideways: "Sideways",
}

func (t Trend) String() string {
	if int(t) < len(trendNames) {
		return trendNames[t]
	}
	return fmt.Sprintf("Trend(%d)", uint8(t))
}

// MarshalText реализует encoding.TextMarshaler
func (t Trend) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler
func (t *Trend) UnmarshalText(b []byte) error {
	for i, name := range trendNames {
		if name == string(b) {
			*t = Trend(i)
			return nil
		}
	}
	return fmt.Errorf("неизвестный тренд %q", string(b))
}

// Signal торговый сигнал по свече
type Signal uint8

const (
	SignalNoTrade Signal = iota
	SignalCEBuy
	SignalPEBuy
)

var signalNames = [...]string{
	SignalNoTrade: "NO TRADE",
	SignalCEBuy:   "CE BUY",
	SignalPEBuy:   "PE BUY",
}

func (s Signal) String() string {
	if int(s) < len(signalNames) {
		return signalNames[s]
	}
	return fmt.Sprintf("Signal(%d)", uint8(s))
}

// IsTrade сообщает, требует ли сигнал входа в сделку
func (s Signal) IsTrade() bool {
	return s == SignalCEBuy || s == SignalPEBuy
}

// MarshalText реализует encoding.TextMarshaler
func (s Signal) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler
func (s *Signal) UnmarshalText(b []byte) error {
	for i, name := range signalNames {
		if name == string(b) {
			*s = Signal(i)
			return nil
		}
	}
	return fmt.Errorf("неизвестный сигнал %q", string(b))
}

// EnrichedBar представляет свечу с индикаторами, трендом и сигналом
type EnrichedBar struct {
	Bar
	EMA20    float64 `json:"ema20"`
	StochRSI float64 `json:"stoch_rsi"`
	Trend    Trend   `json:"trend"`
	Signal   Signal  `json:"signal"`
	Remark   string  `json:"remark"`
}
