// Package signal выводит торговый сигнал из тренда, расстояния до EMA20 и StochRSI.
package signal

import (
	"math"
	"strings"

	"github.com/skalibog/bnlive/internal/config"
	"github.com/skalibog/bnlive/pkg/models"
)

// Пороговые значения осциллятора
const (
	Oversold   = 0.3
	Overbought = 0.7

	DefaultMaxEMADistance = 100.0
)

// Тексты пояснений
const (
	RemarkCEBuy        = "HH-HL + EMA near + StochRSI < 0.3"
	RemarkPEBuy        = "LH-LL + EMA near + StochRSI > 0.7"
	RemarkFarFromEMA   = "Price far from EMA20"
	RemarkSideways     = "Market sideways"
	RemarkNotLowForCE  = "StochRSI not low for CE"
	RemarkNotHighForPE = "StochRSI not high for PE"

	remarkSeparator = "; "
)

// Input данные одной свечи для классификации
type Input struct {
	Trend    models.Trend
	Close    float64
	EMA      float64
	StochRSI float64
}

// Decision результат классификации свечи
type Decision struct {
	Signal models.Signal
	Remark string
}

// Classifier классифицирует свечи без состояния между ними
type Classifier struct {
	maxDistance float64
}

// NewClassifier создает классификатор; нулевой порог заменяется на 100 пунктов
func NewClassifier(cfg config.SignalConfig) *Classifier {
	maxDistance := cfg.MaxEMADistance
	if maxDistance <= 0 {
		maxDistance = DefaultMaxEMADistance
	}
	return &Classifier{maxDistance: maxDistance}
}

// MaxDistance возвращает порог расстояния до EMA20
func (c *Classifier) MaxDistance() float64 {
	return c.maxDistance
}

// Classify возвращает ровно один из сигналов CE BUY, PE BUY или NO TRADE
func (c *Classifier) Classify(in Input) Decision {
	distance := math.Abs(in.Close - in.EMA)
	near := distance <= c.maxDistance

	switch {
	case in.Trend == models.TrendUp && near && in.StochRSI < Oversold:
		return Decision{Signal: models.SignalCEBuy, Remark: RemarkCEBuy}
	case in.Trend == models.TrendDown && near && in.StochRSI > Overbought:
		return Decision{Signal: models.SignalPEBuy, Remark: RemarkPEBuy}
	}

	var remarks []string
	if !near {
		remarks = append(remarks, RemarkFarFromEMA)
	}
	switch in.Trend {
	case models.TrendSideways:
		remarks = append(remarks, RemarkSideways)
	case models.TrendUp:
		if in.StochRSI >= Oversold {
			remarks = append(remarks, RemarkNotLowForCE)
		}
	case models.TrendDown:
		if in.StochRSI <= Overbought {
			remarks = append(remarks, RemarkNotHighForPE)
		}
	}
	return Decision{Signal: models.SignalNoTrade, Remark: strings.Join(remarks, remarkSeparator)}
}
