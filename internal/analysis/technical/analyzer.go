package technical

import (
	"math"

	"github.com/markcheno/go-talib"
	"github.com/skalibog/bnlive/pkg/models"
)

// Фиксированные периоды индикаторов
const (
	EMAPeriod    = 20
	RSIPeriod    = 14
	StochPeriod  = 14
	StochKSmooth = 3
	StochDSmooth = 3
)

// Indicators значения индикаторов для одной свечи
type Indicators struct {
	EMA      float64
	RSI      float64
	StochK   float64
	StochRSI float64 // сглаженная линия D, всегда в [0,1]
}

// Analyzer реализует расчет технических индикаторов по ряду свечей
type Analyzer struct{}

// NewAnalyzer создает новый анализатор технических индикаторов
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Compute рассчитывает EMA20 и StochRSI для каждой свечи ряда по возрастанию времени
func (a *Analyzer) Compute(bars []models.Bar) []Indicators {
	if len(bars) == 0 {
		return nil
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	ema := EMA(closes, EMAPeriod)
	rsi := RSI(closes, RSIPeriod)
	k, d := StochRSI(rsi, StochPeriod, StochKSmooth, StochDSmooth)

	out := make([]Indicators, len(bars))
	for i := range bars {
		out[i] = Indicators{EMA: ema[i], RSI: rsi[i], StochK: k[i], StochRSI: d[i]}
	}
	return out
}

// EMA рассчитывает экспоненциальную среднюю с коэффициентом 2/(N+1).
// Первое значение равно первой цене закрытия, поэтому значение есть у каждой свечи.
func EMA(in []float64, period int) []float64 {
	out := make([]float64, len(in))
	if len(in) == 0 {
		return out
	}
	alpha := 2.0 / float64(period+1)
	out[0] = in[0]
	for i := 1; i < len(in); i++ {
		out[i] = alpha*in[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI рассчитывает индекс относительной силы со сглаживанием Уайлдера (1/N),
// начиная с первой свечи: первое изменение считается нулевым.
func RSI(in []float64, period int) []float64 {
	out := make([]float64, len(in))
	if len(in) == 0 {
		return out
	}
	alpha := 1.0 / float64(period)
	var avgGain, avgLoss float64
	for i := range in {
		var gain, loss float64
		if i > 0 {
			change := in[i] - in[i-1]
			if change > 0 {
				gain = change
			} else {
				loss = -change
			}
		}
		if i == 0 {
			avgGain, avgLoss = gain, loss
		} else {
			avgGain = alpha*gain + (1-alpha)*avgGain
			avgLoss = alpha*loss + (1-alpha)*avgLoss
		}

		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		out[i] = 100 - 100/(1+avgGain/avgLoss)
	}
	return out
}

// StochRSI нормирует RSI по его собственному диапазону за period свечей
// и дважды сглаживает простыми средними. Возвращает линии K и D.
func StochRSI(rsi []float64, period, smoothK, smoothD int) ([]float64, []float64) {
	n := len(rsi)
	raw := make([]float64, n)
	if n == 0 {
		return raw, make([]float64, 0)
	}

	highest := rolling(talib.Max, rsi, period)
	lowest := rolling(talib.Min, rsi, period)

	// Прогрев и нулевой диапазон: протягиваем предыдущее значение, иначе 0
	prev := 0.0
	for i := range rsi {
		if i >= period-1 {
			if span := highest[i] - lowest[i]; span > 0 {
				prev = (rsi[i] - lowest[i]) / span
			}
		}
		raw[i] = prev
	}

	k := rolling(talib.Sma, raw, smoothK)
	d := rolling(talib.Sma, k, smoothD)
	for i := range d {
		k[i] = clamp01(k[i])
		d[i] = clamp01(d[i])
	}
	return k, d
}

// rolling вызывает оконную функцию talib; при нехватке данных возвращает нули,
// так как talib требует хотя бы period значений.
func rolling(fn func([]float64, int) []float64, in []float64, period int) []float64 {
	if len(in) < period {
		return make([]float64, len(in))
	}
	return fn(in, period)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
