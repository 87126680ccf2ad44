// Package trend размечает свечи по геометрии двух соседних баров.
package trend

import "github.com/skalibog/bnlive/pkg/models"

// Classify сравнивает свечу с предыдущей:
// выше максимум и выше минимум - UP, ниже оба - DOWN, иначе Sideways.
func Classify(prev, cur models.Bar) models.Trend {
	switch {
	case cur.High > prev.High && cur.Low > prev.Low:
		return models.TrendUp
	case cur.High < prev.High && cur.Low < prev.Low:
		return models.TrendDown
	default:
		return models.TrendSideways
	}
}

// Label возвращает тренд для каждой свечи ряда; у первой свечи тренд всегда NA
func Label(bars []models.Bar) []models.Trend {
	if len(bars) == 0 {
		return nil
	}
	out := make([]models.Trend, len(bars))
	out[0] = models.TrendNA
	for i := 1; i < len(bars); i++ {
		out[i] = Classify(bars[i-1], bars[i])
	}
	return out
}
