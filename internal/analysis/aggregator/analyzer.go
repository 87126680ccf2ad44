package aggregator

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/skalibog/bnlive/internal/analysis/normalize"
	"github.com/skalibog/bnlive/internal/analysis/session"
	"github.com/skalibog/bnlive/internal/analysis/signal"
	"github.com/skalibog/bnlive/internal/analysis/technical"
	"github.com/skalibog/bnlive/internal/analysis/trend"
	"github.com/skalibog/bnlive/internal/config"
	"github.com/skalibog/bnlive/pkg/logger"
	"github.com/skalibog/bnlive/pkg/models"
)

// Знаков после запятой при выводе цен
const displayPlaces = 2

// Pipeline объединяет все этапы классификации:
// нормализация, индикаторы, тренд, сигнал, выбор последней сессии.
type Pipeline struct {
	normalizer *normalize.Normalizer
	technical  *technical.Analyzer
	classifier *signal.Classifier
}

// NewPipeline создает конвейер классификации
func NewPipeline(sess config.SessionConfig, analysis config.AnalysisConfig) (*Pipeline, error) {
	normalizer, err := normalize.NewNormalizer(sess)
	if err != nil {
		return nil, fmt.Errorf("ошибка настройки сессии: %w", err)
	}
	return &Pipeline{
		normalizer: normalizer,
		technical:  technical.NewAnalyzer(),
		classifier: signal.NewClassifier(analysis.Signal),
	}, nil
}

// Run пересчитывает весь ряд с нуля и возвращает последнюю сессию от новых свечей к старым.
// Пустой результат означает "нет данных" и не является ошибкой.
func (p *Pipeline) Run(raw []models.RawBar) []models.EnrichedBar {
	enriched := p.Classify(p.normalizer.Normalize(raw))
	if len(enriched) == 0 {
		logger.Debug("PIPELINE: нет пригодных свечей", zap.Int("raw", len(raw)))
		return nil
	}

	out := session.Latest(enriched)
	for i := range out {
		out[i] = roundForDisplay(out[i])
	}

	logger.Debug("PIPELINE: ряд классифицирован",
		zap.Int("raw", len(raw)),
		zap.Int("series", len(enriched)),
		zap.Int("session", len(out)),
		zap.Stringer("signal", out[0].Signal))
	return out
}

// Classify обогащает нормализованный ряд по возрастанию времени без округления
func (p *Pipeline) Classify(bars []models.Bar) []models.EnrichedBar {
	if len(bars) == 0 {
		return nil
	}

	indicators := p.technical.Compute(bars)
	trends := trend.Label(bars)

	out := make([]models.EnrichedBar, len(bars))
	for i, b := range bars {
		decision := p.classifier.Classify(signal.Input{
			Trend:    trends[i],
			Close:    b.Close,
			EMA:      indicators[i].EMA,
			StochRSI: indicators[i].StochRSI,
		})
		out[i] = models.EnrichedBar{
			Bar:      b,
			EMA20:    indicators[i].EMA,
			StochRSI: indicators[i].StochRSI,
			Trend:    trends[i],
			Signal:   decision.Signal,
			Remark:   decision.Remark,
		}
	}
	return out
}

// Latest возвращает самую свежую свечу результата Run
func Latest(bars []models.EnrichedBar) (models.EnrichedBar, bool) {
	if len(bars) == 0 {
		return models.EnrichedBar{}, false
	}
	return bars[0], true
}

// roundForDisplay округляет цены и EMA20 до двух знаков только на выходе
func roundForDisplay(b models.EnrichedBar) models.EnrichedBar {
	b.Open = round(b.Open)
	b.High = round(b.High)
	b.Low = round(b.Low)
	b.Close = round(b.Close)
	b.EMA20 = round(b.EMA20)
	return b
}

func round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(displayPlaces).InexactFloat64()
}
