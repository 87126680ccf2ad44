package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"github.com/skalibog/bnlive/internal/config"
	"github.com/skalibog/bnlive/internal/exchange"
	"github.com/skalibog/bnlive/pkg/logger"
	"github.com/skalibog/bnlive/pkg/models"
)

// Snapshot результат одного цикла пересчета
type Snapshot struct {
	CycleID     string               `json:"cycle_id"`
	RefreshedAt time.Time            `json:"refreshed_at"`
	Bars        []models.EnrichedBar `json:"bars"`
}

// Empty сообщает, что данных нет
func (s Snapshot) Empty() bool {
	return len(s.Bars) == 0
}

// Latest возвращает самую свежую свечу
func (s Snapshot) Latest() (models.EnrichedBar, bool) {
	if s.Empty() {
		return models.EnrichedBar{}, false
	}
	return s.Bars[0], true
}

// Sink получает каждый новый снимок
type Sink interface {
	Publish(Snapshot)
}

// Pipeline пересчитывает сырые свечи в таблицу последней сессии
type Pipeline interface {
	Run(raw []models.RawBar) []models.EnrichedBar
}

// Archive сохраняет полученные сырые свечи
type Archive interface {
	SaveBars(ctx context.Context, symbol, interval string, bars []models.RawBar) error
}

// Store хранит последний снимок для чтения из HTTP и UI
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// NewStore создает пустое хранилище снимков
func NewStore() *Store {
	return &Store{}
}

// Publish заменяет текущий снимок
func (s *Store) Publish(snap Snapshot) {
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}

// Snapshot возвращает текущий снимок
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Refresher периодически получает свечи и пересчитывает классификацию целиком
type Refresher struct {
	source   exchange.Source
	pipeline Pipeline
	archive  Archive
	sinks    []Sink
	cfg      config.RefreshConfig
	req      exchange.FetchRequest
	trigger  chan struct{}
	now      func() time.Time
}

// NewRefresher создает цикл обновления; archive может быть nil
func NewRefresher(source exchange.Source, pipeline Pipeline, archive Archive, src config.SourceConfig, cfg config.RefreshConfig, sinks ...Sink) *Refresher {
	return &Refresher{
		source:   source,
		pipeline: pipeline,
		archive:  archive,
		sinks:    sinks,
		cfg:      cfg,
		req: exchange.FetchRequest{
			Symbol:   src.Symbol,
			Interval: src.Interval,
			Lookback: src.Lookback,
			MaxAge:   cfg.Interval,
		},
		trigger: make(chan struct{}, 1),
		now:     time.Now,
	}
}

// Trigger запрашивает внеочередной пересчет; повторные запросы до его начала объединяются
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// RefreshOnce выполняет один цикл: получение, архивирование, пересчет, публикация.
// Пустой ответ источника публикуется как пустой снимок.
func (r *Refresher) RefreshOnce(ctx context.Context) (Snapshot, error) {
	cycleID := uuid.NewString()
	log := logger.GetLogger().With(zap.String("cycle_id", cycleID))

	raw, err := r.source.Fetch(ctx, r.req)
	if err != nil {
		return Snapshot{}, fmt.Errorf("ошибка получения свечей: %w", err)
	}
	log.Debug("REFRESH: получены свечи", zap.Int("raw", len(raw)))

	if r.archive != nil && len(raw) > 0 {
		if err := r.archive.SaveBars(ctx, r.req.Symbol, r.req.Interval, raw); err != nil {
			log.Warn("Ошибка сохранения свечей в архив", zap.Error(err))
		}
	}

	snap := Snapshot{
		CycleID:     cycleID,
		RefreshedAt: r.now(),
		Bars:        r.pipeline.Run(raw),
	}
	for _, sink := range r.sinks {
		sink.Publish(snap)
	}

	if latest, ok := snap.Latest(); ok {
		log.Info("Таблица обновлена",
			zap.Int("bars", len(snap.Bars)),
			zap.Time("latest", latest.Time),
			zap.Stringer("trend", latest.Trend),
			zap.Stringer("signal", latest.Signal))
	} else {
		log.Info("Нет данных")
	}
	return snap, nil
}

// Run пересчитывает таблицу каждые Interval до отмены контекста.
// Ошибки получения повторяются с экспоненциальной задержкой, не дольше одного интервала.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		r.refreshWithRetry(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-r.trigger:
			ticker.Reset(r.cfg.Interval)
		}
	}
}

func (r *Refresher) refreshWithRetry(ctx context.Context) {
	b := &backoff.Backoff{
		Min:    r.cfg.MinBackoff,
		Max:    r.cfg.MaxBackoff,
		Factor: 2,
		Jitter: true,
	}
	deadline := r.now().Add(r.cfg.Interval)

	for {
		_, err := r.RefreshOnce(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		wait := b.Duration()
		if r.now().Add(wait).After(deadline) {
			logger.Error("Не удалось обновить таблицу, ждем следующий цикл", zap.Error(err), zap.Float64("attempts", b.Attempt()))
			return
		}
		logger.Warn("Ошибка обновления, повтор", zap.Error(err), zap.Duration("wait", wait))

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
