package exchange

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/skalibog/bnlive/internal/config"
	"github.com/skalibog/bnlive/pkg/models"
)

// Поддерживаемые источники данных
const (
	ProviderYahoo   = "yahoo"
	ProviderBinance = "binance"
	ProviderCSV     = "csv"
	ProviderInflux  = "influx"
)

// ErrUnknownProvider возвращается фабрикой для неизвестного источника
var ErrUnknownProvider = errors.New("неизвестный источник данных")

// FetchRequest описывает окно истории, которое нужно получить
type FetchRequest struct {
	Symbol   string
	Interval string
	Lookback string
	// MaxAge допустимый возраст закэшированного ответа; 0 - значение по умолчанию кэша
	MaxAge time.Duration
}

// Key возвращает ключ запроса для кэша
func (r FetchRequest) Key() string {
	return strings.Join([]string{r.Symbol, r.Interval, r.Lookback}, "|")
}

// Source источник сырых свечей.
// Пустой срез без ошибки означает, что источник ничего не вернул.
type Source interface {
	Fetch(ctx context.Context, req FetchRequest) ([]models.RawBar, error)
}

// BarReader читает сохраненные свечи (архив InfluxDB)
type BarReader interface {
	GetBars(ctx context.Context, symbol, interval string, since time.Time) ([]models.RawBar, error)
}

// NewSource создает источник по имени провайдера
func NewSource(cfg config.SourceConfig, archive BarReader) (Source, error) {
	switch cfg.Provider {
	case ProviderYahoo, "":
		return NewYahooSource(cfg.Yahoo, cfg.Timeout), nil
	case ProviderBinance:
		return NewBinanceClient(cfg.Binance)
	case ProviderCSV:
		return NewCSVSource(cfg.CSV.Path), nil
	case ProviderInflux:
		if archive == nil {
			return nil, errors.New("источник influx требует включенного storage")
		}
		return &ArchiveSource{reader: archive, now: time.Now}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// ArchiveSource воспроизводит свечи из архива
type ArchiveSource struct {
	reader BarReader
	now    func() time.Time
}

// Fetch читает из архива свечи за окно Lookback
func (s *ArchiveSource) Fetch(ctx context.Context, req FetchRequest) ([]models.RawBar, error) {
	lookback, err := ParseLookback(req.Lookback)
	if err != nil {
		return nil, err
	}
	bars, err := s.reader.GetBars(ctx, req.Symbol, req.Interval, s.now().Add(-lookback))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения архива: %w", err)
	}
	return bars, nil
}

// ParseLookback разбирает окно истории вида "5d", "12h" или "90m"
func ParseLookback(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, errors.New("пустое окно истории")
	}
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("неверное окно истории %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("неверное окно истории %q", s)
	}
	return d, nil
}

// IntervalDuration конвертирует строковый интервал в duration
func IntervalDuration(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "2m":
		return 2 * time.Minute
	case "3m":
		return 3 * time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h", "60m":
		return time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return 5 * time.Minute
	}
}
