// Package normalize приводит сырые строки источника к упорядоченному ряду свечей торговой сессии.
package normalize

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/skalibog/bnlive/internal/config"
	"github.com/skalibog/bnlive/pkg/models"
)

// Normalizer фильтрует сырые свечи по окну сессии и заполняет пропуски
type Normalizer struct {
	loc   *time.Location
	open  int // минуты от полуночи
	close int
}

// NewNormalizer создает нормализатор для заданной сессии
func NewNormalizer(cfg config.SessionConfig) (*Normalizer, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	open, err := parseClock(cfg.Open)
	if err != nil {
		return nil, err
	}
	closeAt, err := parseClock(cfg.Close)
	if err != nil {
		return nil, err
	}
	if closeAt < open {
		return nil, fmt.Errorf("конец сессии %s раньше начала %s", cfg.Close, cfg.Open)
	}
	return &Normalizer{loc: loc, open: open, close: closeAt}, nil
}

// Location возвращает часовой пояс сессии
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// row промежуточная строка, где отсутствующее значение обозначено ok=false
type row struct {
	t      time.Time
	prices [4]value // open, high, low, close
	volume value
}

type value struct {
	v  float64
	ok bool
}

// Normalize возвращает ряд по возрастанию времени внутри окна сессии.
// Пустой результат означает отсутствие пригодных данных и не является ошибкой.
func (n *Normalizer) Normalize(raw []models.RawBar) []models.Bar {
	if len(raw) == 0 {
		return nil
	}

	rows := make([]row, 0, len(raw))
	for _, r := range raw {
		if r.Time.IsZero() {
			continue
		}
		local := r.Time.In(n.loc).Truncate(time.Minute)
		minute := local.Hour()*60 + local.Minute()
		if minute < n.open || minute > n.close {
			continue
		}
		rows = append(rows, row{
			t: local,
			prices: [4]value{
				parseValue(r.Open),
				parseValue(r.High),
				parseValue(r.Low),
				parseValue(r.Close),
			},
			volume: parseValue(r.Volume),
		})
	}
	if len(rows) == 0 {
		return nil
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].t.Before(rows[j].t) })

	// Дубликаты минуты: остается последняя пришедшая строка
	deduped := rows[:0]
	for _, r := range rows {
		if k := len(deduped); k > 0 && deduped[k-1].t.Equal(r.t) {
			deduped[k-1] = r
			continue
		}
		deduped = append(deduped, r)
	}

	var last [4]value
	bars := make([]models.Bar, 0, len(deduped))
	for _, r := range deduped {
		complete := true
		for i := range r.prices {
			if r.prices[i].ok {
				last[i] = r.prices[i]
			}
			if !last[i].ok {
				complete = false
			}
		}
		// Начальные строки без известной цены заполнить нечем
		if !complete {
			continue
		}
		bars = append(bars, models.Bar{
			Time:   r.t,
			Open:   last[0].v,
			High:   last[1].v,
			Low:    last[2].v,
			Close:  last[3].v,
			Volume: volumeOf(r.volume),
		})
	}
	if len(bars) == 0 {
		return nil
	}
	return bars
}

// parseValue приводит текст к числу; мусор и нечисловые значения считаются отсутствующими
func parseValue(s string) value {
	s = strings.TrimSpace(s)
	if s == "" {
		return value{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return value{}
	}
	f := d.InexactFloat64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return value{}
	}
	return value{v: f, ok: true}
}

func volumeOf(v value) int64 {
	if !v.ok || v.v <= 0 {
		return 0
	}
	return int64(math.Round(v.v))
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("неверное время сессии %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
