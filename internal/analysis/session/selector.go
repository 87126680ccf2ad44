// Package session оставляет только последнюю торговую сессию ряда.
package session

import (
	"sort"
	"time"

	"github.com/skalibog/bnlive/pkg/models"
)

// Latest возвращает свечи последней календарной даты ряда, от новых к старым.
// Входной срез не изменяется.
func Latest(bars []models.EnrichedBar) []models.EnrichedBar {
	if len(bars) == 0 {
		return nil
	}

	latest := bars[0].Time
	for _, b := range bars[1:] {
		if dateOf(b.Time).After(dateOf(latest)) {
			latest = b.Time
		}
	}
	day := dateOf(latest)

	out := make([]models.EnrichedBar, 0, len(bars))
	for _, b := range bars {
		if dateOf(b.Time).Equal(day) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	return out
}

// dateOf полночь календарной даты в часовом поясе самой свечи
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
