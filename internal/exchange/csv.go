package exchange

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/skalibog/bnlive/pkg/models"
)

// CSVSource воспроизводит свечи из файла с колонками time,open,high,low,close,volume
type CSVSource struct {
	path string
}

// NewCSVSource создает источник из CSV-файла
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Fetch читает весь файл; строки с нечитаемым временем пропускаются
func (s *CSVSource) Fetch(ctx context.Context, _ FetchRequest) ([]models.RawBar, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия CSV: %w", err)
	}
	defer f.Close()
	return ReadCSV(ctx, f)
}

// ReadCSV разбирает CSV со строкой заголовка
func ReadCSV(ctx context.Context, r io.Reader) ([]models.RawBar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения заголовка CSV: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	timeCol, ok := firstColumn(cols, "time", "datetime", "date", "t")
	if !ok {
		return nil, errors.New("в CSV нет колонки времени")
	}

	var bars []models.RawBar
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения CSV: %w", err)
		}
		ts, ok := parseTime(field(record, timeCol))
		if !ok {
			continue
		}
		bars = append(bars, models.RawBar{
			Time:   ts,
			Open:   named(record, cols, "open", "o"),
			High:   named(record, cols, "high", "h"),
			Low:    named(record, cols, "low", "l"),
			Close:  named(record, cols, "close", "c"),
			Volume: named(record, cols, "volume", "v"),
		})
	}
	return bars, nil
}

func firstColumn(cols map[string]int, names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := cols[n]; ok {
			return i, true
		}
	}
	return 0, false
}

func named(record []string, cols map[string]int, names ...string) string {
	i, ok := firstColumn(cols, names...)
	if !ok {
		return ""
	}
	return field(record, i)
}

func field(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}
	return ""
}

// parseTime понимает RFC3339, "2006-01-02 15:04:05-07:00" и unix-время в секундах или миллисекундах
func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05-07:00", "2006-01-02 15:04:05Z07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
