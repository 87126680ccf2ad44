package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/skalibog/bnlive/pkg/models"
)

// DefaultFilename имя файла выгрузки таблицы
const DefaultFilename = "BankNifty_Live.csv"

// Формат времени в выгрузке, как в pandas
const timeLayout = "2006-01-02 15:04:05-07:00"

// ErrUnknownFormat формат выгрузки не поддерживается
var ErrUnknownFormat = errors.New("формат выгрузки не поддерживается")

// Header колонки CSV-выгрузки
var Header = []string{"Datetime", "Close", "High", "Low", "Open", "Volume", "EMA20", "StochRSI", "Trend", "Signal", "Remark"}

// Exporter сериализует таблицу в выбранный формат
type Exporter interface {
	Export(w io.Writer, bars []models.EnrichedBar) error
	Extension() string
}

// NewExporter создает реализацию по формату (csv, json, parquet)
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv", "":
		return CSVExporter{}, nil
	case "json":
		return JSONExporter{}, nil
	case "parquet":
		return ParquetExporter{}, nil
	default:
		return nil, fmt.Errorf("%w: %q (доступны csv, json, parquet)", ErrUnknownFormat, format)
	}
}

// WriteFile сохраняет таблицу в dir/prefix.<ext> и возвращает путь
func WriteFile(dir, prefix string, exporter Exporter, bars []models.EnrichedBar) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ошибка создания каталога выгрузки: %w", err)
	}
	path := filepath.Join(dir, prefix+"."+exporter.Extension())
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("ошибка создания файла выгрузки: %w", err)
	}
	if err := exporter.Export(f, bars); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("ошибка записи файла выгрузки: %w", err)
	}
	return path, nil
}

// CSVExporter выгрузка в CSV
type CSVExporter struct{}

func (CSVExporter) Extension() string { return "csv" }

func (CSVExporter) Export(w io.Writer, bars []models.EnrichedBar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("ошибка записи CSV: %w", err)
	}
	for _, b := range bars {
		if err := cw.Write(Record(b)); err != nil {
			return fmt.Errorf("ошибка записи CSV: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Record строка CSV в порядке колонок Header
func Record(b models.EnrichedBar) []string {
	return []string{
		b.Time.Format(timeLayout),
		formatFloat(b.Close),
		formatFloat(b.High),
		formatFloat(b.Low),
		formatFloat(b.Open),
		strconv.FormatInt(b.Volume, 10),
		formatFloat(b.EMA20),
		formatFloat(b.StochRSI),
		b.Trend.String(),
		b.Signal.String(),
		b.Remark,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// JSONExporter выгрузка массивом JSON
type JSONExporter struct{}

func (JSONExporter) Extension() string { return "json" }

func (JSONExporter) Export(w io.Writer, bars []models.EnrichedBar) error {
	if bars == nil {
		bars = []models.EnrichedBar{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(bars)
}

// Row плоская строка Parquet
type Row struct {
	Timestamp int64   `parquet:"t"`
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
	EMA20     float64 `parquet:"ema20"`
	StochRSI  float64 `parquet:"stoch_rsi"`
	Trend     string  `parquet:"trend"`
	Signal    string  `parquet:"signal"`
	Remark    string  `parquet:"remark,optional"`
}

// ParquetExporter выгрузка в Parquet
type ParquetExporter struct{}

func (ParquetExporter) Extension() string { return "parquet" }

func (ParquetExporter) Export(w io.Writer, bars []models.EnrichedBar) error {
	rows := make([]Row, len(bars))
	for i, b := range bars {
		rows[i] = Row{
			Timestamp: b.Time.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
			EMA20:     b.EMA20,
			StochRSI:  b.StochRSI,
			Trend:     b.Trend.String(),
			Signal:    b.Signal.String(),
			Remark:    b.Remark,
		}
	}
	if err := parquet.Write(w, rows); err != nil {
		return fmt.Errorf("ошибка записи Parquet: %w", err)
	}
	return nil
}
