// internal/storage/influxdb.go
package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/shopspring/decimal"

	"github.com/skalibog/bnlive/internal/config"
	"github.com/skalibog/bnlive/pkg/models"
)

const barsMeasurement = "bars"

// Storage архив сырых свечей
type Storage interface {
	SaveBars(ctx context.Context, symbol, interval string, bars []models.RawBar) error
	GetBars(ctx context.Context, symbol, interval string, since time.Time) ([]models.RawBar, error)
	Close()
}

// InfluxDBStorage реализует интерфейс Storage с использованием InfluxDB
type InfluxDBStorage struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPIBlocking
	org      string
	bucket   string
}

// NewInfluxDBStorage создает новое хранилище InfluxDB
func NewInfluxDBStorage(cfg config.StorageConfig) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Проверка соединения
	health, err := client.Health(context.Background())
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	return &InfluxDBStorage{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Organization),
		writeAPI: client.WriteAPIBlocking(cfg.Organization, cfg.Bucket),
		org:      cfg.Organization,
		bucket:   cfg.Bucket,
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() {
	s.client.Close()
}

// SaveBars сохраняет сырые свечи; повторная запись той же минуты перезаписывает точку
func (s *InfluxDBStorage) SaveBars(ctx context.Context, symbol, interval string, bars []models.RawBar) error {
	points := barPoints(symbol, interval, bars)
	if len(points) == 0 {
		return nil
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("ошибка записи свечей: %w", err)
	}
	return nil
}

// GetBars получает свечи начиная с since в порядке возрастания времени
func (s *InfluxDBStorage) GetBars(ctx context.Context, symbol, interval string, since time.Time) ([]models.RawBar, error) {
	result, err := s.queryAPI.Query(ctx, barsQuery(s.bucket, symbol, interval, since))
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса свечей: %w", err)
	}

	var bars []models.RawBar
	for result.Next() {
		record := result.Record()
		bars = append(bars, models.RawBar{
			Time:   record.Time(),
			Open:   valueText(record.ValueByKey("open")),
			High:   valueText(record.ValueByKey("high")),
			Low:    valueText(record.ValueByKey("low")),
			Close:  valueText(record.ValueByKey("close")),
			Volume: valueText(record.ValueByKey("volume")),
		})
	}

	// Проверяем на ошибки при обработке результатов
	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	return bars, nil
}

func barsQuery(bucket, symbol, interval string, since time.Time) string {
	return fmt.Sprintf(`
		from(bucket: %q)
			|> range(start: %s)
			|> filter(fn: (r) => r._measurement == %q)
			|> filter(fn: (r) => r.symbol == %q)
			|> filter(fn: (r) => r.interval == %q)
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"])
	`, bucket, since.UTC().Format(time.RFC3339), barsMeasurement, symbol, interval)
}

// barPoints строит точки только из читаемых полей; свечи без полей пропускаются
func barPoints(symbol, interval string, bars []models.RawBar) []*write.Point {
	tags := map[string]string{
		"symbol":   symbol,
		"interval": interval,
	}
	points := make([]*write.Point, 0, len(bars))
	for _, bar := range bars {
		fields := barFields(bar)
		if len(fields) == 0 {
			continue
		}
		points = append(points, influxdb2.NewPoint(barsMeasurement, tags, fields, bar.Time))
	}
	return points
}

func barFields(bar models.RawBar) map[string]interface{} {
	fields := make(map[string]interface{}, 5)
	for name, raw := range map[string]string{
		"open":   bar.Open,
		"high":   bar.High,
		"low":    bar.Low,
		"close":  bar.Close,
		"volume": bar.Volume,
	} {
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		fields[name] = d.InexactFloat64()
	}
	return fields
}

func valueText(v interface{}) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case string:
		return x
	default:
		return ""
	}
}
