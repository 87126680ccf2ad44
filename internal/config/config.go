package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config представляет полную конфигурацию приложения
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Cache    CacheConfig    `yaml:"cache"`
	Session  SessionConfig  `yaml:"session"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Storage  StorageConfig  `yaml:"storage"`
	Export   ExportConfig   `yaml:"export"`
	HTTP     HTTPConfig     `yaml:"http"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	UI       UIConfig       `yaml:"ui"`
	Log      LogConfig      `yaml:"log"`
}

// SourceConfig описывает, откуда брать сырые свечи
type SourceConfig struct {
	Provider string        `yaml:"provider"` // yahoo | binance | csv | influx
	Symbol   string        `yaml:"symbol"`
	Interval string        `yaml:"interval"`
	Lookback string        `yaml:"lookback"` // например "5d"
	Timeout  time.Duration `yaml:"timeout"`
	Yahoo    YahooConfig   `yaml:"yahoo"`
	Binance  BinanceConfig `yaml:"binance"`
	CSV      CSVConfig     `yaml:"csv"`
}

// YahooConfig настройки Yahoo Finance chart API
type YahooConfig struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
}

// BinanceConfig содержит настройки подключения к Binance
type BinanceConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
	Limit     int    `yaml:"limit"`
}

// CSVConfig файл для воспроизведения сохраненных свечей
type CSVConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig ограничивает частоту обращений к источнику
type CacheConfig struct {
	Backend  string        `yaml:"backend"` // memory | redis | none
	TTL      time.Duration `yaml:"ttl"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
}

// SessionConfig торговая сессия в местном времени
type SessionConfig struct {
	UTCOffset string `yaml:"utc_offset"` // "+05:30"
	Open      string `yaml:"open"`       // "09:15"
	Close     string `yaml:"close"`      // "15:30"
}

// Location возвращает фиксированный часовой пояс сессии
func (s SessionConfig) Location() (*time.Location, error) {
	offset, err := parseOffset(s.UTCOffset)
	if err != nil {
		return nil, err
	}
	return time.FixedZone("UTC"+s.UTCOffset, offset), nil
}

// AnalysisConfig настройки классификации сигналов
type AnalysisConfig struct {
	Signal SignalConfig `yaml:"signal"`
}

// SignalConfig пороговые значения для сигналов
type SignalConfig struct {
	MaxEMADistance float64 `yaml:"max_ema_distance"`
}

// RefreshConfig периодический пересчет
type RefreshConfig struct {
	Interval   time.Duration `yaml:"interval"`
	MinBackoff time.Duration `yaml:"min_backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// StorageConfig архив сырых свечей в InfluxDB
type StorageConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

// ExportConfig настройки выгрузки таблицы
type ExportConfig struct {
	Format string `yaml:"format"` // csv | json | parquet
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
}

// HTTPConfig настройки HTTP API
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// MetricsConfig настройки Prometheus
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// UIConfig настройки пользовательского интерфейса
type UIConfig struct {
	Enabled   bool `yaml:"enabled"`
	TableRows int  `yaml:"table_rows"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Level    string `yaml:"level"`
	File     string `yaml:"file"`
	JSONFile string `yaml:"json_file"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Provider: "yahoo",
			Symbol:   "^NSEBANK",
			Interval: "5m",
			Lookback: "5d",
			Timeout:  10 * time.Second,
			Yahoo: YahooConfig{
				BaseURL:   "https://query1.finance.yahoo.com",
				UserAgent: "Mozilla/5.0 (bnlive)",
			},
			Binance: BinanceConfig{Limit: 500},
		},
		Cache: CacheConfig{Backend: "memory", TTL: 15 * time.Second},
		Session: SessionConfig{
			UTCOffset: "+05:30",
			Open:      "09:15",
			Close:     "15:30",
		},
		Analysis: AnalysisConfig{Signal: SignalConfig{MaxEMADistance: 100}},
		Refresh: RefreshConfig{
			Interval:   15 * time.Second,
			MinBackoff: time.Second,
			MaxBackoff: 15 * time.Second,
		},
		Export:  ExportConfig{Format: "csv", Dir: ".", Prefix: "BankNifty_Live"},
		HTTP:    HTTPConfig{Addr: ":8080"},
		Metrics: MetricsConfig{Addr: ":9090"},
		UI:      UIConfig{Enabled: true, TableRows: 20},
		Log:     LogConfig{Level: "info", File: "app.log", JSONFile: "app.json.log"},
	}
}

// Load загружает конфигурацию из файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}

	// .env не обязателен
	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"BNLIVE_BINANCE_API_KEY":    &c.Source.Binance.APIKey,
		"BNLIVE_BINANCE_API_SECRET": &c.Source.Binance.APISecret,
		"BNLIVE_INFLUX_TOKEN":       &c.Storage.Token,
		"BNLIVE_REDIS_PASSWORD":     &c.Cache.Password,
	}
	for key, target := range overrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*target = v
		}
	}
}

// applyDefaults заполняет нулевые значения, оставленные пустыми в yaml
func (c *Config) applyDefaults() {
	def := Default()
	if c.Source.Provider == "" {
		c.Source.Provider = def.Source.Provider
	}
	c.Source.Provider = strings.ToLower(strings.TrimSpace(c.Source.Provider))
	if c.Source.Interval == "" {
		c.Source.Interval = def.Source.Interval
	}
	if c.Source.Lookback == "" {
		c.Source.Lookback = def.Source.Lookback
	}
	if c.Source.Timeout <= 0 {
		c.Source.Timeout = def.Source.Timeout
	}
	if c.Analysis.Signal.MaxEMADistance <= 0 {
		c.Analysis.Signal.MaxEMADistance = def.Analysis.Signal.MaxEMADistance
	}
	if c.Refresh.Interval <= 0 {
		c.Refresh.Interval = def.Refresh.Interval
	}
	if c.Refresh.MinBackoff <= 0 {
		c.Refresh.MinBackoff = def.Refresh.MinBackoff
	}
	if c.Refresh.MaxBackoff <= 0 {
		c.Refresh.MaxBackoff = c.Refresh.Interval
	}
	if c.UI.TableRows <= 0 {
		c.UI.TableRows = def.UI.TableRows
	}
	if c.Export.Format == "" {
		c.Export.Format = def.Export.Format
	}
	if c.Export.Prefix == "" {
		c.Export.Prefix = def.Export.Prefix
	}
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	var errs []error
	if c.Source.Symbol == "" && c.Source.Provider != "csv" {
		errs = append(errs, errors.New("source.symbol не задан"))
	}
	if c.Source.Provider == "csv" && c.Source.CSV.Path == "" {
		errs = append(errs, errors.New("source.csv.path не задан"))
	}
	if _, err := c.Session.Location(); err != nil {
		errs = append(errs, err)
	}
	for _, clock := range []string{c.Session.Open, c.Session.Close} {
		if _, err := time.Parse("15:04", clock); err != nil {
			errs = append(errs, fmt.Errorf("неверное время сессии %q: %w", clock, err))
		}
	}
	if c.Storage.Enabled && (c.Storage.URL == "" || c.Storage.Bucket == "") {
		errs = append(errs, errors.New("storage: url и bucket обязательны"))
	}
	return errors.Join(errs...)
}

// parseOffset разбирает смещение вида "+05:30" в секунды
func parseOffset(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "Z" {
		return 0, nil
	}
	t, err := time.Parse("-07:00", s)
	if err != nil {
		return 0, fmt.Errorf("неверное смещение часового пояса %q: %w", s, err)
	}
	_, offset := t.Zone()
	return offset, nil
}
