package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/skalibog/bnlive/internal/analysis/aggregator"
	"github.com/skalibog/bnlive/internal/config"
	"github.com/skalibog/bnlive/internal/exchange"
	"github.com/skalibog/bnlive/internal/export"
	"github.com/skalibog/bnlive/internal/metrics"
	"github.com/skalibog/bnlive/internal/refresh"
	"github.com/skalibog/bnlive/internal/server"
	"github.com/skalibog/bnlive/internal/storage"
	"github.com/skalibog/bnlive/internal/ui"
	"github.com/skalibog/bnlive/pkg/logger"
	"github.com/skalibog/bnlive/pkg/models"
)

func main() {
	// Обработка флагов командной строки
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	once := flag.Bool("once", false, "один пересчет, вывод последней свечи и выход")
	exportFormat := flag.String("export", "", "выгрузить таблицу в формате csv, json или parquet")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File, JSONFile: cfg.Log.JSONFile})
	defer logger.GetLogger().Sync()

	// Контекст отменяется по SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *once, *exportFormat); err != nil {
		logger.Error("Завершение с ошибкой", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig читает файл конфигурации; без файла используются значения по умолчанию
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

func run(ctx context.Context, cfg *config.Config, once bool, exportFormat string) error {
	logger.Info("Запуск",
		zap.String("provider", cfg.Source.Provider),
		zap.String("symbol", cfg.Source.Symbol),
		zap.String("interval", cfg.Source.Interval))

	loc, err := cfg.Session.Location()
	if err != nil {
		return err
	}

	// Архив сырых свечей
	var archive refresh.Archive
	var reader exchange.BarReader
	if cfg.Storage.Enabled {
		store, err := storage.NewInfluxDBStorage(cfg.Storage)
		if err != nil {
			return fmt.Errorf("ошибка инициализации хранилища: %w", err)
		}
		defer store.Close()
		archive, reader = store, store
		if cfg.Source.Provider == exchange.ProviderInflux {
			// Повторно сохранять прочитанные из архива свечи не нужно
			archive = nil
		}
	}

	source, err := exchange.NewSource(cfg.Source, reader)
	if err != nil {
		return fmt.Errorf("ошибка инициализации источника: %w", err)
	}
	if cfg.Metrics.Enabled {
		source = metrics.Instrument(source)
	}
	source, err = exchange.NewCachedSource(source, cfg.Cache)
	if err != nil {
		return fmt.Errorf("ошибка инициализации кэша: %w", err)
	}

	pipeline, err := aggregator.NewPipeline(cfg.Session, cfg.Analysis)
	if err != nil {
		return err
	}

	format := cfg.Export.Format
	if exportFormat != "" {
		format = exportFormat
	}
	exporter, err := export.NewExporter(format)
	if err != nil {
		return err
	}
	exportBars := func(bars []models.EnrichedBar) (string, error) {
		return export.WriteFile(cfg.Export.Dir, cfg.Export.Prefix, exporter, bars)
	}

	snapshots := refresh.NewStore()
	sinks := []refresh.Sink{snapshots}
	if cfg.Metrics.Enabled {
		sinks = append(sinks, metrics.Sink{})
		srv := metrics.Serve(cfg.Metrics.Addr)
		defer srv.Close()
		logger.Info("Метрики доступны", zap.String("addr", cfg.Metrics.Addr))
	}

	if once {
		refresher := refresh.NewRefresher(source, pipeline, archive, cfg.Source, cfg.Refresh, sinks...)
		return runOnce(ctx, refresher, exportFormat != "", exportBars)
	}

	var refresher *refresh.Refresher
	var termUI *ui.TermUI
	if cfg.UI.Enabled {
		termUI = ui.NewTermUI(cfg.UI, ui.Options{
			Symbol:   cfg.Source.Symbol,
			Location: loc,
			LogFile:  cfg.Log.JSONFile,
			Export:   exportBars,
			Refresh:  func() { refresher.Trigger() },
		})
		sinks = append(sinks, termUI)
	}
	refresher = refresh.NewRefresher(source, pipeline, archive, cfg.Source, cfg.Refresh, sinks...)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = refresher.Run(ctx)
	}()

	if cfg.HTTP.Enabled {
		gin.SetMode(gin.ReleaseMode)
		go func() {
			if err := server.Serve(ctx, cfg.HTTP.Addr, server.NewHandler(snapshots, refresher)); err != nil {
				logger.Error("Ошибка HTTP API", zap.Error(err))
			}
		}()
	}

	if termUI != nil {
		// Выход из UI завершает программу
		if err := termUI.Start(ctx); err != nil {
			return err
		}
		cancel()
	} else {
		<-ctx.Done()
	}

	<-done
	logger.Info("Завершение работы")
	return nil
}

func runOnce(ctx context.Context, refresher *refresh.Refresher, doExport bool, exportBars func([]models.EnrichedBar) (string, error)) error {
	snap, err := refresher.RefreshOnce(ctx)
	if err != nil {
		return err
	}
	latest, ok := snap.Latest()
	if !ok {
		fmt.Println("no data")
		return nil
	}
	fmt.Printf("%s  close=%.2f ema20=%.2f stochrsi=%.2f trend=%s signal=%s",
		latest.Time.Format("2006-01-02 15:04"), latest.Close, latest.EMA20, latest.StochRSI, latest.Trend, latest.Signal)
	if latest.Remark != "" {
		fmt.Printf(" (%s)", latest.Remark)
	}
	fmt.Println()

	if doExport {
		path, err := exportBars(snap.Bars)
		if err != nil {
			return err
		}
		fmt.Println("Сохранено:", path)
	}
	return nil
}
