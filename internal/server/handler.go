package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/skalibog/bnlive/internal/export"
	"github.com/skalibog/bnlive/internal/refresh"
	"github.com/skalibog/bnlive/pkg/logger"
)

const apiBasePath = "/api"

var errNoData = errors.New("no data")

// SnapshotProvider отдает последний опубликованный снимок
type SnapshotProvider interface {
	Snapshot() refresh.Snapshot
}

// Trigger запрашивает внеочередной пересчет
type Trigger interface {
	Trigger()
}

// Handler HTTP API только для чтения поверх последнего снимка
type Handler struct {
	router    *gin.Engine
	snapshots SnapshotProvider
	trigger   Trigger
}

// NewHandler создает роутер; trigger может быть nil
func NewHandler(snapshots SnapshotProvider, trigger Trigger) *Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	h := &Handler{
		router:    router,
		snapshots: snapshots,
		trigger:   trigger,
	}
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/healthz", h.health)

	api := h.router.Group(apiBasePath)
	{
		api.GET("/latest", h.getLatest)
		api.GET("/bars", h.getBars)
		api.GET("/bars.csv", h.downloadCSV)
		api.POST("/refresh", h.postRefresh)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// getLatest отдает последнюю свечу с сигналом
func (h *Handler) getLatest(c *gin.Context) {
	snap := h.snapshots.Snapshot()
	latest, ok := snap.Latest()
	if !ok {
		writeError(c, http.StatusServiceUnavailable, errNoData)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cycle_id":     snap.CycleID,
		"refreshed_at": snap.RefreshedAt,
		"bar":          latest,
	})
}

// getBars отдает всю таблицу последней сессии от новых свечей к старым
func (h *Handler) getBars(c *gin.Context) {
	snap := h.snapshots.Snapshot()
	if snap.Empty() {
		writeError(c, http.StatusServiceUnavailable, errNoData)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// downloadCSV отдает таблицу файлом BankNifty_Live.csv
func (h *Handler) downloadCSV(c *gin.Context) {
	snap := h.snapshots.Snapshot()
	if snap.Empty() {
		writeError(c, http.StatusServiceUnavailable, errNoData)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.DefaultFilename+`"`)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	if err := (export.CSVExporter{}).Export(c.Writer, snap.Bars); err != nil {
		logger.Error("Ошибка выгрузки CSV", zap.Error(err))
	}
}

func (h *Handler) postRefresh(c *gin.Context) {
	if h.trigger == nil {
		writeError(c, http.StatusNotImplemented, errors.New("refresh is not available"))
		return
	}
	h.trigger.Trigger()
	c.JSON(http.StatusAccepted, gin.H{"status": "scheduled"})
}

func writeError(c *gin.Context, status int, err error) {
	if err == nil {
		status = http.StatusInternalServerError
		err = errors.New("unknown error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// Serve запускает HTTP API и останавливает его при отмене контекста
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API запущен", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("HTTP API остановлен")
	return nil
}
