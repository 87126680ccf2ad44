package ui

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/skalibog/bnlive/internal/config"
	"github.com/skalibog/bnlive/internal/refresh"
	"github.com/skalibog/bnlive/pkg/logger"
	"github.com/skalibog/bnlive/pkg/models"
)

// Стили UI
var (
	// Основные цвета
	primaryColor   = lipgloss.Color("#0077cc")
	secondaryColor = lipgloss.Color("#333333")
	errorColor     = lipgloss.Color("#cc3300")
	successColor   = lipgloss.Color("#33cc33")
	warningColor   = lipgloss.Color("#cccc00")
	mutedColor     = lipgloss.Color("#999999")

	appStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1).
			Align(lipgloss.Center)
	sectionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#ffffff")).
				Background(secondaryColor).
				Padding(0, 1)
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1)
	metricStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1).
			Width(16)
	noDataStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(warningColor)
	footerStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)
)

const maxLogLines = 50

// Options зависимости интерфейса
type Options struct {
	Symbol   string
	Location *time.Location
	LogFile  string
	// Export сохраняет таблицу и возвращает путь к файлу
	Export func(bars []models.EnrichedBar) (string, error)
	// Refresh запрашивает внеочередной пересчет
	Refresh func()
}

// TermUI представляет терминальный интерфейс
type TermUI struct {
	snapshot      refresh.Snapshot
	snapshotMutex sync.RWMutex
	logs          []string
	logsMutex     sync.RWMutex
	status        string
	config        config.UIConfig
	opts          Options
	program       *tea.Program
	selectedIndex int
	width         int
	height        int
}

// Сообщения для обновления UI
type refreshMsg struct{}
type statusMsg string

// bubbleModel - модель для bubbletea
type bubbleModel struct {
	ui *TermUI
}

// NewTermUI создает интерфейс; снимки поступают через Publish
func NewTermUI(cfg config.UIConfig, opts Options) *TermUI {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if cfg.TableRows <= 0 {
		cfg.TableRows = 20
	}
	return &TermUI{
		logs:   []string{"Запуск. Ожидание данных..."},
		config: cfg,
		opts:   opts,
		width:  120,
		height: 40,
	}
}

// Start запускает программу и блокируется до выхода пользователя или отмены контекста
func (ui *TermUI) Start(ctx context.Context) error {
	go ui.followLogs(ctx)

	program := tea.NewProgram(bubbleModel{ui: ui}, tea.WithAltScreen(), tea.WithContext(ctx))
	ui.snapshotMutex.Lock()
	ui.program = program
	ui.snapshotMutex.Unlock()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("ошибка запуска UI: %w", err)
	}
	return nil
}

// Publish принимает новый снимок
func (ui *TermUI) Publish(snap refresh.Snapshot) {
	ui.snapshotMutex.Lock()
	ui.snapshot = snap
	if ui.selectedIndex >= len(snap.Bars) {
		ui.selectedIndex = 0
	}
	program := ui.program
	ui.snapshotMutex.Unlock()

	if program != nil {
		program.Send(refreshMsg{})
	}
}

func (ui *TermUI) followLogs(ctx context.Context) {
	if ui.opts.LogFile == "" {
		return
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ui.loadLogsFromFile(); err != nil {
				logger.Warn("Ошибка загрузки логов", zap.Error(err))
			}
		}
	}
}

// Регулярное выражение для удаления ANSI-цветов
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// loadLogsFromFile читает последние строки JSON-лога
func (ui *TermUI) loadLogsFromFile() error {
	file, err := os.Open(ui.opts.LogFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var logs []string
	for scanner.Scan() {
		logs = append(logs, formatLogLine(scanner.Text()))
		if len(logs) > maxLogLines {
			logs = logs[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if len(logs) > 0 {
		ui.logsMutex.Lock()
		ui.logs = logs
		ui.logsMutex.Unlock()
	}
	return nil
}

func formatLogLine(line string) string {
	var zapLog map[string]interface{}
	if err := json.Unmarshal([]byte(line), &zapLog); err != nil {
		return line
	}
	level, _ := zapLog["level"].(string)
	ts, _ := zapLog["ts"].(string)
	msg, _ := zapLog["msg"].(string)
	level = ansiRegex.ReplaceAllString(level, "")

	timestamp := ""
	if t, err := time.Parse("02.01.2006 - 15:04:05.999999999Z07:00", ts); err == nil {
		timestamp = t.Format("15:04:05")
	}
	return fmt.Sprintf("[%s] [%s] %s", timestamp, level, msg)
}

// Методы для bubbletea
func (m bubbleModel) Init() tea.Cmd {
	return nil
}

func (m bubbleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up":
			m.ui.moveSelection(-1)
		case "down":
			m.ui.moveSelection(1)
		case "r":
			if m.ui.opts.Refresh != nil {
				m.ui.opts.Refresh()
				m.ui.status = "Обновление запрошено"
			}
		case "e":
			return m, m.ui.exportCmd()
		}

	case tea.WindowSizeMsg:
		m.ui.width = msg.Width
		m.ui.height = msg.Height

	case statusMsg:
		m.ui.status = string(msg)

	case refreshMsg:
	}

	return m, nil
}

func (ui *TermUI) moveSelection(delta int) {
	ui.snapshotMutex.Lock()
	defer ui.snapshotMutex.Unlock()
	n := len(ui.snapshot.Bars)
	if n == 0 {
		ui.selectedIndex = 0
		return
	}
	ui.selectedIndex = min(n-1, max(0, ui.selectedIndex+delta))
}

func (ui *TermUI) exportCmd() tea.Cmd {
	if ui.opts.Export == nil {
		return nil
	}
	ui.snapshotMutex.RLock()
	bars := ui.snapshot.Bars
	ui.snapshotMutex.RUnlock()

	return func() tea.Msg {
		if len(bars) == 0 {
			return statusMsg("Нет данных для выгрузки")
		}
		path, err := ui.opts.Export(bars)
		if err != nil {
			logger.Error("Ошибка выгрузки", zap.Error(err))
			return statusMsg("Ошибка выгрузки: " + err.Error())
		}
		return statusMsg("Сохранено: " + path)
	}
}

func (m bubbleModel) View() string {
	return m.ui.render()
}

func (ui *TermUI) render() string {
	ui.snapshotMutex.RLock()
	ui.logsMutex.RLock()
	defer ui.snapshotMutex.RUnlock()
	defer ui.logsMutex.RUnlock()

	title := titleStyle.Render(fmt.Sprintf("%s Live - EMA20 + StochRSI", ui.symbolName()))

	var body string
	latest, ok := ui.snapshot.Latest()
	if !ok {
		body = noDataStyle.Render("no data: источник не вернул свечей, ожидание следующего обновления")
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left,
			renderMetrics(latest),
			fmt.Sprintf("Последнее обновление: %s", ui.snapshot.RefreshedAt.In(ui.opts.Location).Format("2006-01-02 15:04:05 MST")),
			renderDecision(latest),
			"",
			renderTable(ui.snapshot.Bars, ui.selectedIndex, ui.config.TableRows, ui.opts.Location),
		)
	}

	parts := []string{title, "", body, "", renderLogsSection(ui.logs)}
	if ui.status != "" {
		parts = append(parts, footerStyle.Render(ui.status))
	}
	parts = append(parts, footerStyle.Render("Клавиши: ↑/↓ - навигация, R - обновить, E - выгрузка, Q - выход"))

	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (ui *TermUI) symbolName() string {
	if ui.opts.Symbol == "" || ui.opts.Symbol == "^NSEBANK" {
		return "Bank Nifty"
	}
	return ui.opts.Symbol
}

// Вспомогательные функции
func renderMetrics(b models.EnrichedBar) string {
	cell := func(label, value string) string {
		return metricStyle.Render(label + "\n" + value)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		cell("Close", fmt.Sprintf("%.2f", b.Close)),
		cell("EMA20", fmt.Sprintf("%.2f", b.EMA20)),
		cell("StochRSI", fmt.Sprintf("%.2f", b.StochRSI)),
		cell("Trend", b.Trend.String()),
		cell("Signal", formatSignalText(b.Signal)),
	)
}

func renderDecision(b models.EnrichedBar) string {
	switch b.Signal {
	case models.SignalCEBuy:
		return lipgloss.NewStyle().Foreground(successColor).Bold(true).Render("ТОРГОВЫЙ СИГНАЛ: CE BUY")
	case models.SignalPEBuy:
		return lipgloss.NewStyle().Foreground(errorColor).Bold(true).Render("ТОРГОВЫЙ СИГНАЛ: PE BUY")
	default:
		return lipgloss.NewStyle().Foreground(warningColor).Render("Причина: " + b.Remark)
	}
}

func renderTable(bars []models.EnrichedBar, selected, rows int, loc *time.Location) string {
	header := sectionHeaderStyle.Render("СВЕЧИ ТЕКУЩЕЙ СЕССИИ")
	content := strings.Builder{}
	content.WriteString(fmt.Sprintf("  %-8s %10s %10s %10s %10s %9s %10s %8s %-8s %-9s %s\n",
		"Time", "Open", "High", "Low", "Close", "Volume", "EMA20", "StochRSI", "Trend", "Signal", "Remark"))

	// Окно таблицы следует за выбранной строкой
	start := 0
	if selected >= rows {
		start = selected - rows + 1
	}
	end := min(len(bars), start+rows)

	for i := start; i < end; i++ {
		b := bars[i]
		line := fmt.Sprintf("  %-8s %10.2f %10.2f %10.2f %10.2f %9d %10.2f %8.2f %-8s %-9s %s",
			b.Time.In(loc).Format("15:04"), b.Open, b.High, b.Low, b.Close, b.Volume,
			b.EMA20, b.StochRSI, b.Trend, b.Signal, b.Remark)
		if i == selected {
			line = "> " + line[2:]
			line = lipgloss.NewStyle().Background(lipgloss.Color("#222222")).Render(line)
		}
		content.WriteString(line + "\n")
	}
	if len(bars) > end {
		content.WriteString(fmt.Sprintf("  ... еще %d\n", len(bars)-end))
	}

	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, content.String()))
}

func renderLogsSection(logs []string) string {
	header := sectionHeaderStyle.Render("ЛОГИ")
	content := strings.Builder{}

	start := 0
	if len(logs) > 6 {
		start = len(logs) - 6
	}
	for _, log := range logs[start:] {
		// Выделение по уровню логирования
		switch {
		case strings.Contains(log, "[ERROR]"):
			log = lipgloss.NewStyle().Foreground(errorColor).Render(log)
		case strings.Contains(log, "[INFO]"):
			log = lipgloss.NewStyle().Foreground(successColor).Render(log)
		case strings.Contains(log, "[WARN]"):
			log = lipgloss.NewStyle().Foreground(warningColor).Render(log)
		case strings.Contains(log, "[DEBUG]"):
			log = lipgloss.NewStyle().Foreground(lipgloss.Color("#9999ff")).Render(log)
		}
		content.WriteString("  " + log + "\n")
	}

	return sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, content.String()))
}

func formatSignalText(signal models.Signal) string {
	var style lipgloss.Style
	switch signal {
	case models.SignalCEBuy:
		style = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	case models.SignalPEBuy:
		style = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	default:
		style = lipgloss.NewStyle().Foreground(warningColor)
	}
	return style.Render(signal.String())
}
