package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/skalibog/bnlive/internal/config"
	"github.com/skalibog/bnlive/pkg/models"
)

const (
	defaultYahooBaseURL = "https://query1.finance.yahoo.com"
	yahooChartPath      = "/v8/finance/chart/{symbol}"
)

// YahooSource получает внутридневные свечи через Yahoo Finance chart API
type YahooSource struct {
	client *resty.Client
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// NewYahooSource создает клиент Yahoo Finance
func NewYahooSource(cfg config.YahooConfig, timeout time.Duration) *YahooSource {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultYahooBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &YahooSource{client: client}
}

// Fetch получает свечи за окно Lookback с интервалом Interval.
// Пропущенные значения (null) передаются дальше как отсутствующие.
func (s *YahooSource) Fetch(ctx context.Context, req FetchRequest) ([]models.RawBar, error) {
	var body chartResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("symbol", req.Symbol).
		SetQueryParams(map[string]string{
			"range":          req.Lookback,
			"interval":       req.Interval,
			"includePrePost": "false",
		}).
		SetResult(&body).
		Get(yahooChartPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса Yahoo: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("Yahoo ответил %d: %s", resp.StatusCode(), resp.Status())
	}
	if e := body.Chart.Error; e != nil {
		return nil, fmt.Errorf("Yahoo вернул ошибку %s: %s", e.Code, e.Description)
	}
	if len(body.Chart.Result) == 0 {
		return nil, nil
	}
	return body.Chart.Result[0].bars(), nil
}

func (r chartResult) bars() []models.RawBar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]
	out := make([]models.RawBar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		out = append(out, models.RawBar{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   at(q.Open, i),
			High:   at(q.High, i),
			Low:    at(q.Low, i),
			Close:  at(q.Close, i),
			Volume: at(q.Volume, i),
		})
	}
	return out
}

// at возвращает значение как текст; null и выход за границы - пустая строка
func at(values []*float64, i int) string {
	if i >= len(values) || values[i] == nil {
		return ""
	}
	return strconv.FormatFloat(*values[i], 'f', -1, 64)
}
