package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/skalibog/bnlive/internal/config"
	"github.com/skalibog/bnlive/pkg/models"
)

const defaultKlineLimit = 500

// BinanceClient получает свечи фьючерсов Binance
type BinanceClient struct {
	futures *futures.Client
	limit   int
}

// NewBinanceClient создает новый клиент Binance
func NewBinanceClient(cfg config.BinanceConfig) (*BinanceClient, error) {
	if cfg.Testnet {
		futures.UseTestnet = true
	}
	limit := cfg.Limit
	if limit <= 0 || limit > 1500 {
		limit = defaultKlineLimit
	}
	return &BinanceClient{
		futures: futures.NewClient(cfg.APIKey, cfg.APISecret),
		limit:   limit,
	}, nil
}

// Fetch получает исторические свечи за окно Lookback
func (c *BinanceClient) Fetch(ctx context.Context, req FetchRequest) ([]models.RawBar, error) {
	lookback, err := ParseLookback(req.Lookback)
	if err != nil {
		return nil, err
	}
	start := time.Now().Add(-lookback)

	klines, err := c.futures.NewKlinesService().
		Symbol(req.Symbol).
		Interval(req.Interval).
		StartTime(start.UnixMilli()).
		Limit(c.limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения свечей: %w", err)
	}

	bars := make([]models.RawBar, len(klines))
	for i, k := range klines {
		bars[i] = models.RawBar{
			Time:   time.UnixMilli(k.OpenTime).UTC(),
			Open:   k.Open,
			High:   k.High,
			Low:    k.Low,
			Close:  k.Close,
			Volume: k.Volume,
		}
	}
	return bars, nil
}
