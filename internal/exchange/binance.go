package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"go.uber.org/zap"

	"github.com/skalibog/bmse/internal/config"
	"github.com/skalibog/bmse/pkg/logger"
	"github.com/skalibog/bmse/pkg/models"
)

// Код Binance при превышении лимита запросов
const binanceRateLimitCode = -1003

// BinanceClient резервный поставщик данных через фьючерсный API Binance.
// Используется при недоступности основного поставщика.
type BinanceClient struct {
	client *futures.Client
}

// NewBinanceClient создает резервный клиент Binance
func NewBinanceClient(cfg config.BinanceConfig) *BinanceClient {
	futures.UseTestnet = cfg.Testnet
	return &BinanceClient{
		client: futures.NewClient(cfg.APIKey, cfg.APISecret),
	}
}

// Name возвращает имя поставщика
func (c *BinanceClient) Name() string { return "binance" }

// classify переводит ошибки API в таксономию поставщиков
func classify(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == binanceRateLimitCode || apiErr.Code == -1015 {
			return ErrRateLimited
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient(err)
	}
	return err
}

// mapInterval переводит обозначение таймфрейма в формат Binance
func mapInterval(interval string) string {
	switch interval {
	case "1":
		return "1m"
	case "3":
		return "3m"
	case "5":
		return "5m"
	case "15":
		return "15m"
	case "30":
		return "30m"
	case "60":
		return "1h"
	case "240":
		return "4h"
	case "D":
		return "1d"
	default:
		return interval
	}
}

// GetKlines получает свечи символа, от старых к новым
func (c *BinanceClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error) {
	klines, err := c.client.NewKlinesService().
		Symbol(symbol).
		Interval(mapInterval(interval)).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения свечей: %w", classify(err))
	}

	candles := make([]*models.Candle, 0, len(klines))
	for _, k := range klines {
		open, err1 := strconv.ParseFloat(k.Open, 64)
		high, err2 := strconv.ParseFloat(k.High, 64)
		low, err3 := strconv.ParseFloat(k.Low, 64)
		closePrice, err4 := strconv.ParseFloat(k.Close, 64)
		volume, err5 := strconv.ParseFloat(k.Volume, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		candles = append(candles, &models.Candle{
			Symbol:    symbol,
			Interval:  interval,
			OpenTime:  time.UnixMilli(k.OpenTime),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
			CloseTime: time.UnixMilli(k.CloseTime),
		})
	}
	return sortCandles(candles), nil
}

// GetOrderBook получает стакан заявок
func (c *BinanceClient) GetOrderBook(ctx context.Context, symbol string, depth int) (*models.OrderBook, error) {
	res, err := c.client.NewDepthService().
		Symbol(symbol).
		Limit(depth).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения стакана: %w", classify(err))
	}

	ob := &models.OrderBook{
		Symbol:    symbol,
		Timestamp: time.Now(),
		Bids:      make([]models.OrderBookLevel, 0, len(res.Bids)),
		Asks:      make([]models.OrderBookLevel, 0, len(res.Asks)),
	}
	for _, b := range res.Bids {
		price, err1 := strconv.ParseFloat(b.Price, 64)
		size, err2 := strconv.ParseFloat(b.Quantity, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		ob.Bids = append(ob.Bids, models.OrderBookLevel{Price: price, Size: size})
	}
	for _, a := range res.Asks {
		price, err1 := strconv.ParseFloat(a.Price, 64)
		size, err2 := strconv.ParseFloat(a.Quantity, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		ob.Asks = append(ob.Asks, models.OrderBookLevel{Price: price, Size: size})
	}
	return normalizeOrderBook(ob), nil
}

// GetRecentTrades получает последние агрегированные сделки
func (c *BinanceClient) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]*models.Trade, error) {
	aggTrades, err := c.client.NewAggTradesService().
		Symbol(symbol).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения сделок: %w", classify(err))
	}

	trades := make([]*models.Trade, 0, len(aggTrades))
	for _, t := range aggTrades {
		price, err1 := strconv.ParseFloat(t.Price, 64)
		size, err2 := strconv.ParseFloat(t.Quantity, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		// Покупатель-мейкер означает агрессивную продажу
		side := models.Buy
		if t.IsBuyerMaker {
			side = models.Sell
		}
		trades = append(trades, &models.Trade{
			Symbol:    symbol,
			Price:     price,
			Size:      size,
			Side:      side,
			Timestamp: time.UnixMilli(t.Timestamp),
		})
	}
	return trades, nil
}

// GetTicker получает 24-часовую статистику символа
func (c *BinanceClient) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	stats, err := c.client.NewListPriceChangeStatsService().
		Symbol(symbol).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения тикера: %w", classify(err))
	}
	if len(stats) == 0 {
		return nil, fmt.Errorf("тикер %s не найден: %w", symbol, ErrDataUnavailable)
	}

	s := stats[0]
	last, _ := strconv.ParseFloat(s.LastPrice, 64)
	pcnt, _ := strconv.ParseFloat(s.PriceChangePercent, 64)
	vol, _ := strconv.ParseFloat(s.Volume, 64)
	high, _ := strconv.ParseFloat(s.HighPrice, 64)
	low, _ := strconv.ParseFloat(s.LowPrice, 64)

	return &models.Ticker{
		Symbol:    symbol,
		LastPrice: last,
		Change24h: pcnt,
		Volume24h: vol,
		High24h:   high,
		Low24h:    low,
		Timestamp: time.Now(),
	}, nil
}

// FetchSnapshot собирает полный срез данных по символу
func (c *BinanceClient) FetchSnapshot(ctx context.Context, symbol string, tf Timeframes) (*models.Snapshot, error) {
	candles, err := c.GetKlines(ctx, symbol, tf.Primary, tf.CandleLimit)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("нет свечей %s: %w", symbol, ErrDataUnavailable)
	}

	snap := &models.Snapshot{
		Symbol:    symbol,
		Candles:   candles,
		FetchedAt: time.Now(),
	}

	if short, err := c.GetKlines(ctx, symbol, tf.Short, tf.CandleLimit); err != nil {
		logger.Warn("Свечи короткого таймфрейма недоступны", zap.String("symbol", symbol), zap.Error(err))
	} else {
		snap.ShortCandles = short
	}

	if daily, err := c.GetKlines(ctx, symbol, "D", tf.DailyDays); err != nil {
		logger.Warn("Дневные свечи недоступны", zap.String("symbol", symbol), zap.Error(err))
	} else {
		snap.DailyCandles = daily
	}

	if ob, err := c.GetOrderBook(ctx, symbol, tf.OrderBookDepth); err != nil {
		logger.Warn("Стакан недоступен", zap.String("symbol", symbol), zap.Error(err))
	} else {
		snap.OrderBook = ob
	}

	if trades, err := c.GetRecentTrades(ctx, symbol, tf.TradeLimit); err != nil {
		logger.Warn("Сделки недоступны", zap.String("symbol", symbol), zap.Error(err))
	} else {
		snap.Trades = trades
	}

	if ticker, err := c.GetTicker(ctx, symbol); err != nil {
		logger.Warn("Тикер недоступен", zap.String("symbol", symbol), zap.Error(err))
	} else {
		snap.Ticker = ticker
	}

	return snap, nil
}
