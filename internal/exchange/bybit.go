package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/skalibog/bmse/internal/config"
	"github.com/skalibog/bmse/pkg/logger"
	"github.com/skalibog/bmse/pkg/models"
)

// Коды Bybit API, означающие ограничение частоты
const bybitRateLimitCode = 10006

// BybitClient публичный REST-клиент Bybit v5 (категория linear).
// Частота запросов ограничена: публичный API строже к анонимным клиентам.
type BybitClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewBybitClient создает клиент Bybit
func NewBybitClient(cfg config.BybitConfig) *BybitClient {
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 4
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BybitClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Name возвращает имя поставщика
func (c *BybitClient) Name() string { return "bybit" }

type bybitEnvelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// get выполняет запрос к публичному API с учетом лимитера
func (c *BybitClient) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		// Ключ не обязателен для публичных данных, но поднимает лимиты
		req.Header.Set("X-BAPI-API-KEY", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Transient(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 500:
		return Transient(fmt.Errorf("bybit ответил HTTP %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("bybit ответил HTTP %d", resp.StatusCode)
	}

	var env bybitEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return Transient(fmt.Errorf("ошибка разбора ответа: %w", err))
	}
	if env.RetCode != 0 {
		if env.RetCode == bybitRateLimitCode {
			return ErrRateLimited
		}
		return fmt.Errorf("bybit retCode=%d: %s", env.RetCode, env.RetMsg)
	}

	if err := json.Unmarshal(env.Result, result); err != nil {
		return fmt.Errorf("ошибка разбора результата: %w", err)
	}
	return nil
}

// GetKlines получает свечи символа, от старых к новым
func (c *BybitClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*models.Candle, error) {
	params := url.Values{}
	params.Set("category", "linear")
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	var result struct {
		List [][]string `json:"list"`
	}
	if err := c.get(ctx, "/v5/market/kline", params, &result); err != nil {
		return nil, fmt.Errorf("ошибка получения свечей: %w", err)
	}

	candles := make([]*models.Candle, 0, len(result.List))
	for _, row := range result.List {
		if len(row) < 6 {
			continue
		}
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		open, err1 := strconv.ParseFloat(row[1], 64)
		high, err2 := strconv.ParseFloat(row[2], 64)
		low, err3 := strconv.ParseFloat(row[3], 64)
		closePrice, err4 := strconv.ParseFloat(row[4], 64)
		volume, err5 := strconv.ParseFloat(row[5], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		candles = append(candles, &models.Candle{
			Symbol:   symbol,
			Interval: interval,
			OpenTime: time.UnixMilli(ts),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closePrice,
			Volume:   volume,
		})
	}

	// Bybit отдает свечи от новых к старым
	return sortCandles(candles), nil
}

// GetOrderBook получает стакан заявок
func (c *BybitClient) GetOrderBook(ctx context.Context, symbol string, depth int) (*models.OrderBook, error) {
	params := url.Values{}
	params.Set("category", "linear")
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(depth))

	var result struct {
		Bids [][]string `json:"b"`
		Asks [][]string `json:"a"`
		TS   int64      `json:"ts"`
	}
	if err := c.get(ctx, "/v5/market/orderbook", params, &result); err != nil {
		return nil, fmt.Errorf("ошибка получения стакана: %w", err)
	}

	ob := &models.OrderBook{
		Symbol:    symbol,
		Timestamp: time.UnixMilli(result.TS),
		Bids:      parseLevels(result.Bids),
		Asks:      parseLevels(result.Asks),
	}
	return normalizeOrderBook(ob), nil
}

func parseLevels(raw [][]string) []models.OrderBookLevel {
	levels := make([]models.OrderBookLevel, 0, len(raw))
	for _, row := range raw {
		if len(row) < 2 {
			continue
		}
		price, err1 := strconv.ParseFloat(row[0], 64)
		size, err2 := strconv.ParseFloat(row[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		levels = append(levels, models.OrderBookLevel{Price: price, Size: size})
	}
	return levels
}

// GetRecentTrades получает последние публичные сделки
func (c *BybitClient) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]*models.Trade, error) {
	params := url.Values{}
	params.Set("category", "linear")
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(limit))

	var result struct {
		List []struct {
			Price string `json:"price"`
			Size  string `json:"size"`
			Side  string `json:"side"`
			Time  string `json:"time"`
		} `json:"list"`
	}
	if err := c.get(ctx, "/v5/market/recent-trade", params, &result); err != nil {
		return nil, fmt.Errorf("ошибка получения сделок: %w", err)
	}

	trades := make([]*models.Trade, 0, len(result.List))
	for _, row := range result.List {
		price, err1 := strconv.ParseFloat(row.Price, 64)
		size, err2 := strconv.ParseFloat(row.Size, 64)
		ts, err3 := strconv.ParseInt(row.Time, 10, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		side := models.Sell
		if row.Side == "Buy" {
			side = models.Buy
		}
		trades = append(trades, &models.Trade{
			Symbol:    symbol,
			Price:     price,
			Size:      size,
			Side:      side,
			Timestamp: time.UnixMilli(ts),
		})
	}
	return trades, nil
}

// GetTicker получает 24-часовую статистику символа
func (c *BybitClient) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	params := url.Values{}
	params.Set("category", "linear")
	params.Set("symbol", symbol)

	var result struct {
		List []struct {
			Symbol       string `json:"symbol"`
			LastPrice    string `json:"lastPrice"`
			Price24hPcnt string `json:"price24hPcnt"`
			Volume24h    string `json:"volume24h"`
			HighPrice24h string `json:"highPrice24h"`
			LowPrice24h  string `json:"lowPrice24h"`
		} `json:"list"`
	}
	if err := c.get(ctx, "/v5/market/tickers", params, &result); err != nil {
		return nil, fmt.Errorf("ошибка получения тикера: %w", err)
	}
	if len(result.List) == 0 {
		return nil, fmt.Errorf("тикер %s не найден: %w", symbol, ErrDataUnavailable)
	}

	t := result.List[0]
	last, _ := strconv.ParseFloat(t.LastPrice, 64)
	pcnt, _ := strconv.ParseFloat(t.Price24hPcnt, 64)
	vol, _ := strconv.ParseFloat(t.Volume24h, 64)
	high, _ := strconv.ParseFloat(t.HighPrice24h, 64)
	low, _ := strconv.ParseFloat(t.LowPrice24h, 64)

	return &models.Ticker{
		Symbol:    symbol,
		LastPrice: last,
		Change24h: pcnt * 100,
		Volume24h: vol,
		High24h:   high,
		Low24h:    low,
		Timestamp: time.Now(),
	}, nil
}

// FetchSnapshot собирает полный срез данных по символу.
// Свечи основного таймфрейма обязательны; остальные части опциональны —
// их отсутствие переводит зависящие фильтры в воздержание.
func (c *BybitClient) FetchSnapshot(ctx context.Context, symbol string, tf Timeframes) (*models.Snapshot, error) {
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
