package exchange

import (
	"context"
	"sort"

	"github.com/skalibog/bmse/pkg/models"
)

// Timeframes параметры запрашиваемого среза рыночных данных
type Timeframes struct {
	Primary        string // основной таймфрейм свечей
	Short          string // короткий таймфрейм
	CandleLimit    int
	DailyDays      int
	OrderBookDepth int
	TradeLimit     int
}

// Provider контракт поставщика рыночных данных. Сканер не различает
// поставщиков: порядок перебора задает цепочка.
type Provider interface {
	Name() string
	FetchSnapshot(ctx context.Context, symbol string, tf Timeframes) (*models.Snapshot, error)
}

// normalizeOrderBook сортирует биды по убыванию, аски по возрастанию
// и объединяет дубликаты цен. Стакан внутри Snapshot всегда упорядочен.
func normalizeOrderBook(ob *models.OrderBook) *models.OrderBook {
	if ob == nil {
		return nil
	}
	ob.Bids = mergeLevels(ob.Bids)
	ob.Asks = mergeLevels(ob.Asks)
	sort.Slice(ob.Bids, func(i, j int) bool { return ob.Bids[i].Price > ob.Bids[j].Price })
	sort.Slice(ob.Asks, func(i, j int) bool { return ob.Asks[i].Price < ob.Asks[j].Price })
	return ob
}

func mergeLevels(levels []models.OrderBookLevel) []models.OrderBookLevel {
	if len(levels) < 2 {
		return levels
	}
	byPrice := make(map[float64]float64, len(levels))
	order := make([]float64, 0, len(levels))
	for _, lvl := range levels {
		if _, ok := byPrice[lvl.Price]; !ok {
			order = append(order, lvl.Price)
		}
		byPrice[lvl.Price] += lvl.Size
	}
	out := make([]models.OrderBookLevel, 0, len(order))
	for _, p := range order {
		out = append(out, models.OrderBookLevel{Price: p, Size: byPrice[p]})
	}
	return out
}

// sortCandles упорядочивает свечи от старых к новым
func sortCandles(candles []*models.Candle) []*models.Candle {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})
	return candles
}
