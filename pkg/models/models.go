package models

import (
	"time"
)

// Direction представляет направление сигнала
type Direction int

const (
	Neutral Direction = iota
	Long
	Short
)

// String возвращает текстовое представление направления
func (d Direction) String() string {
	switch d {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "NEUTRAL"
	}
}

// Opposite возвращает противоположное направление
func (d Direction) Opposite() Direction {
	switch d {
	case Long:
		return Short
	case Short:
		return Long
	default:
		return Neutral
	}
}

// Candle представляет свечу
type Candle struct {
	Symbol    string
	Interval  string
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}

// Body возвращает размер тела свечи
func (c *Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range возвращает полный размах свечи
func (c *Candle) Range() float64 {
	return c.High - c.Low
}

// Bullish сообщает, бычья ли свеча
func (c *Candle) Bullish() bool {
	return c.Close > c.Open
}

// OrderBookLevel представляет уровень стакана
type OrderBookLevel struct {
	Price float64
	Size  float64
}

// OrderBook представляет стакан заявок.
// Биды отсортированы по убыванию цены, аски по возрастанию,
// дубликаты цен объединены при построении.
type OrderBook struct {
	Symbol    string
	Timestamp time.Time
	Bids      []OrderBookLevel
	Asks      []OrderBookLevel
}

// BestBid возвращает лучший бид
func (ob *OrderBook) BestBid() (OrderBookLevel, bool) {
	if len(ob.Bids) == 0 {
		return OrderBookLevel{}, false
	}
	return ob.Bids[0], true
}

// BestAsk возвращает лучший аск
func (ob *OrderBook) BestAsk() (OrderBookLevel, bool) {
	if len(ob.Asks) == 0 {
		return OrderBookLevel{}, false
	}
	return ob.Asks[0], true
}

// MidPrice возвращает среднюю цену между лучшим бидом и аском
func (ob *OrderBook) MidPrice() float64 {
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return 0
	}
	return (ob.Bids[0].Price + ob.Asks[0].Price) / 2
}

// TradeSide представляет сторону сделки
type TradeSide int

const (
	Buy TradeSide = iota
	Sell
)

// Trade представляет публичную сделку
type Trade struct {
	Symbol    string
	Price     float64
	Size      float64
	Side      TradeSide
	Timestamp time.Time
}

// Notional возвращает номинальный объем сделки
func (t *Trade) Notional() float64 {
	return t.Price * t.Size
}

// Ticker представляет 24-часовую статистику символа
type Ticker struct {
	Symbol    string
	LastPrice float64
	Change24h float64
	Volume24h float64
	High24h   float64
	Low24h    float64
	Timestamp time.Time
}

// Snapshot представляет полный срез рыночных данных по символу за цикл.
// Отсутствующие части (nil/пустые) переводят зависящие фильтры в воздержание.
type Snapshot struct {
	Symbol       string
	Candles      []*Candle // основной таймфрейм (5m), от старых к новым
	ShortCandles []*Candle // короткий таймфрейм (1m)
	DailyCandles []*Candle // дневные свечи для фильтра новых монет
	OrderBook    *OrderBook
	Trades       []*Trade
	Ticker       *Ticker
	FetchedAt    time.Time
}

// Latest возвращает последнюю свечу основного таймфрейма
func (s *Snapshot) Latest() *Candle {
	if len(s.Candles) == 0 {
		return nil
	}
	return s.Candles[len(s.Candles)-1]
}

// FilterResult представляет результат одного фильтра за цикл
type FilterResult struct {
	Name      string
	Passed    bool
	Abstained bool // входные данные недоступны, фильтр не голосует
	Gate      bool // жесткое вето: провал обнуляет силу сигнала
	Weight    float64
	Direction Direction
	Value     float64 // численная метрика фильтра (RSI, дисбаланс, спред...)
	Detail    string
}

// TPLevel представляет уровень тейк-профита
type TPLevel struct {
	Price      float64
	CumPercent float64 // накопленная доля позиции, закрываемая на уровне
}

// Signal представляет торговый сигнал
type Signal struct {
	ID            string
	Symbol        string
	Direction     Direction
	EntryPrice    float64
	Strength      float64
	Targets       []TPLevel
	FiltersPassed []string
	RSI           float64
	Imbalance     float64
	SpreadPct     float64
	Whale         bool
	Change24h     float64
	Volume24h     float64
	CreatedAt     time.Time
}
