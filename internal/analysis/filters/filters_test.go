package filters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/bmse/internal/config"
	"github.com/skalibog/bmse/internal/state"
	"github.com/skalibog/bmse/pkg/models"
)

var testBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// flatState наполняет состояние n свечами с одинаковой ценой и объемом
func flatState(n int, price, volume float64) *state.SymbolState {
	s := state.NewSymbolState("BTCUSDT", 50, 5)
	for i := 0; i < n; i++ {
		s.Update(&models.Candle{
			Symbol:   "BTCUSDT",
			OpenTime: testBase.Add(time.Duration(i) * 5 * time.Minute),
			Open:     price,
			High:     price,
			Low:      price,
			Close:    price,
			Volume:   volume,
		})
	}
	return s
}

func testContext(s *state.SymbolState) Context {
	return Context{
		Snapshot: &models.Snapshot{Symbol: "BTCUSDT"},
		State:    s,
		Config:   &config.Default().Filters,
		Now:      testBase.Add(3 * time.Hour),
	}
}

func TestBreakout(t *testing.T) {
	s := flatState(25, 100, 10)
	ctx := testContext(s)

	// Закрытие выше максимума окна
	s.Update(&models.Candle{
		OpenTime: testBase.Add(25 * 5 * time.Minute),
		Open:     100, High: 103, Low: 100, Close: 102.5, Volume: 10,
	})
	res := Breakout{}.Evaluate(ctx)
	require.False(t, res.Abstained)
	assert.True(t, res.Passed)
	assert.Equal(t, models.Long, res.Direction)

	// Закрытие внутри диапазона
	s.Update(&models.Candle{
		OpenTime: testBase.Add(26 * 5 * time.Minute),
		Open:     102, High: 102.8, Low: 99, Close: 99.5, Volume: 10,
	})
	res = Breakout{}.Evaluate(ctx)
	assert.False(t, res.Passed)
	assert.Equal(t, models.Neutral, res.Direction)
}

func TestBreakoutAbstainsWithoutHistory(t *testing.T) {
	s := flatState(5, 100, 10)
	res := Breakout{}.Evaluate(testContext(s))
	assert.True(t, res.Abstained)
	assert.False(t, res.Passed)
}

func TestRangeBreakThreshold(t *testing.T) {
	s := flatState(25, 100, 10)
	ctx := testContext(s)

	// Пробой на 2% выше порога в 1.2%
	s.Update(&models.Candle{
		OpenTime: testBase.Add(25 * 5 * time.Minute),
		Open:     100, High: 102.5, Low: 100, Close: 102, Volume: 10,
	})
	res := RangeBreak{}.Evaluate(ctx)
	assert.True(t, res.Passed)
	assert.Equal(t, models.Long, res.Direction)

	// Пробой всего на 0.5%, ниже порога
	s2 := flatState(25, 100, 10)
	s2.Update(&models.Candle{
		OpenTime: testBase.Add(25 * 5 * time.Minute),
		Open:     100, High: 101, Low: 100, Close: 100.5, Volume: 10,
	})
	res = RangeBreak{}.Evaluate(testContext(s2))
	assert.False(t, res.Passed)
}

func TestCandleBodyGate(t *testing.T) {
	s := flatState(5, 100, 10)
	ctx := testContext(s)

	// Полнотелая свеча: тело 80% размаха
	s.Update(&models.Candle{
		OpenTime: testBase.Add(5 * 5 * time.Minute),
		Open:     100, High: 102.1, Low: 99.9, Close: 102, Volume: 10,
	})
	res := CandleBody{}.Evaluate(ctx)
	require.True(t, res.Gate)
	assert.True(t, res.Passed)

	// Свеча с длинными тенями: тело меньше 60%
	s.Update(&models.Candle{
		OpenTime: testBase.Add(6 * 5 * time.Minute),
		Open:     100, High: 104, Low: 98, Close: 101, Volume: 10,
	})
	res = CandleBody{}.Evaluate(ctx)
	assert.False(t, res.Passed)
}

func TestCandleBodyZeroRangeFails(t *testing.T) {
	// Доджи без размаха не проходит гейт
	s := flatState(5, 100, 10)
	res := CandleBody{}.Evaluate(testContext(s))
	require.False(t, res.Abstained)
	assert.False(t, res.Passed)
}

func TestVolumeSurge(t *testing.T) {
	s := flatState(5, 100, 10)
	ctx := testContext(s)

	// Объем втрое выше средней при множителе 2.5
	s.Update(&models.Candle{
		OpenTime: testBase.Add(5 * 5 * time.Minute),
		Open:     100, High: 101, Low: 100, Close: 101, Volume: 30,
	})
	res := VolumeSurge{}.Evaluate(ctx)
	require.False(t, res.Abstained)
	assert.True(t, res.Passed)
	assert.InDelta(t, 3.0, res.Value, 1e-9)

	// Обычный объем
	s.Update(&models.Candle{
		OpenTime: testBase.Add(6 * 5 * time.Minute),
		Open:     101, High: 102, Low: 101, Close: 102, Volume: 12,
	})
	res = VolumeSurge{}.Evaluate(ctx)
	assert.False(t, res.Passed)
}

func TestVolumeDivergenceGate(t *testing.T) {
	s := flatState(5, 100, 10)
	ctx := testContext(s)

	// Цена выросла при падающем объеме: расхождение блокирует
	s.Update(&models.Candle{
		OpenTime: testBase.Add(5 * 5 * time.Minute),
		Open:     100, High: 102, Low: 100, Close: 102, Volume: 5,
	})
	res := VolumeDivergence{}.Evaluate(ctx)
	require.True(t, res.Gate)
	assert.False(t, res.Passed)

	// Рост цены на растущем объеме проходит
	s.Update(&models.Candle{
		OpenTime: testBase.Add(6 * 5 * time.Minute),
		Open:     102, High: 104, Low: 102, Close: 104, Volume: 20,
	})
	res = VolumeDivergence{}.Evaluate(ctx)
	assert.True(t, res.Passed)
}

func TestCVDPressure(t *testing.T) {
	s := flatState(5, 100, 10)
	ctx := testContext(s)

	// 70% объема в покупках
	ctx.Snapshot.Trades = []*models.Trade{
		{Side: models.Buy, Size: 7, Price: 100, Timestamp: ctx.Now},
		{Side: models.Sell, Size: 3, Price: 100, Timestamp: ctx.Now},
	}
	res := CVDPressure{}.Evaluate(ctx)
	assert.True(t, res.Passed)
	assert.Equal(t, models.Long, res.Direction)

	// 70% в продажах
	ctx.Snapshot.Trades = []*models.Trade{
		{Side: models.Buy, Size: 3, Price: 100, Timestamp: ctx.Now},
		{Side: models.Sell, Size: 7, Price: 100, Timestamp: ctx.Now},
	}
	res = CVDPressure{}.Evaluate(ctx)
	assert.True(t, res.Passed)
	assert.Equal(t, models.Short, res.Direction)

	// Равновесие 50/50 не голосует
	ctx.Snapshot.Trades = []*models.Trade{
		{Side: models.Buy, Size: 5, Price: 100, Timestamp: ctx.Now},
		{Side: models.Sell, Size: 5, Price: 100, Timestamp: ctx.Now},
	}
	res = CVDPressure{}.Evaluate(ctx)
	assert.False(t, res.Passed)
	assert.Equal(t, models.Neutral, res.Direction)
}

func TestCVDPressureAbstainsWithoutTrades(t *testing.T) {
	s := flatState(5, 100, 10)
	res := CVDPressure{}.Evaluate(testContext(s))
	assert.True(t, res.Abstained)
}

// book строит стакан с равномерными уровнями вокруг цены 100
func book(bidSizes, askSizes []float64) *models.OrderBook {
	ob := &models.OrderBook{Symbol: "BTCUSDT", Timestamp: testBase}
	for i, sz := range bidSizes {
		ob.Bids = append(ob.Bids, models.OrderBookLevel{Price: 99.99 - float64(i)*0.01, Size: sz})
	}
	for i, sz := range askSizes {
		ob.Asks = append(ob.Asks, models.OrderBookLevel{Price: 100.01 + float64(i)*0.01, Size: sz})
	}
	return ob
}

func TestImbalance(t *testing.T) {
	s := flatState(5, 100, 10)
	ctx := testContext(s)

	// Биды в восемь раз тяжелее асков: дисбаланс выше 0.4
	ctx.Snapshot.OrderBook = book(
		[]float64{8, 8, 8, 8, 8},
		[]float64{1, 1, 1, 1, 1},
	)
	res := Imbalance{}.Evaluate(ctx)
	require.False(t, res.Abstained)
	assert.True(t, res.Passed)
	assert.Equal(t, models.Long, res.Direction)
	assert.Greater(t, res.Value, 0.4)

	// Перевес в асках дает шорт
	ctx.Snapshot.OrderBook = book(
		[]float64{1, 1, 1, 1, 1},
		[]float64{8, 8, 8, 8, 8},
	)
	res = Imbalance{}.Evaluate(ctx)
	assert.True(t, res.Passed)
	assert.Equal(t, models.Short, res.Direction)

	// Сбалансированный стакан не голосует
	ctx.Snapshot.OrderBook = book(
		[]float64{5, 5, 5, 5, 5},
		[]float64{5, 5, 5, 5, 5},
	)
	res = Imbalance{}.Evaluate(ctx)
	assert.False(t, res.Passed)
	assert.Equal(t, models.Neutral, res.Direction)
}

func TestImbalanceAbstainsWithoutBook(t *testing.T) {
	s := flatState(5, 100, 10)
	res := Imbalance{}.Evaluate(testContext(s))
	assert.True(t, res.Abstained)
}

func TestSpoofingDetection(t *testing.T) {
	s := flatState(5, 100, 10)
	ctx := testContext(s)

	// Чистый стакан
	ctx.Snapshot.OrderBook = book(
		[]float64{5, 5, 5, 5, 5},
		[]float64{5, 5, 5, 5, 5},
	)
	res := SpoofingClean{}.Evaluate(ctx)
	assert.True(t, res.Passed)

	// Огромная заявка дальше 2% от середины: объем выше 30% ближней глубины
	ob := book(
		[]float64{5, 5, 5, 5, 5},
		[]float64{5, 5, 5, 5, 5},
	)
	ob.Bids = append(ob.Bids, models.OrderBookLevel{Price: 95, Size: 500})
	ctx.Snapshot.OrderBook = ob
	res = SpoofingClean{}.Evaluate(ctx)
	assert.False(t, res.Passed)
}

func TestSpoofingDiscountedFromImbalance(t *testing.T) {
	s := flatState(5, 100, 10)
	ctx := testContext(s)

	// Без спуф-заявки стакан сбалансирован; гигантский бид на отшибе
	// не должен перевесить дисбаланс в лонг
	ob := book(
		[]float64{5, 5, 5, 5, 5},
		[]float64{5, 5, 5, 5, 5},
	)
	ob.Bids = append(ob.Bids, models.OrderBookLevel{Price: 95, Size: 500})
	ctx.Snapshot.OrderBook = ob

	res := Imbalance{}.Evaluate(ctx)
	assert.False(t, res.Passed)
	assert.Equal(t, models.Neutral, res.Direction)
}

func TestSpreadGate(t *testing.T) {
	s := flatState(5, 100, 10)
	ctx := testContext(s)

	// Спред 0.02% при пороге 0.3%
	ctx.Snapshot.OrderBook = book([]float64{5}, []float64{5})
	res := Spread{}.Evaluate(ctx)
	require.True(t, res.Gate)
	assert.True(t, res.Passed)

	// Широкий спред: бид 99, аск 100
	ctx.Snapshot.OrderBook = &models.OrderBook{
		Symbol: "BTCUSDT",
		Bids:   []models.OrderBookLevel{{Price: 99, Size: 5}},
		Asks:   []models.OrderBookLevel{{Price: 100, Size: 5}},
	}
	res = Spread{}.Evaluate(ctx)
	assert.False(t, res.Passed)
}

func TestWhaleActivity(t *testing.T) {
	s := flatState(5, 100, 10)
	ctx := testContext(s)

	// Покупка на $20000 внутри окна
	ctx.Snapshot.Trades = []*models.Trade{
		{Side: models.Buy, Size: 200, Price: 100, Timestamp: ctx.Now.Add(-time.Minute)},
		{Side: models.Sell, Size: 1, Price: 100, Timestamp: ctx.Now.Add(-time.Minute)},
	}
	res := Whale{}.Evaluate(ctx)
	assert.True(t, res.Passed)
	assert.Equal(t, models.Long, res.Direction)

	// Крупная сделка вне пятиминутного окна не считается
	ctx.Snapshot.Trades = []*models.Trade{
		{Side: models.Buy, Size: 200, Price: 100, Timestamp: ctx.Now.Add(-10 * time.Minute)},
	}
	res = Whale{}.Evaluate(ctx)
	assert.False(t, res.Passed)

	// Мелкие сделки не считаются
	ctx.Snapshot.Trades = []*models.Trade{
		{Side: models.Buy, Size: 10, Price: 100, Timestamp: ctx.Now.Add(-time.Minute)},
	}
	res = Whale{}.Evaluate(ctx)
	assert.False(t, res.Passed)
}

// trendCandles строит серию свечей с линейным движением цены
func trendCandles(n int, start, step float64) []*models.Candle {
	out := make([]*models.Candle, n)
	for i := 0; i < n; i++ {
		p := start + float64(i)*step
		out[i] = &models.Candle{
			OpenTime: testBase.Add(time.Duration(i) * 5 * time.Minute),
			Open:     p, High: p, Low: p, Close: p, Volume: 10,
		}
	}
	return out
}

func TestTrendDirection(t *testing.T) {
	s := flatState(5, 100, 10)
	ctx := testContext(s)

	// Устойчивый рост: короткая EMA выше длинной, цена выше длинной
	ctx.Snapshot.Candles = trendCandles(40, 100, 1)
	res := Trend{}.Evaluate(ctx)
	require.False(t, res.Abstained)
	assert.True(t, res.Passed)
	assert.Equal(t, models.Long, res.Direction)

	// Устойчивое падение
	ctx.Snapshot.Candles = trendCandles(40, 140, -1)
	res = Trend{}.Evaluate(ctx)
	assert.True(t, res.Passed)
	assert.Equal(t, models.Short, res.Direction)
}

func TestTrendAbstainsWithoutHistory(t *testing.T) {
	s := flatState(5, 100, 10)
	ctx := testContext(s)
	ctx.Snapshot.Candles = trendCandles(10, 100, 1)
	res := Trend{}.Evaluate(ctx)
	assert.True(t, res.Abstained)
}

func TestRSICapBlocksOverheatedLong(t *testing.T) {
	s := flatState(5, 100, 10)
	ctx := testContext(s)
	ctx.Candidate = models.Long

	// Непрерывный рост загоняет RSI к 100
	ctx.Snapshot.Candles = trendCandles(30, 100, 2)
	res := RSICap{}.Evaluate(ctx)
	require.True(t, res.Gate)
	assert.False(t, res.Passed)
	assert.Greater(t, res.Value, 75.0)

	// Для шорта перегретый RSI не помеха
	ctx.Candidate = models.Short
	res = RSICap{}.Evaluate(ctx)
	assert.True(t, res.Passed)
}

func TestRSICapBlocksOversoldShort(t *testing.T) {
	s := flatState(5, 100, 10)
	ctx := testContext(s)
	ctx.Candidate = models.Short

	ctx.Snapshot.Candles = trendCandles(30, 200, -2)
	res := RSICap{}.Evaluate(ctx)
	assert.False(t, res.Passed)
	assert.Less(t, res.Value, 25.0)
}

func TestNewCoinGate(t *testing.T) {
	s := flatState(5, 100, 10)
	ctx := testContext(s)

	// Зрелый символ: 30 дневных свечей
	ctx.Snapshot.DailyCandles = trendCandles(30, 100, 0)
	res := NewCoin{}.Evaluate(ctx)
	assert.True(t, res.Passed)

	// Свежий листинг: три дня истории
	ctx.Snapshot.DailyCandles = trendCandles(3, 100, 0)
	res = NewCoin{}.Evaluate(ctx)
	assert.False(t, res.Passed)

	// Нет дневных данных: воздержание, не блокировка
	ctx.Snapshot.DailyCandles = nil
	res = NewCoin{}.Evaluate(ctx)
	assert.True(t, res.Abstained)
}

func TestLiquiditySupport(t *testing.T) {
	s := flatState(5, 100, 10)
	ctx := testContext(s)

	// Глубина покупок вчетверо выше при пороге 3x
	ctx.Snapshot.OrderBook = book(
		[]float64{20, 20, 20, 20},
		[]float64{5, 5, 5, 5},
	)
	res := Liquidity{}.Evaluate(ctx)
	assert.True(t, res.Passed)
	assert.Equal(t, models.Long, res.Direction)

	// Перевес продаж дает шорт
	ctx.Snapshot.OrderBook = book(
		[]float64{5, 5, 5, 5},
		[]float64{20, 20, 20, 20},
	)
	res = Liquidity{}.Evaluate(ctx)
	assert.True(t, res.Passed)
	assert.Equal(t, models.Short, res.Direction)

	// Соотношение 2x ниже порога
	ctx.Snapshot.OrderBook = book(
		[]float64{10, 10, 10, 10},
		[]float64{5, 5, 5, 5},
	)
	res = Liquidity{}.Evaluate(ctx)
	assert.False(t, res.Passed)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	s := flatState(25, 100, 10)
	s.Update(&models.Candle{
		OpenTime: testBase.Add(25 * 5 * time.Minute),
		Open:     100, High: 103, Low: 100, Close: 102.5, Volume: 30,
	})
	ctx := testContext(s)
	ctx.Snapshot.OrderBook = book([]float64{8, 8, 8}, []float64{1, 1, 1})

	for _, f := range Contributory(ctx.Config) {
		first := f.Evaluate(ctx)
		second := f.Evaluate(ctx)
		assert.Equal(t, first, second, "фильтр %s", f.Name())
	}
}

func TestContributoryAndGatesSplit(t *testing.T) {
	cfg := &config.Default().Filters

	contributory := Contributory(cfg)
	gates := Gates(cfg)

	assert.Len(t, contributory, 9)
	assert.Len(t, gates, 5)
	for _, f := range contributory {
		assert.False(t, f.Gate(), "фильтр %s", f.Name())
	}
	for _, f := range gates {
		assert.True(t, f.Gate(), "фильтр %s", f.Name())
	}
}

func TestDisabledFilterExcluded(t *testing.T) {
	cfg := &config.Default().Filters
	cfg.Breakout.Enabled = false
	cfg.RSI.Enabled = false

	assert.Len(t, Contributory(cfg), 8)
	assert.Len(t, Gates(cfg), 4)
}
