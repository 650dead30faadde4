package confluence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skalibog/bmse/internal/analysis/filters"
	"github.com/skalibog/bmse/internal/config"
	"github.com/skalibog/bmse/internal/state"
	"github.com/skalibog/bmse/pkg/models"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func candle(i int, open, high, low, close, volume float64) *models.Candle {
	return &models.Candle{
		Symbol:   "BTCUSDT",
		OpenTime: base.Add(time.Duration(i) * 5 * time.Minute),
		Open:     open, High: high, Low: low, Close: close, Volume: volume,
	}
}

// breakoutState: плоская история и полнотелая пробойная свеча с
// трехкратным объемом
func breakoutState() *state.SymbolState {
	s := state.NewSymbolState("BTCUSDT", 50, 5)
	for i := 0; i < 25; i++ {
		s.Update(candle(i, 100, 100, 100, 100, 10))
	}
	s.Update(candle(25, 100, 103, 100, 102.9, 30))
	return s
}

// zigzagCandles: рост с откатами, RSI держится около 67
func zigzagCandles(n int) []*models.Candle {
	out := make([]*models.Candle, n)
	price := 100.0
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			price += 2
		} else {
			price -= 1
		}
		out[i] = candle(i, price, price, price, price, 10)
	}
	return out
}

// risingCandles: монотонный рост, RSI уходит к 100
func risingCandles(n int) []*models.Candle {
	out := make([]*models.Candle, n)
	for i := 0; i < n; i++ {
		p := 100 + float64(i)*2
		out[i] = candle(i, p, p, p, p, 10)
	}
	return out
}

func heavyBidBook() *models.OrderBook {
	ob := &models.OrderBook{Symbol: "BTCUSDT", Timestamp: base}
	for i := 0; i < 5; i++ {
		ob.Bids = append(ob.Bids, models.OrderBookLevel{Price: 99.99 - float64(i)*0.01, Size: 8})
		ob.Asks = append(ob.Asks, models.OrderBookLevel{Price: 100.01 + float64(i)*0.01, Size: 1})
	}
	return ob
}

func balancedBook() *models.OrderBook {
	ob := &models.OrderBook{Symbol: "BTCUSDT", Timestamp: base}
	for i := 0; i < 5; i++ {
		ob.Bids = append(ob.Bids, models.OrderBookLevel{Price: 99.99 - float64(i)*0.01, Size: 5})
		ob.Asks = append(ob.Asks, models.OrderBookLevel{Price: 100.01 + float64(i)*0.01, Size: 5})
	}
	return ob
}

// bullishContext: все четырнадцать фильтров дают лонг или проходят
func bullishContext() filters.Context {
	now := base.Add(3 * time.Hour)
	return filters.Context{
		Snapshot: &models.Snapshot{
			Symbol:       "BTCUSDT",
			Candles:      zigzagCandles(40),
			DailyCandles: risingCandles(30),
			OrderBook:    heavyBidBook(),
			Trades: []*models.Trade{
				{Side: models.Buy, Size: 200, Price: 100, Timestamp: now.Add(-time.Minute)},
				{Side: models.Buy, Size: 7, Price: 100, Timestamp: now.Add(-time.Minute)},
				{Side: models.Sell, Size: 3, Price: 100, Timestamp: now.Add(-time.Minute)},
			},
		},
		State:  breakoutState(),
		Config: &config.Default().Filters,
		Now:    now,
	}
}

func TestScoreBullishConfluence(t *testing.T) {
	outcome := Score(bullishContext())

	require.False(t, outcome.Vetoed)
	assert.Equal(t, models.Long, outcome.Direction)
	assert.GreaterOrEqual(t, outcome.Strength, 70.0)
	assert.LessOrEqual(t, outcome.Strength, 100.0)

	passed := outcome.Passed()
	assert.Contains(t, passed, filters.NameBreakout)
	assert.Contains(t, passed, filters.NameVolumeSurge)
	assert.Contains(t, passed, filters.NameWhale)
	assert.Contains(t, passed, filters.NameImbalance)
}

func TestScoreRSIVeto(t *testing.T) {
	ctx := bullishContext()
	// Перегретый рынок: RSI по монотонному росту равен 100
	ctx.Snapshot.Candles = risingCandles(40)

	outcome := Score(ctx)

	require.True(t, outcome.Vetoed)
	assert.Equal(t, models.Long, outcome.Direction)
	assert.Zero(t, outcome.Strength)
	assert.Contains(t, outcome.VetoedBy, filters.NameRSI)
}

func TestScoreNeutralWithoutVotes(t *testing.T) {
	s := state.NewSymbolState("BTCUSDT", 50, 5)
	for i := 0; i < 25; i++ {
		s.Update(candle(i, 100, 100, 100, 100, 10))
	}

	outcome := Score(filters.Context{
		Snapshot: &models.Snapshot{Symbol: "BTCUSDT"},
		State:    s,
		Config:   &config.Default().Filters,
		Now:      base.Add(3 * time.Hour),
	})

	assert.Equal(t, models.Neutral, outcome.Direction)
	assert.Zero(t, outcome.Strength)
	assert.False(t, outcome.Vetoed)
}

func TestScoreOppositeVoteExcludedFromWeights(t *testing.T) {
	now := base.Add(3 * time.Hour)
	ctx := filters.Context{
		Snapshot: &models.Snapshot{
			Symbol:       "BTCUSDT",
			Candles:      zigzagCandles(16), // мало для EMA, хватает для RSI
			DailyCandles: risingCandles(30),
			OrderBook:    balancedBook(),
			Trades: []*models.Trade{
				{Side: models.Buy, Size: 3, Price: 100, Timestamp: now.Add(-time.Minute)},
				{Side: models.Sell, Size: 7, Price: 100, Timestamp: now.Add(-time.Minute)},
			},
		},
		State:  breakoutState(),
		Config: &config.Default().Filters,
		Now:    now,
	}

	outcome := Score(ctx)

	// Лонг побеждает 2:1, прошедший шорт-голос CVD исключен из весов:
	// прошло 63 из 93 участвующих весов
	require.False(t, outcome.Vetoed)
	assert.Equal(t, models.Long, outcome.Direction)
	assert.InDelta(t, 63.0/93.0*100, outcome.Strength, 0.1)
}

func TestScoreTieProducesNoSignal(t *testing.T) {
	now := base.Add(3 * time.Hour)
	cfg := &config.Default().Filters
	// Остается ровно один лонг-голос (пробой) против одного шорт-голоса (CVD)
	cfg.RangeBreak.Enabled = false

	outcome := Score(filters.Context{
		Snapshot: &models.Snapshot{
			Symbol:  "BTCUSDT",
			Candles: zigzagCandles(16),
			Trades: []*models.Trade{
				{Side: models.Buy, Size: 3, Price: 100, Timestamp: now.Add(-time.Minute)},
				{Side: models.Sell, Size: 7, Price: 100, Timestamp: now.Add(-time.Minute)},
			},
		},
		State:  breakoutState(),
		Config: cfg,
		Now:    now,
	})

	assert.Equal(t, models.Neutral, outcome.Direction)
	assert.Zero(t, outcome.Strength)
}

func TestScoreVetoListsEveryFailedGate(t *testing.T) {
	ctx := bullishContext()
	ctx.Snapshot.Candles = risingCandles(40)
	// Свежий листинг: второй гейт тоже проваливается
	ctx.Snapshot.DailyCandles = risingCandles(3)

	outcome := Score(ctx)

	require.True(t, outcome.Vetoed)
	assert.Contains(t, outcome.VetoedBy, filters.NameRSI)
	assert.Contains(t, outcome.VetoedBy, filters.NameNewCoin)
}

func TestOutcomeResultLookup(t *testing.T) {
	outcome := Score(bullishContext())

	r, ok := outcome.Result(filters.NameRSI)
	require.True(t, ok)
	assert.Greater(t, r.Value, 0.0)

	_, ok = outcome.Result("nonexistent")
	assert.False(t, ok)
}
