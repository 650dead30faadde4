package filters

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"github.com/skalibog/bmse/pkg/models"
)

// closes извлекает цены закрытия в хронологическом порядке
func closes(candles []*models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Trend сверяет направление короткого таймфрейма с трендом EMA
// старшего таймфрейма: сигнал против старшего тренда не голосует
type Trend struct{}

func (Trend) Name() string { return NameTrend }
func (Trend) Gate() bool   { return false }

func (Trend) Evaluate(ctx Context) models.FilterResult {
	cfg := ctx.Config.Trend
	if ctx.Snapshot == nil || len(ctx.Snapshot.Candles) < cfg.EMALong+1 {
		return abstain(NameTrend, false, cfg.Weight, "недостаточно свечей старшего таймфрейма")
	}

	prices := closes(ctx.Snapshot.Candles)
	emaShort := talib.Ema(prices, cfg.EMAShort)
	emaLong := talib.Ema(prices, cfg.EMALong)
	lastShort := emaShort[len(emaShort)-1]
	lastLong := emaLong[len(emaLong)-1]

	// Цена короткого таймфрейма, при его отсутствии — закрытие старшего
	price := prices[len(prices)-1]
	if len(ctx.Snapshot.ShortCandles) > 0 {
		price = ctx.Snapshot.ShortCandles[len(ctx.Snapshot.ShortCandles)-1].Close
	}

	dir := models.Neutral
	switch {
	case lastShort > lastLong && price > lastLong:
		dir = models.Long
	case lastShort < lastLong && price < lastLong:
		dir = models.Short
	}

	return models.FilterResult{
		Name:      NameTrend,
		Passed:    dir != models.Neutral,
		Weight:    cfg.Weight,
		Direction: dir,
		Detail:    fmt.Sprintf("ema%d=%.6f ema%d=%.6f price=%.6f", cfg.EMAShort, lastShort, cfg.EMALong, lastLong, price),
	}
}

// RSICap ограничивает вход по перегретости: блокирует лонг при RSI выше
// верхней границы и шорт при RSI ниже нижней. Расчет по формуле Уайлдера
// на свечах старшего таймфрейма.
type RSICap struct{}

func (RSICap) Name() string { return NameRSI }
func (RSICap) Gate() bool   { return true }

func (RSICap) Evaluate(ctx Context) models.FilterResult {
	cfg := ctx.Config.RSI
	if ctx.Snapshot == nil || len(ctx.Snapshot.Candles) < cfg.Period+1 {
		return abstain(NameRSI, true, cfg.Weight, "недостаточно свечей для RSI")
	}

	rsi := talib.Rsi(closes(ctx.Snapshot.Candles), cfg.Period)
	lastRSI := rsi[len(rsi)-1]

	passed := true
	switch ctx.Candidate {
	case models.Long:
		passed = lastRSI <= cfg.Overbought
	case models.Short:
		passed = lastRSI >= cfg.Oversold
	}

	return models.FilterResult{
		Name:      NameRSI,
		Passed:    passed,
		Gate:      true,
		Weight:    cfg.Weight,
		Direction: models.Neutral,
		Value:     lastRSI,
		Detail:    fmt.Sprintf("rsi=%.1f границы=[%.0f,%.0f]", lastRSI, cfg.Oversold, cfg.Overbought),
	}
}

// NewCoin блокирует сигналы по недавно залистингованным символам:
// слишком короткая дневная история означает непредсказуемую ликвидность
type NewCoin struct{}

func (NewCoin) Name() string { return NameNewCoin }
func (NewCoin) Gate() bool   { return true }

func (NewCoin) Evaluate(ctx Context) models.FilterResult {
	cfg := ctx.Config.NewCoin
	if ctx.Snapshot == nil || len(ctx.Snapshot.DailyCandles) == 0 {
		return abstain(NameNewCoin, true, cfg.Weight, "нет дневной истории")
	}

	days := len(ctx.Snapshot.DailyCandles)
	return models.FilterResult{
		Name:      NameNewCoin,
		Passed:    days >= cfg.MinAgeDays,
		Gate:      true,
		Weight:    cfg.Weight,
		Direction: models.Neutral,
		Detail:    fmt.Sprintf("возраст=%d дней минимум=%d", days, cfg.MinAgeDays),
	}
}
