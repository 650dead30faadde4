package filters

import (
	"fmt"

	"github.com/skalibog/bmse/pkg/models"
)

// Breakout проверяет закрытие последней свечи выше максимума
// скользящего окна предыдущих свечей
type Breakout struct{}

func (Breakout) Name() string { return NameBreakout }
func (Breakout) Gate() bool   { return false }

func (Breakout) Evaluate(ctx Context) models.FilterResult {
	cfg := ctx.Config.Breakout
	last := ctx.State.Last()
	if last == nil || ctx.State.Len() < cfg.Window+1 {
		return abstain(NameBreakout, false, cfg.Weight, "недостаточно свечей")
	}

	resistance := ctx.State.HighestHigh(cfg.Window)
	passed := resistance > 0 && last.Close > resistance

	dir := models.Neutral
	if passed {
		dir = models.Long
	}
	return models.FilterResult{
		Name:      NameBreakout,
		Passed:    passed,
		Weight:    cfg.Weight,
		Direction: dir,
		Detail:    fmt.Sprintf("close=%.6f resistance=%.6f", last.Close, resistance),
	}
}

// RangeBreak проверяет закрытие выше последнего локального максимума
// более чем на пороговый процент
type RangeBreak struct{}

func (RangeBreak) Name() string { return NameRangeBreak }
func (RangeBreak) Gate() bool   { return false }

func (RangeBreak) Evaluate(ctx Context) models.FilterResult {
	cfg := ctx.Config.RangeBreak
	last := ctx.State.Last()
	window := ctx.Config.Breakout.Window
	if last == nil || ctx.State.Len() < window+1 {
		return abstain(NameRangeBreak, false, cfg.Weight, "недостаточно свечей")
	}

	lastHigh := ctx.State.HighestHigh(window)
	if lastHigh <= 0 {
		return abstain(NameRangeBreak, false, cfg.Weight, "нет локального максимума")
	}

	breakPct := (last.Close - lastHigh) / lastHigh * 100
	passed := breakPct > cfg.ThresholdPct

	dir := models.Neutral
	if passed {
		dir = models.Long
	}
	return models.FilterResult{
		Name:      NameRangeBreak,
		Passed:    passed,
		Weight:    cfg.Weight,
		Direction: dir,
		Detail:    fmt.Sprintf("break=%.2f%% порог=%.2f%%", breakPct, cfg.ThresholdPct),
	}
}

// CandleBody отсеивает свечи с длинными тенями: тело должно занимать
// не меньше настроенной доли полного размаха
type CandleBody struct{}

func (CandleBody) Name() string { return NameCandleBody }
func (CandleBody) Gate() bool   { return true }

func (CandleBody) Evaluate(ctx Context) models.FilterResult {
	cfg := ctx.Config.CandleBody
	last := ctx.State.Last()
	if last == nil {
		return abstain(NameCandleBody, true, cfg.Weight, "нет свечей")
	}

	total := last.Range()
	if total <= 0 {
		return models.FilterResult{
			Name:      NameCandleBody,
			Passed:    false,
			Gate:      true,
			Weight:    cfg.Weight,
			Direction: models.Neutral,
			Detail:    "нулевой размах свечи",
		}
	}

	ratio := last.Body() / total
	return models.FilterResult{
		Name:      NameCandleBody,
		Passed:    ratio > cfg.MinBodyRatio,
		Gate:      true,
		Weight:    cfg.Weight,
		Direction: models.Neutral,
		Detail:    fmt.Sprintf("body/range=%.2f", ratio),
	}
}
