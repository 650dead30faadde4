package filters

import (
	"fmt"

	"github.com/skalibog/bmse/pkg/models"
)

// VolumeSurge проверяет всплеск объема последней свечи относительно
// скользящей средней предыдущих свечей
type VolumeSurge struct{}

func (VolumeSurge) Name() string { return NameVolumeSurge }
func (VolumeSurge) Gate() bool   { return false }

func (VolumeSurge) Evaluate(ctx Context) models.FilterResult {
	cfg := ctx.Config.VolumeSurge
	last := ctx.State.Last()
	ma := ctx.State.TrailingVolumeMA()
	if last == nil || ma <= 0 {
		return abstain(NameVolumeSurge, false, cfg.Weight, "недостаточно данных для средней объема")
	}

	ratio := last.Volume / ma
	return models.FilterResult{
		Name:      NameVolumeSurge,
		Passed:    ratio > cfg.Multiplier,
		Weight:    cfg.Weight,
		Direction: models.Neutral,
		Value:     ratio,
		Detail:    fmt.Sprintf("объем=%.2fx средней", ratio),
	}
}

// VolumeDivergence блокирует сигнал при расхождении цены и объема:
// цена растет, объем падает
type VolumeDivergence struct{}

func (VolumeDivergence) Name() string { return NameVolumeDivergence }
func (VolumeDivergence) Gate() bool   { return true }

func (VolumeDivergence) Evaluate(ctx Context) models.FilterResult {
	cfg := ctx.Config.VolumeDivergence
	if ctx.State.Len() < 2 {
		return abstain(NameVolumeDivergence, true, cfg.Weight, "недостаточно свечей")
	}

	last := ctx.State.Last()
	prev := ctx.State.At(ctx.State.Len() - 2)

	priceUp := last.Close > prev.Close
	volumeDown := last.Volume < prev.Volume
	diverged := priceUp && volumeDown

	return models.FilterResult{
		Name:      NameVolumeDivergence,
		Passed:    !diverged,
		Gate:      true,
		Weight:    cfg.Weight,
		Direction: models.Neutral,
		Detail:    fmt.Sprintf("price_up=%v volume_down=%v", priceUp, volumeDown),
	}
}

// CVDPressure оценивает давление по знаку дельты объемов в выборке сделок:
// преобладание покупок голосует за лонг, продаж — за шорт
type CVDPressure struct{}

func (CVDPressure) Name() string { return NameCVD }
func (CVDPressure) Gate() bool   { return false }

func (CVDPressure) Evaluate(ctx Context) models.FilterResult {
	cfg := ctx.Config.CVD
	if ctx.Snapshot == nil || len(ctx.Snapshot.Trades) == 0 {
		return abstain(NameCVD, false, cfg.Weight, "нет сделок")
	}

	var buy, total float64
	for _, t := range ctx.Snapshot.Trades {
		total += t.Size
		if t.Side == models.Buy {
			buy += t.Size
		}
	}
	if total <= 0 {
		return abstain(NameCVD, false, cfg.Weight, "нулевой объем сделок")
	}

	buyPressure := buy / total * 100

	dir := models.Neutral
	passed := false
	switch {
	case buyPressure > cfg.BuyPressureHigh:
		dir = models.Long
		passed = true
	case buyPressure < cfg.BuyPressureLow:
		dir = models.Short
		passed = true
	}

	return models.FilterResult{
		Name:      NameCVD,
		Passed:    passed,
		Weight:    cfg.Weight,
		Direction: dir,
		Detail:    fmt.Sprintf("buy_pressure=%.1f%% cvd=%.2f", buyPressure, ctx.State.CVD()),
	}
}
