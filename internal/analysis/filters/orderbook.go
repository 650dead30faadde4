package filters

import (
	"fmt"

	"github.com/skalibog/bmse/internal/config"
	"github.com/skalibog/bmse/pkg/models"
)

// depthVolume суммирует размер первых depth уровней
func depthVolume(levels []models.OrderBookLevel, depth int) float64 {
	if depth > len(levels) {
		depth = len(levels)
	}
	var total float64
	for i := 0; i < depth; i++ {
		total += levels[i].Size
	}
	return total
}

// suspectVolume возвращает объем крупных заявок вдали от середины стакана.
// Крупная заявка далеко от цены — типичный след спуфинга, такие уровни
// исключаются из расчета дисбаланса.
func suspectVolume(levels []models.OrderBookLevel, mid float64, bid bool, cfg *config.FiltersConfig) float64 {
	near := depthVolume(levels, cfg.Imbalance.Depth)
	if near <= 0 || mid <= 0 {
		return 0
	}

	var far float64
	for _, lvl := range levels {
		var devPct float64
		if bid {
			devPct = (mid - lvl.Price) / mid * 100
		} else {
			devPct = (lvl.Price - mid) / mid * 100
		}
		if devPct > cfg.Spoofing.FarPricePct {
			far += lvl.Size
		}
	}

	if far > near*cfg.Spoofing.FarVolumeRatio {
		return far
	}
	return 0
}

// Imbalance оценивает дисбаланс спроса и предложения по верхним уровням
// стакана. Подозрительные на спуфинг объемы не учитываются.
type Imbalance struct{}

func (Imbalance) Name() string { return NameImbalance }
func (Imbalance) Gate() bool   { return false }

func (Imbalance) Evaluate(ctx Context) models.FilterResult {
	cfg := ctx.Config.Imbalance
	ob := orderBook(ctx)
	if ob == nil {
		return abstain(NameImbalance, false, cfg.Weight, "нет стакана")
	}

	mid := ob.MidPrice()
	bidVolume := depthVolume(ob.Bids, cfg.Depth)
	askVolume := depthVolume(ob.Asks, cfg.Depth)

	if ctx.Config.Spoofing.Enabled {
		bidVolume -= suspectVolume(ob.Bids, mid, true, ctx.Config)
		askVolume -= suspectVolume(ob.Asks, mid, false, ctx.Config)
		if bidVolume < 0 {
			bidVolume = 0
		}
		if askVolume < 0 {
			askVolume = 0
		}
	}

	total := bidVolume + askVolume
	if total <= 0 {
		return abstain(NameImbalance, false, cfg.Weight, "пустой стакан")
	}

	imbalance := (bidVolume - askVolume) / total

	dir := models.Neutral
	passed := false
	switch {
	case imbalance >= cfg.Threshold:
		dir = models.Long
		passed = true
	case imbalance <= -cfg.Threshold:
		dir = models.Short
		passed = true
	}

	return models.FilterResult{
		Name:      NameImbalance,
		Passed:    passed,
		Weight:    cfg.Weight,
		Direction: dir,
		Value:     imbalance,
		Detail:    fmt.Sprintf("imbalance=%.2f порог=%.2f", imbalance, cfg.Threshold),
	}
}

// SpoofingClean проходит, когда в стакане нет следов спуфинга.
// Чистый стакан добавляет уверенности сигналу, грязный лишь не дает бонуса.
type SpoofingClean struct{}

func (SpoofingClean) Name() string { return NameSpoofing }
func (SpoofingClean) Gate() bool   { return false }

func (SpoofingClean) Evaluate(ctx Context) models.FilterResult {
	cfg := ctx.Config.Spoofing
	ob := orderBook(ctx)
	if ob == nil {
		return abstain(NameSpoofing, false, cfg.Weight, "нет стакана")
	}

	mid := ob.MidPrice()
	suspectBids := suspectVolume(ob.Bids, mid, true, ctx.Config)
	suspectAsks := suspectVolume(ob.Asks, mid, false, ctx.Config)
	clean := suspectBids == 0 && suspectAsks == 0

	return models.FilterResult{
		Name:      NameSpoofing,
		Passed:    clean,
		Weight:    cfg.Weight,
		Direction: models.Neutral,
		Detail:    fmt.Sprintf("suspect_bids=%.2f suspect_asks=%.2f", suspectBids, suspectAsks),
	}
}

// Spread проверяет узость спреда между лучшим бидом и аском
type Spread struct{}

func (Spread) Name() string { return NameSpread }
func (Spread) Gate() bool   { return true }

func (Spread) Evaluate(ctx Context) models.FilterResult {
	cfg := ctx.Config.Spread
	ob := orderBook(ctx)
	if ob == nil {
		return abstain(NameSpread, true, cfg.Weight, "нет стакана")
	}

	bid, okBid := ob.BestBid()
	ask, okAsk := ob.BestAsk()
	mid := ob.MidPrice()
	if !okBid || !okAsk || mid <= 0 {
		return abstain(NameSpread, true, cfg.Weight, "пустой стакан")
	}

	spreadPct := (ask.Price - bid.Price) / mid * 100
	return models.FilterResult{
		Name:      NameSpread,
		Passed:    spreadPct < cfg.MaxPct,
		Gate:      true,
		Weight:    cfg.Weight,
		Direction: models.Neutral,
		Value:     spreadPct,
		Detail:    fmt.Sprintf("spread=%.3f%% порог=%.2f%%", spreadPct, cfg.MaxPct),
	}
}

// Liquidity проверяет поддержку ликвидности в направлении кандидата:
// глубина покупок в пределах узкого диапазона от середины должна кратно
// превышать глубину продаж (для лонга; для шорта наоборот)
type Liquidity struct{}

func (Liquidity) Name() string { return NameLiquidity }
func (Liquidity) Gate() bool   { return false }

func (Liquidity) Evaluate(ctx Context) models.FilterResult {
	cfg := ctx.Config.Liquidity
	ob := orderBook(ctx)
	if ob == nil {
		return abstain(NameLiquidity, false, cfg.Weight, "нет стакана")
	}

	mid := ob.MidPrice()
	if mid <= 0 {
		return abstain(NameLiquidity, false, cfg.Weight, "пустой стакан")
	}

	band := mid * cfg.RangePct / 100

	var buyDepth, sellDepth float64
	for _, b := range ob.Bids {
		if mid-b.Price <= band {
			buyDepth += b.Size
		}
	}
	for _, a := range ob.Asks {
		if a.Price-mid <= band {
			sellDepth += a.Size
		}
	}

	dir := models.Neutral
	passed := false
	var ratio float64
	switch {
	case sellDepth > 0 && buyDepth/sellDepth >= cfg.RatioThreshold:
		dir = models.Long
		passed = true
		ratio = buyDepth / sellDepth
	case buyDepth > 0 && sellDepth/buyDepth >= cfg.RatioThreshold:
		dir = models.Short
		passed = true
		ratio = sellDepth / buyDepth
	case sellDepth == 0 && buyDepth > 0:
		dir = models.Long
		passed = true
	case buyDepth == 0 && sellDepth > 0:
		dir = models.Short
		passed = true
	}

	return models.FilterResult{
		Name:      NameLiquidity,
		Passed:    passed,
		Weight:    cfg.Weight,
		Direction: dir,
		Detail:    fmt.Sprintf("buy_depth=%.2f sell_depth=%.2f ratio=%.2f", buyDepth, sellDepth, ratio),
	}
}

// orderBook возвращает стакан из среза данных, nil если его нет
func orderBook(ctx Context) *models.OrderBook {
	if ctx.Snapshot == nil {
		return nil
	}
	return ctx.Snapshot.OrderBook
}
