// Package filters содержит независимые предикаты рыночных условий.
// Каждый фильтр — чистая функция от среза данных, состояния символа и
// конфигурации; фильтры не мутируют общее состояние и отключаются по одному.
package filters

import (
	"time"

	"github.com/skalibog/bmse/internal/config"
	"github.com/skalibog/bmse/internal/state"
	"github.com/skalibog/bmse/pkg/models"
)

// Имена фильтров в результатах и сообщениях
const (
	NameBreakout         = "breakout"
	NameRangeBreak       = "range_break"
	NameCandleBody       = "candle_body"
	NameVolumeSurge      = "volume_surge"
	NameVolumeDivergence = "volume_divergence"
	NameCVD              = "cvd_pressure"
	NameImbalance        = "orderbook_imbalance"
	NameSpoofing         = "spoofing_clean"
	NameSpread           = "spread"
	NameWhale            = "whale_activity"
	NameTrend            = "trend_match"
	NameRSI              = "rsi_cap"
	NameNewCoin          = "new_coin"
	NameLiquidity        = "liquidity_support"
)

// Context входные данные одного вычисления фильтров.
// Candidate заполняется только для гейтов второй фазы, когда
// направление уже выбрано голосованием.
type Context struct {
	Snapshot  *models.Snapshot
	State     *state.SymbolState
	Config    *config.FiltersConfig
	Candidate models.Direction
	Now       time.Time
}

// Filter единый интерфейс предиката
type Filter interface {
	Name() string
	// Gate сообщает, является ли фильтр жестким вето:
	// провал гейта обнуляет силу сигнала независимо от остальных весов.
	Gate() bool
	Evaluate(ctx Context) models.FilterResult
}

// Contributory возвращает включенные взвешенные фильтры (не гейты)
func Contributory(cfg *config.FiltersConfig) []Filter {
	all := []struct {
		enabled bool
		f       Filter
	}{
		{cfg.Breakout.Enabled, Breakout{}},
		{cfg.RangeBreak.Enabled, RangeBreak{}},
		{cfg.VolumeSurge.Enabled, VolumeSurge{}},
		{cfg.CVD.Enabled, CVDPressure{}},
		{cfg.Imbalance.Enabled, Imbalance{}},
		{cfg.Spoofing.Enabled, SpoofingClean{}},
		{cfg.Whale.Enabled, Whale{}},
		{cfg.Trend.Enabled, Trend{}},
		{cfg.Liquidity.Enabled, Liquidity{}},
	}

	var out []Filter
	for _, e := range all {
		if e.enabled {
			out = append(out, e.f)
		}
	}
	return out
}

// Gates возвращает включенные гейты
func Gates(cfg *config.FiltersConfig) []Filter {
	all := []struct {
		enabled bool
		f       Filter
	}{
		{cfg.CandleBody.Enabled, CandleBody{}},
		{cfg.VolumeDivergence.Enabled, VolumeDivergence{}},
		{cfg.Spread.Enabled, Spread{}},
		{cfg.RSI.Enabled, RSICap{}},
		{cfg.NewCoin.Enabled, NewCoin{}},
	}

	var out []Filter
	for _, e := range all {
		if e.enabled {
			out = append(out, e.f)
		}
	}
	return out
}

// abstain возвращает результат воздержания: недоступные данные
// не засчитываются ни в числитель, ни в знаменатель веса
func abstain(name string, gate bool, weight float64, detail string) models.FilterResult {
	return models.FilterResult{
		Name:      name,
		Abstained: true,
		Gate:      gate,
		Weight:    weight,
		Direction: models.Neutral,
		Detail:    detail,
	}
}
