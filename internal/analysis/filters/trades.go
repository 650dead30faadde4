package filters

import (
	"fmt"
	"time"

	"github.com/skalibog/bmse/pkg/models"
)

// Whale ищет крупные сделки в окне выборки: хотя бы одна сделка с
// номиналом выше порога считается активностью крупного участника,
// направление — по знаку чистого потока крупных сделок
type Whale struct{}

func (Whale) Name() string { return NameWhale }
func (Whale) Gate() bool   { return false }

func (Whale) Evaluate(ctx Context) models.FilterResult {
	cfg := ctx.Config.Whale
	if ctx.Snapshot == nil || len(ctx.Snapshot.Trades) == 0 {
		return abstain(NameWhale, false, cfg.Weight, "нет сделок")
	}

	cutoff := ctx.Now.Add(-time.Duration(cfg.WindowSeconds) * time.Second)

	var count int
	var buyFlow, sellFlow float64
	for _, t := range ctx.Snapshot.Trades {
		if t.Timestamp.Before(cutoff) || t.Notional() < cfg.NotionalUSD {
			continue
		}
		count++
		if t.Side == models.Buy {
			buyFlow += t.Notional()
		} else {
			sellFlow += t.Notional()
		}
	}

	netFlow := buyFlow - sellFlow
	dir := models.Neutral
	if count > 0 {
		if netFlow > 0 {
			dir = models.Long
		} else if netFlow < 0 {
			dir = models.Short
		}
	}

	return models.FilterResult{
		Name:      NameWhale,
		Passed:    count > 0 && dir != models.Neutral,
		Weight:    cfg.Weight,
		Direction: dir,
		Detail:    fmt.Sprintf("крупных сделок=%d net_flow=%.0f$", count, netFlow),
	}
}
