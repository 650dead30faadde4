// Package confluence сводит результаты фильтров в силу сигнала 0-100
// и направление. Направление выбирается голосованием направленных
// фильтров, гейты действуют как жесткое вето.
package confluence

import (
	"github.com/skalibog/bmse/internal/analysis/filters"
	"github.com/skalibog/bmse/pkg/models"
)

// Outcome результат свертки фильтров за цикл
type Outcome struct {
	Direction models.Direction
	Strength  float64
	Results   []models.FilterResult
	Vetoed    bool
	VetoedBy  []string
}

// Passed возвращает имена прошедших фильтров
func (o *Outcome) Passed() []string {
	var names []string
	for _, r := range o.Results {
		if !r.Abstained && r.Passed {
			names = append(names, r.Name)
		}
	}
	return names
}

// Result возвращает результат фильтра по имени
func (o *Outcome) Result(name string) (models.FilterResult, bool) {
	for _, r := range o.Results {
		if r.Name == name {
			return r, true
		}
	}
	return models.FilterResult{}, false
}

// Score вычисляет направление и силу сигнала по срезу данных.
// Воздержавшиеся фильтры не участвуют ни в числителе, ни в знаменателе.
func Score(ctx filters.Context) Outcome {
	contributory := evaluate(filters.Contributory(ctx.Config), ctx)

	// Голосование направленных фильтров: без явного большинства
	// сигнала в этом цикле нет
	var longVotes, shortVotes int
	for _, r := range contributory {
		if r.Abstained || !r.Passed {
			continue
		}
		switch r.Direction {
		case models.Long:
			longVotes++
		case models.Short:
			shortVotes++
		}
	}

	direction := models.Neutral
	switch {
	case longVotes > shortVotes:
		direction = models.Long
	case shortVotes > longVotes:
		direction = models.Short
	}

	if direction == models.Neutral {
		return Outcome{Direction: models.Neutral, Results: contributory}
	}

	// Гейты вычисляются после выбора направления: RSI-кап вето
	// зависит от того, лонг это или шорт
	gateCtx := ctx
	gateCtx.Candidate = direction
	gates := evaluate(filters.Gates(ctx.Config), gateCtx)

	results := append(contributory, gates...)

	var vetoedBy []string
	for _, r := range gates {
		if !r.Abstained && !r.Passed {
			vetoedBy = append(vetoedBy, r.Name)
		}
	}

	if len(vetoedBy) > 0 {
		return Outcome{
			Direction: direction,
			Strength:  0,
			Results:   results,
			Vetoed:    true,
			VetoedBy:  vetoedBy,
		}
	}

	// Взвешивание: участвуют фильтры, голосующие за выбранное направление
	// или нейтральные; прошедшие за противоположное направление исключены —
	// их несогласие уже учтено голосованием
	var numerator, denominator float64
	for _, r := range results {
		if r.Abstained {
			continue
		}
		if r.Direction == direction.Opposite() {
			continue
		}
		denominator += r.Weight
		if r.Passed {
			numerator += r.Weight
		}
	}

	if denominator <= 0 {
		return Outcome{Direction: models.Neutral, Results: results}
	}

	strength := numerator / denominator * 100
	if strength < 0 {
		strength = 0
	}
	if strength > 100 {
		strength = 100
	}

	return Outcome{
		Direction: direction,
		Strength:  strength,
		Results:   results,
	}
}

func evaluate(fs []filters.Filter, ctx filters.Context) []models.FilterResult {
	results := make([]models.FilterResult, 0, len(fs))
	for _, f := range fs {
		results = append(results, f.Evaluate(ctx))
	}
	return results
}
