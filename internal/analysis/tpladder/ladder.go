// Package tpladder строит лестницу тейк-профитов от цены входа.
package tpladder

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/skalibog/bmse/pkg/models"
)

// Цены уровней округляются до шести знаков
const pricePrecision = 6

// Generate строит уровни тейк-профита: TP_i = entry * (1 ± m_i/100),
// знак по направлению сигнала. Множители обязаны строго возрастать —
// это проверяет валидация конфигурации, не генератор.
func Generate(entry float64, direction models.Direction, multipliers, distribution []float64) ([]models.TPLevel, error) {
	if entry <= 0 {
		return nil, fmt.Errorf("некорректная цена входа: %.6f", entry)
	}
	if direction == models.Neutral {
		return nil, fmt.Errorf("нейтральное направление не имеет лестницы тейк-профитов")
	}
	if len(multipliers) == 0 || len(multipliers) != len(distribution) {
		return nil, fmt.Errorf("множители и распределение не согласованы: %d против %d", len(multipliers), len(distribution))
	}

	entryDec := decimal.NewFromFloat(entry)
	hundred := decimal.NewFromInt(100)

	levels := make([]models.TPLevel, len(multipliers))
	for i, m := range multipliers {
		frac := decimal.NewFromFloat(m).Div(hundred)
		var factor decimal.Decimal
		if direction == models.Long {
			factor = decimal.NewFromInt(1).Add(frac)
		} else {
			factor = decimal.NewFromInt(1).Sub(frac)
		}

		price := entryDec.Mul(factor).Round(pricePrecision)
		if !price.IsPositive() {
			return nil, fmt.Errorf("множитель %.2f%% дает неположительную цену для шорта от %.6f", m, entry)
		}

		pf, _ := price.Float64()
		levels[i] = models.TPLevel{
			Price:      pf,
			CumPercent: distribution[i],
		}
	}

	return levels, nil
}
