// Package gate решает, эмитировать ли сигнал, и подавляет дубликаты
// окном тишины для символа.
package gate

import (
	"time"

	"go.uber.org/zap"

	"github.com/skalibog/bmse/internal/analysis/confluence"
	"github.com/skalibog/bmse/internal/state"
	"github.com/skalibog/bmse/pkg/logger"
)

// State состояние автомата для символа
type State int

const (
	StateIdle State = iota
	StateCandidate
	StateEmitted
	StateCooldown
)

// String возвращает текстовое представление состояния
func (s State) String() string {
	switch s {
	case StateCandidate:
		return "CANDIDATE"
	case StateEmitted:
		return "EMITTED"
	case StateCooldown:
		return "COOLDOWN"
	default:
		return "IDLE"
	}
}

// Gate автомат эмиссии: IDLE -> CANDIDATE -> EMITTED -> COOLDOWN -> IDLE.
// CANDIDATE переходное состояние внутри одного цикла.
type Gate struct {
	threshold float64
	cooldown  time.Duration
}

// New создает гейт с порогом силы и окном тишины
func New(threshold float64, cooldown time.Duration) *Gate {
	return &Gate{threshold: threshold, cooldown: cooldown}
}

// Current возвращает текущее состояние символа между циклами
func (g *Gate) Current(st *state.SymbolState, now time.Time) State {
	if st.InCooldown(now) {
		return StateCooldown
	}
	return StateIdle
}

// ShouldScore сообщает, нужно ли вообще считать фильтры для символа.
// В окне тишины оценка пропускается целиком: это гарантирует не больше
// одного сигнала на символ за окно и экономит цикл.
func (g *Gate) ShouldScore(st *state.SymbolState, now time.Time) bool {
	return !st.InCooldown(now)
}

// Decide принимает решение об эмиссии по результату свертки.
// Возвращает true ровно тогда, когда сигнал нужно построить и отправить;
// при этом состояние символа переводится в COOLDOWN.
func (g *Gate) Decide(st *state.SymbolState, outcome confluence.Outcome, now time.Time) bool {
	if st.InCooldown(now) {
		return false
	}
	if outcome.Vetoed || outcome.Strength < g.threshold {
		logger.Debug("Кандидат отклонен",
			zap.String("symbol", st.Symbol()),
			zap.Bool("vetoed", outcome.Vetoed),
			zap.Float64("strength", outcome.Strength))
		return false
	}

	st.MarkSignal(now, g.cooldown)
	logger.Debug("Гейт пропустил сигнал",
		zap.String("symbol", st.Symbol()),
		zap.String("direction", outcome.Direction.String()),
		zap.Float64("strength", outcome.Strength),
		zap.Time("cooldown_until", st.CooldownUntil()))
	return true
}
