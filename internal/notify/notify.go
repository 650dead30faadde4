package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/skalibog/bmse/pkg/logger"
	"github.com/skalibog/bmse/pkg/models"
)

// Notifier интерфейс доставки сигналов
type Notifier interface {
	// Submit ставит сигнал в очередь доставки без блокировки вызывающего
	Submit(signal *models.Signal)
}

// ConsoleNotifier печатает сигналы в лог в формате торгового оповещения.
// Доставка идет через буферизованный канал, переполнение отбрасывает
// сигнал с предупреждением вместо блокировки цикла сканирования.
type ConsoleNotifier struct {
	queue chan *models.Signal
}

// NewConsoleNotifier создает нотификатор с буфером очереди
func NewConsoleNotifier(buffer int) *ConsoleNotifier {
	if buffer <= 0 {
		buffer = 64
	}
	return &ConsoleNotifier{
		queue: make(chan *models.Signal, buffer),
	}
}

// Start запускает доставку сигналов до отмены контекста
func (n *ConsoleNotifier) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-n.queue:
				fmt.Println(FormatSignal(sig))
				logger.Info("Сигнал отправлен",
					zap.String("id", sig.ID),
					zap.String("symbol", sig.Symbol),
					zap.String("direction", sig.Direction.String()),
					zap.Float64("strength", sig.Strength))
			}
		}
	}()
}

// Submit ставит сигнал в очередь доставки
func (n *ConsoleNotifier) Submit(signal *models.Signal) {
	select {
	case n.queue <- signal:
	default:
		logger.Warn("Очередь уведомлений переполнена, сигнал отброшен",
			zap.String("symbol", signal.Symbol))
	}
}

// FormatSignal форматирует сигнал в текст оповещения
func FormatSignal(s *models.Signal) string {
	var b strings.Builder

	arrow := "🚀"
	if s.Direction == models.Short {
		arrow = "🔻"
	}

	fmt.Fprintf(&b, "%s #%s (%s)\n", arrow, s.Symbol, directionLabel(s.Direction))
	fmt.Fprintf(&b, "Вход: %s\n", formatPrice(s.EntryPrice))
	fmt.Fprintf(&b, "Сила сигнала: %.0f/100\n", s.Strength)

	for i, tp := range s.Targets {
		fmt.Fprintf(&b, "TP%d (%.0f%%): %s\n", i+1, tp.CumPercent, formatPrice(tp.Price))
	}

	fmt.Fprintf(&b, "RSI: %.1f | Дисбаланс: %+.2f | Спред: %.3f%%\n", s.RSI, s.Imbalance, s.SpreadPct)
	if s.Whale {
		b.WriteString("🐳 Крупные сделки в потоке\n")
	}
	if s.Change24h != 0 || s.Volume24h != 0 {
		fmt.Fprintf(&b, "24ч: %+.2f%% | Объем: %s\n", s.Change24h, formatVolume(s.Volume24h))
	}
	fmt.Fprintf(&b, "Фильтры: %s", strings.Join(s.FiltersPassed, ", "))

	return b.String()
}

func directionLabel(d models.Direction) string {
	switch d {
	case models.Long:
		return "Лонг"
	case models.Short:
		return "Шорт"
	default:
		return "Нейтрально"
	}
}

// formatPrice подбирает точность под масштаб цены
func formatPrice(p float64) string {
	switch {
	case p >= 100:
		return fmt.Sprintf("%.2f", p)
	case p >= 1:
		return fmt.Sprintf("%.4f", p)
	default:
		return fmt.Sprintf("%.6f", p)
	}
}

func formatVolume(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
