// Package scanner управляет периодическим циклом сканирования рынков.
package scanner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/skalibog/bmse/internal/analysis/confluence"
	"github.com/skalibog/bmse/internal/analysis/filters"
	"github.com/skalibog/bmse/internal/analysis/tpladder"
	"github.com/skalibog/bmse/internal/config"
	"github.com/skalibog/bmse/internal/exchange"
	"github.com/skalibog/bmse/internal/gate"
	"github.com/skalibog/bmse/internal/state"
	"github.com/skalibog/bmse/internal/storage"
	"github.com/skalibog/bmse/pkg/logger"
	"github.com/skalibog/bmse/pkg/models"
)

// Notifier доставляет готовые сигналы без блокировки цикла
type Notifier interface {
	Submit(signal *models.Signal)
}

// Scanner оркестратор: по тику обходит все символы, считает свертку
// фильтров и эмитирует сигналы через гейт. Сбой одного символа не
// прерывает цикл остальных.
type Scanner struct {
	cfg      *config.Config
	provider exchange.Provider
	states   *state.Store
	gate     *gate.Gate
	notifier Notifier
	store    storage.Storage

	running atomic.Bool
	emitted atomic.Int64
}

// New создает сканер
func New(cfg *config.Config, provider exchange.Provider, states *state.Store, g *gate.Gate, notifier Notifier, store storage.Storage) *Scanner {
	s := &Scanner{
		cfg:      cfg,
		provider: provider,
		states:   states,
		gate:     g,
		notifier: notifier,
		store:    store,
	}
	s.running.Store(cfg.Scanner.Running)
	return s
}

// Pause приостанавливает сканирование без остановки процесса
func (s *Scanner) Pause() { s.running.Store(false) }

// Resume возобновляет сканирование
func (s *Scanner) Resume() { s.running.Store(true) }

// Running сообщает, активно ли сканирование
func (s *Scanner) Running() bool { return s.running.Load() }

// Emitted возвращает число сигналов с момента запуска
func (s *Scanner) Emitted() int64 { return s.emitted.Load() }

// Run запускает цикл сканирования до отмены контекста.
// Первый цикл выполняется сразу, без ожидания тика.
func (s *Scanner) Run(ctx context.Context) error {
	logger.Info("Сканер запущен",
		zap.Int("symbols", len(s.cfg.Trading.Symbols)),
		zap.Duration("interval", s.cfg.ScanInterval()),
		zap.Int("concurrency", s.cfg.Scanner.Concurrency))

	ticker := time.NewTicker(s.cfg.ScanInterval())
	defer ticker.Stop()

	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Сканер остановлен", zap.Int64("signals_emitted", s.emitted.Load()))
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle выполняет один проход по всем символам
func (s *Scanner) runCycle(ctx context.Context) {
	if !s.running.Load() {
		logger.Debug("Сканирование приостановлено, цикл пропущен")
		return
	}

	started := time.Now()
	cycleCtx, cancel := context.WithTimeout(ctx, s.cfg.CycleDeadline())
	defer cancel()

	// Конфигурация и таймфреймы фиксируются на весь цикл
	tf := s.timeframes()
	symbols := s.cfg.Trading.Symbols

	var scanned, failed, emitted atomic.Int64

	g, gctx := errgroup.WithContext(cycleCtx)
	g.SetLimit(s.cfg.Scanner.Concurrency)

	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			ok, err := s.scanSymbol(gctx, symbol, tf)
			if err != nil {
				failed.Add(1)
				logger.Warn("Ошибка сканирования символа",
					zap.String("symbol", symbol),
					zap.Error(err))
				// Сбой символа не прерывает цикл
				return nil
			}
			scanned.Add(1)
			if ok {
				emitted.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("Цикл сканирования завершен",
		zap.Duration("duration", time.Since(started)),
		zap.Int64("scanned", scanned.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Int64("signals", emitted.Load()))
}

// scanSymbol обрабатывает один символ: данные, состояние, свертка, гейт.
// Возвращает true при эмиссии сигнала.
func (s *Scanner) scanSymbol(ctx context.Context, symbol string, tf exchange.Timeframes) (bool, error) {
	now := time.Now()
	st := s.states.Get(symbol)

	// Окно тишины проверяется до запроса данных, чтобы не тратить лимиты
	if !s.gate.ShouldScore(st, now) {
		logger.Debug("Символ в окне тишины, пропуск",
			zap.String("symbol", symbol),
			zap.Time("until", st.CooldownUntil()))
		return false, nil
	}

	snap, err := s.provider.FetchSnapshot(ctx, symbol, tf)
	if err != nil {
		return false, err
	}

	for _, candle := range snap.Candles {
		st.Update(candle)
	}
	st.ApplyTrades(snap.Trades)

	outcome := confluence.Score(filters.Context{
		Snapshot: snap,
		State:    st,
		Config:   &s.cfg.Filters,
		Now:      now,
	})

	if !s.gate.Decide(st, outcome, now) {
		return false, nil
	}

	signal, err := s.buildSignal(snap, outcome, now)
	if err != nil {
		return false, err
	}

	s.emitted.Add(1)
	s.notifier.Submit(signal)
	s.archive(signal)

	return true, nil
}

// buildSignal собирает итоговый сигнал из среза и результата свертки
func (s *Scanner) buildSignal(snap *models.Snapshot, outcome confluence.Outcome, now time.Time) (*models.Signal, error) {
	entry := snap.Latest().Close

	targets, err := tpladder.Generate(entry, outcome.Direction,
		s.cfg.Signal.TPMultipliers, s.cfg.Signal.TPDistribution)
	if err != nil {
		return nil, err
	}

	signal := &models.Signal{
		ID:            uuid.NewString(),
		Symbol:        snap.Symbol,
		Direction:     outcome.Direction,
		EntryPrice:    entry,
		Strength:      outcome.Strength,
		Targets:       targets,
		FiltersPassed: outcome.Passed(),
		CreatedAt:     now,
	}

	if r, ok := outcome.Result(filters.NameRSI); ok && !r.Abstained {
		signal.RSI = r.Value
	}
	if r, ok := outcome.Result(filters.NameImbalance); ok && !r.Abstained {
		signal.Imbalance = r.Value
	}
	if r, ok := outcome.Result(filters.NameSpread); ok && !r.Abstained {
		signal.SpreadPct = r.Value
	}
	if r, ok := outcome.Result(filters.NameWhale); ok {
		signal.Whale = r.Passed
	}
	if snap.Ticker != nil {
		signal.Change24h = snap.Ticker.Change24h
		signal.Volume24h = snap.Ticker.Volume24h
	}

	return signal, nil
}

// archive сохраняет сигнал в фоне, ошибка записи не влияет на эмиссию
func (s *Scanner) archive(signal *models.Signal) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.store.SaveSignal(ctx, signal); err != nil {
			logger.Error("Ошибка записи сигнала в архив",
				zap.String("id", signal.ID),
				zap.String("symbol", signal.Symbol),
				zap.Error(err))
		}
	}()
}

// timeframes строит параметры запроса данных из конфигурации
func (s *Scanner) timeframes() exchange.Timeframes {
	return exchange.Timeframes{
		Primary:        s.cfg.Trading.Interval,
		Short:          s.cfg.Trading.ShortInterval,
		CandleLimit:    s.cfg.Trading.CandleLimit,
		DailyDays:      s.cfg.Filters.NewCoin.MinAgeDays + 1,
		OrderBookDepth: s.cfg.Trading.OrderBookDepth,
		TradeLimit:     s.cfg.Trading.TradeLimit,
	}
}
