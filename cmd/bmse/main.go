package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/skalibog/bmse/internal/config"
	"github.com/skalibog/bmse/internal/exchange"
	"github.com/skalibog/bmse/internal/gate"
	"github.com/skalibog/bmse/internal/notify"
	"github.com/skalibog/bmse/internal/scanner"
	"github.com/skalibog/bmse/internal/state"
	"github.com/skalibog/bmse/internal/storage"
	"github.com/skalibog/bmse/pkg/logger"
)

func main() {
	// Обработка флагов командной строки
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	flag.Parse()

	// Проверяем наличие файла конфигурации
	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Файл конфигурации не найден: %s\n", *configPath)
		os.Exit(1)
	}

	// Загружаем конфигурацию
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Console: cfg.Log.Console,
	})
	defer logger.GetLogger().Sync()

	// Настраиваем обработку сигналов завершения
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализируем архив сигналов
	store, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatal("Ошибка инициализации хранилища", zap.Error(err))
	}
	defer store.Close()

	// Собираем цепочку поставщиков данных: Bybit основной, Binance резервный
	providers := []exchange.Provider{exchange.NewBybitClient(cfg.Bybit)}
	if cfg.Binance.Enabled {
		providers = append(providers, exchange.NewBinanceClient(cfg.Binance))
	}
	chain := exchange.NewChain(providers...)

	// Состояние символов и гейт эмиссии
	states := state.NewStore(cfg.Scanner.BufferCapacity, cfg.Filters.VolumeSurge.MAWindow)
	emitGate := gate.New(cfg.Signal.StrengthThreshold, cfg.Cooldown())

	// Доставка сигналов
	notifier := notify.NewConsoleNotifier(len(cfg.Trading.Symbols) * 2)
	notifier.Start(ctx)

	sc := scanner.New(cfg, chain, states, emitGate, notifier, store)

	logger.Info("Запуск сканера рыночных сигналов",
		zap.String("config", *configPath),
		zap.Int("symbols", len(cfg.Trading.Symbols)))

	if err := sc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Сканер завершился с ошибкой", zap.Error(err))
	}

	logger.Info("Завершение работы")
}
