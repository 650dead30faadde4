package storage

import (
	"context"
	"fmt"

	"github.com/skalibog/bmse/internal/config"
	"github.com/skalibog/bmse/pkg/models"
)

// Storage интерфейс архива сигналов
type Storage interface {
	SaveSignal(ctx context.Context, signal *models.Signal) error
	GetSignalHistory(ctx context.Context, symbol string, limit int) ([]*models.Signal, error)
	Close()
}

// New создает хранилище по типу из конфигурации
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "influxdb":
		return NewInfluxDBStorage(cfg)
	case "", "none":
		return NewNoopStorage(), nil
	default:
		return nil, fmt.Errorf("неизвестный тип хранилища: %s", cfg.Type)
	}
}

// NoopStorage хранилище-заглушка, когда архив сигналов отключен
type NoopStorage struct{}

// NewNoopStorage создает хранилище-заглушку
func NewNoopStorage() *NoopStorage { return &NoopStorage{} }

func (s *NoopStorage) SaveSignal(ctx context.Context, signal *models.Signal) error { return nil }

func (s *NoopStorage) GetSignalHistory(ctx context.Context, symbol string, limit int) ([]*models.Signal, error) {
	return nil, nil
}

func (s *NoopStorage) Close() {}
