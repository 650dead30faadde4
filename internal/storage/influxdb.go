package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/skalibog/bmse/internal/config"
	"github.com/skalibog/bmse/pkg/models"
)

// InfluxDBStorage реализует архив сигналов поверх InfluxDB
type InfluxDBStorage struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPI
	org      string
	bucket   string
}

// NewInfluxDBStorage создает новое хранилище InfluxDB
func NewInfluxDBStorage(cfg config.StorageConfig) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Проверка соединения
	health, err := client.Health(context.Background())
	if err != nil {
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	queryAPI := client.QueryAPI(cfg.Organization)
	writeAPI := client.WriteAPI(cfg.Organization, cfg.Bucket)

	return &InfluxDBStorage{
		client:   client,
		queryAPI: queryAPI,
		writeAPI: writeAPI,
		org:      cfg.Organization,
		bucket:   cfg.Bucket,
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() {
	s.writeAPI.Flush()
	s.client.Close()
}

// SaveSignal сохраняет сигнал в архив
func (s *InfluxDBStorage) SaveSignal(ctx context.Context, signal *models.Signal) error {
	point := influxdb2.NewPoint(
		"signals",
		map[string]string{
			"symbol":    signal.Symbol,
			"direction": signal.Direction.String(),
		},
		map[string]interface{}{
			"id":         signal.ID,
			"entry":      signal.EntryPrice,
			"strength":   signal.Strength,
			"targets":    encodeTargets(signal.Targets),
			"filters":    strings.Join(signal.FiltersPassed, ","),
			"rsi":        signal.RSI,
			"imbalance":  signal.Imbalance,
			"spread":     signal.SpreadPct,
			"whale":      signal.Whale,
			"change_24h": signal.Change24h,
			"volume_24h": signal.Volume24h,
		},
		signal.CreatedAt,
	)

	s.writeAPI.WritePoint(point)
	s.writeAPI.Flush()

	return nil
}

// GetSignalHistory получает историю сигналов символа
func (s *InfluxDBStorage) GetSignalHistory(ctx context.Context, symbol string, limit int) ([]*models.Signal, error) {
	// Формируем Flux-запрос
	query := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: -30d)
			|> filter(fn: (r) => r._measurement == "signals")
			|> filter(fn: (r) => r.symbol == "%s")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"], desc: true)
			|> limit(n: %d)
	`, s.bucket, symbol, limit)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса истории сигналов: %w", err)
	}

	var signals []*models.Signal
	for result.Next() {
		record := result.Record()

		id, _ := record.ValueByKey("id").(string)
		entry, _ := record.ValueByKey("entry").(float64)
		strength, _ := record.ValueByKey("strength").(float64)
		targetsStr, _ := record.ValueByKey("targets").(string)
		filtersStr, _ := record.ValueByKey("filters").(string)
		rsi, _ := record.ValueByKey("rsi").(float64)
		imbalance, _ := record.ValueByKey("imbalance").(float64)
		spread, _ := record.ValueByKey("spread").(float64)
		whale, _ := record.ValueByKey("whale").(bool)
		change24h, _ := record.ValueByKey("change_24h").(float64)
		volume24h, _ := record.ValueByKey("volume_24h").(float64)
		direction, _ := record.ValueByKey("direction").(string)

		signal := &models.Signal{
			ID:            id,
			Symbol:        symbol,
			Direction:     parseDirection(direction),
			EntryPrice:    entry,
			Strength:      strength,
			Targets:       decodeTargets(targetsStr),
			FiltersPassed: splitFilters(filtersStr),
			RSI:           rsi,
			Imbalance:     imbalance,
			SpreadPct:     spread,
			Whale:         whale,
			Change24h:     change24h,
			Volume24h:     volume24h,
			CreatedAt:     record.Time(),
		}

		signals = append(signals, signal)
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	return signals, nil
}

// encodeTargets сериализует уровни фиксации для хранения
func encodeTargets(targets []models.TPLevel) string {
	data, err := json.Marshal(targets)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// decodeTargets восстанавливает уровни фиксации из строки
func decodeTargets(data string) []models.TPLevel {
	if data == "" {
		return nil
	}
	var targets []models.TPLevel
	if err := json.Unmarshal([]byte(data), &targets); err != nil {
		return nil
	}
	return targets
}

func splitFilters(data string) []string {
	if data == "" {
		return nil
	}
	return strings.Split(data, ",")
}

func parseDirection(s string) models.Direction {
	switch s {
	case "LONG":
		return models.Long
	case "SHORT":
		return models.Short
	default:
		return models.Neutral
	}
}
