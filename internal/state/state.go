package state

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/skalibog/bmse/pkg/logger"
	"github.com/skalibog/bmse/pkg/models"
)

// SymbolState хранит скользящее состояние одного символа.
// Владение: внутри цикла состояние мутирует только задача своего символа,
// между циклами оно только читается.
type SymbolState struct {
	symbol   string
	capacity int
	maWindow int

	// Кольцевой буфер свечей
	candles []*models.Candle
	head    int
	size    int

	// Скользящая сумма объемов последних maWindow+1 свечей
	volSum   float64
	volCount int

	cvd         float64
	lastTradeAt time.Time

	firstSeen     time.Time
	lastSignalAt  time.Time
	cooldownUntil time.Time
}

// NewSymbolState создает состояние с фиксированной емкостью буфера.
// Емкость не меняется после создания.
func NewSymbolState(symbol string, capacity, maWindow int) *SymbolState {
	if capacity <= 0 {
		capacity = 50
	}
	if maWindow <= 0 {
		maWindow = 5
	}
	return &SymbolState{
		symbol:   symbol,
		capacity: capacity,
		maWindow: maWindow,
		candles:  make([]*models.Candle, capacity),
	}
}

// Symbol возвращает символ состояния
func (s *SymbolState) Symbol() string { return s.symbol }

// Len возвращает текущую длину буфера
func (s *SymbolState) Len() int { return s.size }

// Capacity возвращает емкость буфера
func (s *SymbolState) Capacity() int { return s.capacity }

// At возвращает свечу по хронологическому индексу (0 — самая старая)
func (s *SymbolState) At(i int) *models.Candle {
	if i < 0 || i >= s.size {
		return nil
	}
	return s.candles[(s.head+i)%s.capacity]
}

// Last возвращает последнюю свечу буфера
func (s *SymbolState) Last() *models.Candle {
	if s.size == 0 {
		return nil
	}
	return s.At(s.size - 1)
}

// Update добавляет новую свечу в буфер. Свеча с временем не строго позже
// последней отбрасывается: ленты отдают дубликаты и опоздавшие свечи.
// Возвращает true, если свеча принята.
func (s *SymbolState) Update(candle *models.Candle) bool {
	if candle == nil {
		return false
	}

	if last := s.Last(); last != nil && !candle.OpenTime.After(last.OpenTime) {
		logger.Warn("Свеча вне порядка отброшена",
			zap.String("symbol", s.symbol),
			zap.Time("candle_time", candle.OpenTime),
			zap.Time("last_time", last.OpenTime))
		return false
	}

	if s.firstSeen.IsZero() {
		s.firstSeen = candle.OpenTime
	}

	if s.size == s.capacity {
		// Вытесняем самую старую свечу
		s.candles[s.head] = candle
		s.head = (s.head + 1) % s.capacity
	} else {
		s.candles[(s.head+s.size)%s.capacity] = candle
		s.size++
	}

	// Инкрементальное обновление скользящей суммы объемов:
	// держим сумму последних maWindow+1 объемов, чтобы скользящая средняя
	// предыдущих maWindow свечей считалась без пересканирования буфера
	s.volSum += candle.Volume
	s.volCount++
	if s.volCount > s.maWindow+1 {
		leaving := s.At(s.size - s.maWindow - 2)
		if leaving != nil {
			s.volSum -= leaving.Volume
		}
		s.volCount--
	}

	return true
}

// TrailingVolumeMA возвращает среднее объемов maWindow свечей,
// предшествующих последней. Ноль, если данных недостаточно.
func (s *SymbolState) TrailingVolumeMA() float64 {
	if s.size < s.maWindow+1 {
		return 0
	}
	last := s.Last()
	return (s.volSum - last.Volume) / float64(s.maWindow)
}

// ApplyTrades обновляет накопленную дельту объемов (CVD) по новым сделкам.
// Отсечка по отметке предыдущей партии, а не по ходу цикла: биржевые ленты
// дают миллисекундные отметки, и сделки одной миллисекунды обычны.
func (s *SymbolState) ApplyTrades(trades []*models.Trade) {
	mark := s.lastTradeAt
	for _, t := range trades {
		if t == nil || !t.Timestamp.After(mark) {
			continue
		}
		if t.Side == models.Buy {
			s.cvd += t.Size
		} else {
			s.cvd -= t.Size
		}
		if t.Timestamp.After(s.lastTradeAt) {
			s.lastTradeAt = t.Timestamp
		}
	}
}

// CVD возвращает накопленную дельту объемов
func (s *SymbolState) CVD() float64 { return s.cvd }

// HighestHigh возвращает максимум high среди window свечей,
// предшествующих последней. Ноль, если данных недостаточно.
func (s *SymbolState) HighestHigh(window int) float64 {
	if window <= 0 || s.size < 2 {
		return 0
	}
	start := s.size - 1 - window
	if start < 0 {
		start = 0
	}
	high := 0.0
	for i := start; i < s.size-1; i++ {
		if c := s.At(i); c != nil && c.High > high {
			high = c.High
		}
	}
	return high
}

// FirstSeen возвращает время первой наблюдавшейся свечи
func (s *SymbolState) FirstSeen() time.Time { return s.firstSeen }

// MarkSignal фиксирует эмиссию сигнала и запускает окно тишины
func (s *SymbolState) MarkSignal(now time.Time, cooldown time.Duration) {
	s.lastSignalAt = now
	s.cooldownUntil = now.Add(cooldown)
}

// LastSignalAt возвращает время последнего сигнала
func (s *SymbolState) LastSignalAt() time.Time { return s.lastSignalAt }

// CooldownUntil возвращает границу окна тишины
func (s *SymbolState) CooldownUntil() time.Time { return s.cooldownUntil }

// InCooldown сообщает, действует ли окно тишины
func (s *SymbolState) InCooldown(now time.Time) bool {
	return now.Before(s.cooldownUntil)
}

// Store хранит состояния всех отслеживаемых символов.
// Мьютекс защищает только карту: каждое состояние в цикле
// трогает ровно одна задача.
type Store struct {
	mu       sync.RWMutex
	states   map[string]*SymbolState
	capacity int
	maWindow int
}

// NewStore создает хранилище состояний
func NewStore(capacity, maWindow int) *Store {
	return &Store{
		states:   make(map[string]*SymbolState),
		capacity: capacity,
		maWindow: maWindow,
	}
}

// Get возвращает состояние символа, создавая его при первом обращении
func (st *Store) Get(symbol string) *SymbolState {
	st.mu.RLock()
	s, ok := st.states[symbol]
	st.mu.RUnlock()
	if ok {
		return s
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok = st.states[symbol]; ok {
		return s
	}
	s = NewSymbolState(symbol, st.capacity, st.maWindow)
	st.states[symbol] = s
	return s
}

// Len возвращает число отслеживаемых символов
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.states)
}
