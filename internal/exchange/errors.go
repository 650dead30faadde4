package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Классификация ошибок получения данных. Сканер реагирует на класс,
// а не на конкретного поставщика.
var (
	// ErrDataUnavailable поставщик не вернул пригодных данных —
	// символ пропускается в этом цикле
	ErrDataUnavailable = errors.New("рыночные данные недоступны")

	// ErrRateLimited поставщик ограничил частоту запросов —
	// пробуем следующего в порядке приоритета
	ErrRateLimited = errors.New("превышен лимит запросов")
)

// TransientError временная сетевая ошибка: повторяется с экспоненциальной
// задержкой внутри контракта поставщика, после исчерпания попыток
// деградирует до ErrDataUnavailable
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("временная ошибка сети: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient оборачивает ошибку как временную
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient сообщает, стоит ли повторять запрос
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
