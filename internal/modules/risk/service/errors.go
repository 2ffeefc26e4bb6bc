package service

import "errors"

// Ошибки валидации разрешаются на месте и не ретраятся.
// Недоступность шлюза или котировок живёт только внутри петли мониторинга:
// тик пропускается, следующий пробует снова, наружу ничего не летит.
var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrOutOfBandPrice       = errors.New("limit price out of band")
	ErrQuantityTooSmall     = errors.New("quantity too small")
	ErrRiskValidation       = errors.New("risk validation failed")
	ErrShutdownTimeout      = errors.New("monitor loop did not stop in time")
)
