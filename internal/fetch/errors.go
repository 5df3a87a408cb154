package fetch

import (
	"errors"
	"fmt"
)

// NetworkError: таймаут или сбой транспорта. Только эта ошибка роняет связь в OFFLINE.
type NetworkError struct {
	Endpoint string
	Cause    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error on %s: %v", e.Endpoint, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// HTTPStatusError: источник ответил, но не 2xx. На состояние связи не влияет.
type HTTPStatusError struct {
	Endpoint string
	Status   int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http error on %s: status %d", e.Endpoint, e.Status)
}

// DecodeError: ответ пришел, но разобрать его не удалось.
type DecodeError struct {
	Endpoint string
	Cause    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error on %s: %v", e.Endpoint, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// Kind возвращает метку ошибки для метрик и логов. Пустая строка: ошибка вне таксономии.
func Kind(err error) string {
	var netErr *NetworkError
	var statusErr *HTTPStatusError
	var decErr *DecodeError
	switch {
	case errors.As(err, &netErr):
		return "network"
	case errors.As(err, &statusErr):
		return "http_status"
	case errors.As(err, &decErr):
		return "decode"
	default:
		return ""
	}
}

// IsNetwork сообщает, является ли ошибка транспортной.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
