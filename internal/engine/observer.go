package engine

import (
	"github.com/xela07ax/threatwatch/internal/fetch"
	"go.uber.org/zap"
)

// ErrorLog: наблюдатель ошибок шлюза: одна строка лога и один инкремент счетчика на сбой.
type ErrorLog struct {
	metrics *Metrics
	logger  *zap.Logger
}

func NewErrorLog(metrics *Metrics, logger *zap.Logger) *ErrorLog {
	return &ErrorLog{metrics: metrics, logger: logger.Named("errors")}
}

func (e *ErrorLog) ReportError(endpoint string, err error) {
	kind := fetch.Kind(err)
	if kind == "" {
		kind = "other"
	}
	if e.metrics != nil {
		e.metrics.FetchError(kind)
	}
	e.logger.Warn("remote api call failed",
		zap.String("endpoint", endpoint),
		zap.String("type", kind),
		zap.Error(err))
}
