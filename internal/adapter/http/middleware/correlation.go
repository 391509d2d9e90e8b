package middleware

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/iho/goconsolidation/internal/infrastructure/logger"
	"github.com/iho/goconsolidation/internal/usecase"
)

// CorrelationIDHeader carries the id that ties logs of one flow together.
const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationMiddleware propagates or assigns a correlation id and attaches a
// request scoped logger to the context.
type CorrelationMiddleware struct {
	logger zerolog.Logger
	idGen  usecase.IDGenerator
}

// NewCorrelationMiddleware creates a new CorrelationMiddleware.
func NewCorrelationMiddleware(logger zerolog.Logger, idGen usecase.IDGenerator) *CorrelationMiddleware {
	return &CorrelationMiddleware{logger: logger, idGen: idGen}
}

// Wrap wraps an http.Handler with correlation id handling.
func (m *CorrelationMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationIDHeader)
		if id == "" {
			id = m.idGen.Generate()
		}

		w.Header().Set(CorrelationIDHeader, id)
		ctx := logger.WithCorrelationID(r.Context(), m.logger, id)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
