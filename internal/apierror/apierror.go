// Package apierror maps ledger errors to HTTP responses.
package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/web"
	"github.com/rs/zerolog"
)

// RetryAfterSeconds is advertised to clients on retryable failures.
const RetryAfterSeconds = "1"

// Status returns the HTTP status code for err.
func Status(err error) int {
	switch {
	case errors.Is(err, domain.ErrCommitUnknown):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSameAccount),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInvalidAccountKind):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAccountOwnerMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAccountNotActive),
		errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, domain.ErrBalanceNotZero):
		return http.StatusConflict
	case domain.IsRetryable(err),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}

	return http.StatusInternalServerError
}

// Respond writes the error response for err. Internal details are never sent to the client.
func Respond(gctx *gin.Context, err error) {
	l := zerolog.Ctx(gctx.Request.Context())

	status := Status(err)

	switch status {
	case http.StatusInternalServerError:
		l.Error().Err(err).Send()
		gctx.JSON(status, web.Error(errorspkg.ErrInternal))
	case http.StatusServiceUnavailable:
		l.Warn().Err(err).Send()
		gctx.Header("Retry-After", RetryAfterSeconds)
		gctx.JSON(status, web.Error(retryable(err)))
	default:
		l.Info().Err(err).Send()
		gctx.JSON(status, web.Error(err))
	}
}

func retryable(err error) error {
	switch {
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return domain.ErrConcurrencyConflict
	case errors.Is(err, domain.ErrPersistenceUnavailable):
		return domain.ErrPersistenceUnavailable
	}

	return errorspkg.ErrUnavailable
}
