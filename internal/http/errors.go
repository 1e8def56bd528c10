package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"finance-ledger-go/internal/ai"
	"finance-ledger-go/internal/email"
	"finance-ledger-go/internal/identity"
	"finance-ledger-go/internal/ledger"
)

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, identity.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found"
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, ledger.ErrNoTransactions):
		return http.StatusNotFound, "no_transactions_found"
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ai.ErrNotConfigured), errors.Is(err, email.ErrNotConfigured):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, ai.ErrBadImage):
		return http.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, ai.ErrNotAReceipt), errors.Is(err, ai.ErrInvalidOutput):
		return http.StatusUnprocessableEntity, err.Error()
	}
	return http.StatusInternalServerError, "internal_error"
}

// fail writes the mutation failure envelope.
func fail(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= 500 {
		log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// failRead writes the error body of read endpoints.
func failRead(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= 500 {
		log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": msg})
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
}
