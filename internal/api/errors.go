package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/agrimarket/internal/account"
	"github.com/safar/agrimarket/internal/auth"
	"github.com/safar/agrimarket/internal/catalog"
	"github.com/safar/agrimarket/internal/commerce"
	"github.com/safar/agrimarket/internal/database"
	"github.com/safar/agrimarket/internal/identity"
	"github.com/safar/agrimarket/internal/notify"
	"github.com/safar/agrimarket/internal/store"
	"go.uber.org/zap"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{database.ErrUserNotFound, http.StatusNotFound},
	{database.ErrProductNotFound, http.StatusNotFound},
	{database.ErrCategoryNotFound, http.StatusNotFound},
	{database.ErrCartItemNotFound, http.StatusNotFound},
	{database.ErrOrderNotFound, http.StatusNotFound},

	{database.ErrDuplicateEmail, http.StatusConflict},
	{database.ErrDuplicateCategory, http.StatusConflict},
	{account.ErrAlreadyActive, http.StatusConflict},
	{commerce.ErrInvalidTransition, http.StatusConflict},

	{account.ErrInvalidCode, http.StatusBadRequest},
	{account.ErrInvalidInput, http.StatusBadRequest},
	{account.ErrWeakPassword, http.StatusBadRequest},
	{database.ErrEmptyCart, http.StatusBadRequest},
	{commerce.ErrInvalidQuantity, http.StatusBadRequest},
	{catalog.ErrInvalidProduct, http.StatusBadRequest},
	{store.ErrInvalidCursor, http.StatusBadRequest},

	{account.ErrExpiredCode, http.StatusGone},

	{database.ErrForbidden, http.StatusForbidden},
	{account.ErrInvalidCredentials, http.StatusUnauthorized},
	{account.ErrInactive, http.StatusUnauthorized},
	{auth.ErrInvalidToken, http.StatusUnauthorized},

	{notify.ErrNotImplemented, http.StatusNotImplemented},
	{account.ErrUpstream, http.StatusBadGateway},
	{identity.ErrUpstream, http.StatusBadGateway},

	{database.ErrLockTimeout, http.StatusServiceUnavailable},
}

func statusFor(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// respondError writes err with its mapped status. Unmapped errors are logged
// and reported without their internal detail.
func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
