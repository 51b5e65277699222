package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/subwave/billing-service/internal/auth"
	"github.com/subwave/billing-service/internal/domain"
	"github.com/subwave/billing-service/internal/middleware"
)

const (
	defaultPage int32 = 1
	defaultSize int32 = 50
)

// respondError maps a service error onto the {"detail": ...} error shape.
// Error messages carried by domain errors are the literal response
// details.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		logger.Error("Unhandled error",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
		return
	}

	var status int
	switch {
	case domain.IsNotFoundError(err):
		status = http.StatusNotFound
	case domain.IsAuthError(err):
		status = http.StatusForbidden
	case domain.IsConflictError(err):
		status = http.StatusBadRequest
	case domain.IsValidationError(err):
		status = http.StatusUnprocessableEntity
	case domain.IsDomainError(err, domain.ErrorCodePaymentCreate):
		status = http.StatusBadRequest
	default:
		logger.Error("Internal error",
			zap.String("path", c.Request.URL.Path),
			zap.String("code", string(domainErr.Code)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
		return
	}

	c.JSON(status, gin.H{"detail": domainErr.Message})
}

// respondBindError surfaces a malformed request body as a 422.
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
}

// callerIdentity returns the authenticated caller or writes a 401.
func callerIdentity(c *gin.Context) (auth.Identity, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "authentication required"})
	}
	return identity, ok
}

// pagination resolves the page and size query params into a limit and
// offset. Bad values fall back to the defaults.
func pagination(c *gin.Context) (limit, offset int32) {
	page := queryInt32(c, "page", defaultPage)
	size := queryInt32(c, "size", defaultSize)
	return size, (page - 1) * size
}

func queryInt32(c *gin.Context, key string, fallback int32) int32 {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || value < 1 {
		return fallback
	}
	return int32(value)
}
