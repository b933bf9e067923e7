package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/fooddelivery/internal/adapter/catalog"
	domainErrors "github.com/polkiloo/fooddelivery/internal/domain/errors"
	"github.com/polkiloo/fooddelivery/internal/pkg/auth"
	"github.com/polkiloo/fooddelivery/internal/server/http/dto"
	"github.com/polkiloo/fooddelivery/internal/server/http/middleware"
)

// storageRetryAfter is the back-off hint sent with storage failures.
const storageRetryAfter = "1"

// CurrentPrincipal extracts the authenticated caller from context.
func CurrentPrincipal(c *gin.Context) auth.Principal {
	val, ok := c.Get(middleware.PrincipalContextKey)
	if !ok {
		return auth.Principal{}
	}
	principal, _ := val.(auth.Principal)
	return principal
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		_ = c.Error(err)
		c.AbortWithStatusJSON(status, dto.ErrorResponse{Error: http.StatusText(status)})
		return
	case http.StatusServiceUnavailable:
		if wait, ok := catalog.RetryAfter(err); ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		} else {
			c.Header("Retry-After", storageRetryAfter)
		}
	}
	c.AbortWithStatusJSON(status, dto.ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	if _, limited := catalog.RetryAfter(err); limited {
		return http.StatusServiceUnavailable
	}
	switch {
	case errors.Is(err, domainErrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domainErrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainErrors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domainErrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domainErrors.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, domainErrors.ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: message})
}
