package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mescon/Tickarr/internal/logger"
	"github.com/mescon/Tickarr/internal/services"
	"github.com/mescon/Tickarr/internal/storage"
	"github.com/mescon/Tickarr/internal/timer"
)

// Standard error messages (don't leak internal details)
const (
	ErrMsgDatabaseError      = "Database error"
	ErrMsgInvalidRequest     = "Invalid request"
	ErrMsgNotFound           = "Not found"
	ErrMsgServiceUnavailable = "Service unavailable"
	ErrMsgInternalError      = "Internal server error"
	ErrMsgTimerNotFound      = "Timer not found"
	ErrMsgKeyNotFound        = "Key not found"
)

// respondWithError sends a JSON error response and logs the actual error
func respondWithError(c *gin.Context, status int, publicMsg string, err error) {
	if err != nil {
		logger.Debugf("%s: %v", publicMsg, err)
	}
	c.JSON(status, gin.H{"error": publicMsg})
}

// respondDatabaseError handles database errors consistently
func respondDatabaseError(c *gin.Context, err error) {
	respondWithError(c, http.StatusInternalServerError, ErrMsgDatabaseError, err)
}

// respondBadRequest handles bad request errors, optionally exposing the error message
// Use exposeError=true only for validation errors safe to show users
func respondBadRequest(c *gin.Context, err error, exposeError bool) {
	if exposeError && err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	respondWithError(c, http.StatusBadRequest, ErrMsgInvalidRequest, err)
}

// respondNotFound handles not found errors
func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, gin.H{"error": resource + " not found"})
}

// respondServiceUnavailable handles service unavailable errors
func respondServiceUnavailable(c *gin.Context, service string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": service + " not available"})
}

// respondTimerError maps core validation errors to 400 with their code.
// Other errors fall through to respondServiceError.
func respondTimerError(c *gin.Context, err error) {
	var te *timer.Error
	if errors.As(err, &te) {
		body := gin.H{"error": te.Message, "code": te.Code}
		if te.Details != "" {
			body["details"] = te.Details
		}
		c.JSON(http.StatusBadRequest, body)
		return
	}
	respondServiceError(c, err)
}

// respondServiceError maps service and storage sentinels to status codes.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTimerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": ErrMsgTimerNotFound})
	case errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidLabel):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrServiceStopped):
		respondServiceUnavailable(c, "Timer service")
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": ErrMsgKeyNotFound})
	case errors.Is(err, storage.ErrNotExpiring):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Value was stored without a ttl"})
	default:
		respondWithError(c, http.StatusInternalServerError, ErrMsgInternalError, err)
	}
}
