package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mescon/Tickarr/internal/auth"
	"github.com/mescon/Tickarr/internal/logger"
)

func (s *RESTServer) handleAuthStatus(c *gin.Context) {
	if s.repo == nil {
		respondServiceUnavailable(c, "Database")
		return
	}
	configured, err := auth.HasAPIKey(s.repo)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"api_key_configured": configured})
}

// regenerateAPIKey rotates the key. The new key is shown once; the old key
// stops working immediately.
func (s *RESTServer) regenerateAPIKey(c *gin.Context) {
	if s.repo == nil {
		respondServiceUnavailable(c, "Database")
		return
	}
	newKey, err := auth.RotateAPIKey(s.repo)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, "Failed to regenerate API key", err)
		return
	}
	if s.verifier != nil {
		s.verifier.Forget()
	}
	logger.Infof("API key regenerated from %s", c.ClientIP())

	c.JSON(http.StatusOK, gin.H{
		"api_key": newKey,
		"message": "API key regenerated successfully. Update your clients!",
	})
}
