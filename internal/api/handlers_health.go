package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mescon/Tickarr/internal/config"
	"github.com/mescon/Tickarr/internal/logger"
)

// formatUptime returns a human-readable uptime string
func formatUptime(uptime time.Duration) string {
	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// checkDatabaseHealth checks database connectivity and returns status
func (s *RESTServer) checkDatabaseHealth(ctx context.Context) (gin.H, bool) {
	if s.repo == nil {
		return gin.H{"status": "not configured"}, false
	}

	dbHealth := gin.H{"status": "connected"}
	if err := s.repo.DB.PingContext(ctx); err != nil {
		dbHealth["status"] = "error"
		dbHealth["error"] = err.Error()
		return dbHealth, false
	}

	stats, err := s.repo.GetDatabaseStats()
	if err != nil {
		logger.Debugf("Failed to read database stats: %v", err)
		return dbHealth, true
	}
	for k, v := range stats {
		dbHealth[k] = v
	}
	return dbHealth, true
}

// handleHealth returns server health status for container orchestration.
// This endpoint must return quickly (within 5 seconds) for Docker healthchecks.
func (s *RESTServer) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, dbHealthy := s.checkDatabaseHealth(ctx)

	status := "healthy"
	if !dbHealthy {
		status = "degraded"
	}

	timers := gin.H{}
	if s.timers != nil {
		for st, n := range s.timers.CountByStatus() {
			timers[st.String()] = n
		}
	}

	health := gin.H{
		"status":            status,
		"version":           config.Version,
		"uptime":            formatUptime(time.Since(s.startTime)),
		"database":          dbHealth,
		"timers":            timers,
		"websocket_clients": s.hub.ClientCount(),
	}
	if s.eventBus != nil {
		health["dropped_events"] = s.eventBus.Dropped()
	}
	if s.notifier != nil && s.notifier.Enabled() {
		health["notifications"] = s.notifier.Targets()
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, health)
}
