package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mescon/Tickarr/internal/logger"
)

func (s *RESTServer) getSchedules(c *gin.Context) {
	if s.scheduler == nil {
		respondServiceUnavailable(c, "Scheduler")
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": s.scheduler.Jobs()})
}

// runSchedule runs a maintenance job now and waits for it to finish.
func (s *RESTServer) runSchedule(c *gin.Context) {
	if s.scheduler == nil {
		respondServiceUnavailable(c, "Scheduler")
		return
	}
	name := c.Param("name")
	if err := s.scheduler.RunNow(name); err != nil {
		respondNotFound(c, "Job")
		logger.Debugf("Run of job %s failed: %v", name, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": name, "status": "completed"})
}
