package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mescon/Tickarr/internal/timer"
)

type parseTimeRequest struct {
	Text *string `json:"text" binding:"required"`
}

type validateDurationRequest struct {
	Seconds *float64 `json:"seconds" binding:"required"`
}

type thresholdsRequest struct {
	Total  *int                `json:"total" binding:"required"`
	Config timer.WarningConfig `json:"config"`
}

type zoneRequest struct {
	Remaining  *int             `json:"remaining" binding:"required"`
	Thresholds timer.Thresholds `json:"thresholds"`
}

type triggeredRequest struct {
	Threshold *int                    `json:"threshold" binding:"required"`
	Triggered timer.TriggeredWarnings `json:"triggered"`
}

type evaluateRequest struct {
	Remaining  *int                    `json:"remaining" binding:"required"`
	Thresholds timer.Thresholds        `json:"thresholds"`
	Triggered  timer.TriggeredWarnings `json:"triggered"`
}

// nonNegativeQuery reads an integer query parameter that must be >= 0.
func nonNegativeQuery(c *gin.Context, key string) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return 0, errors.New(key + " is required")
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	if v < 0 {
		return 0, errors.New(key + " must not be negative")
	}
	return v, nil
}

func (s *RESTServer) handleFormatTime(c *gin.Context) {
	seconds, err := nonNegativeQuery(c, "seconds")
	if err != nil {
		respondBadRequest(c, err, true)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"seconds":   seconds,
		"formatted": timer.FormatTime(seconds),
	})
}

func (s *RESTServer) handleReadableTime(c *gin.Context) {
	seconds, err := nonNegativeQuery(c, "seconds")
	if err != nil {
		respondBadRequest(c, err, true)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"seconds":  seconds,
		"readable": timer.ReadableTimeRemaining(seconds),
	})
}

func (s *RESTServer) handleParseTime(c *gin.Context) {
	var req parseTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err, false)
		return
	}
	d, err := timer.ParseTimeString(*req.Text)
	if err != nil {
		respondTimerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"seconds":   d.Seconds(),
		"formatted": d.String(),
	})
}

func (s *RESTServer) handleValidateDuration(c *gin.Context) {
	var req validateDurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err, false)
		return
	}
	d, err := timer.ValidateDurationValue(*req.Seconds)
	if err != nil {
		respondTimerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":   true,
		"seconds": d.Seconds(),
	})
}

func (s *RESTServer) handleProgress(c *gin.Context) {
	remaining, err := nonNegativeQuery(c, "remaining")
	if err != nil {
		respondBadRequest(c, err, true)
		return
	}
	total, err := nonNegativeQuery(c, "total")
	if err != nil {
		respondBadRequest(c, err, true)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"remaining": remaining,
		"total":     total,
		"progress":  timer.Progress(remaining, total),
	})
}

func (s *RESTServer) handleWarningThresholds(c *gin.Context) {
	var req thresholdsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err, false)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"thresholds": timer.CalculateWarningThresholds(*req.Total, req.Config),
	})
}

func (s *RESTServer) handleWarningZone(c *gin.Context) {
	var req zoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err, false)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"in_warning_zone": timer.IsInWarningZone(*req.Remaining, req.Thresholds),
	})
}

func (s *RESTServer) handleWarningTriggered(c *gin.Context) {
	var req triggeredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err, false)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"triggered": timer.HasWarningBeenTriggered(*req.Threshold, req.Triggered),
	})
}

func (s *RESTServer) handleEvaluateTick(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err, false)
		return
	}
	decision, next := timer.EvaluateTick(*req.Remaining, req.Thresholds, req.Triggered)
	c.JSON(http.StatusOK, gin.H{
		"decision":  decision,
		"triggered": next,
	})
}

func (s *RESTServer) handleValidTransition(c *gin.Context) {
	from, err := timer.ParseStatus(c.Query("from"))
	if err != nil {
		respondBadRequest(c, err, true)
		return
	}
	to, err := timer.ParseStatus(c.Query("to"))
	if err != nil {
		respondBadRequest(c, err, true)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"from":            from,
		"to":              to,
		"valid":           timer.IsValidTransition(from, to),
		"resets_warnings": timer.IsValidTransition(from, to) && timer.ResetsWarnings(from, to),
	})
}

// handleTransitionTable lists the allowed next statuses for every status.
func (s *RESTServer) handleTransitionTable(c *gin.Context) {
	table := make(map[string][]timer.Status, len(timer.Statuses))
	for _, st := range timer.Statuses {
		table[st.String()] = timer.AllowedTransitions(st)
	}
	c.JSON(http.StatusOK, gin.H{"transitions": table})
}
