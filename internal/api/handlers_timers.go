package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mescon/Tickarr/internal/domain"
	"github.com/mescon/Tickarr/internal/services"
	"github.com/mescon/Tickarr/internal/timer"
)

// createTimerRequest accepts exactly one duration source: seconds, an MM:SS
// string or a preset name. With none given the last used settings apply.
type createTimerRequest struct {
	Label    string               `json:"label"`
	Seconds  *float64             `json:"seconds"`
	Duration string               `json:"duration"`
	Preset   string               `json:"preset"`
	Config   *timer.WarningConfig `json:"config"`
	Start    bool                 `json:"start"`
}

var errNoDurationSource = errors.New("one of seconds, duration or preset is required")
var errManyDurationSources = errors.New("only one of seconds, duration or preset may be given")

// resolve turns the request into a validated duration and warning config.
func (s *RESTServer) resolve(req createTimerRequest) (timer.Duration, timer.WarningConfig, string, error) {
	sources := 0
	for _, set := range []bool{req.Seconds != nil, req.Duration != "", req.Preset != ""} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return 0, timer.WarningConfig{}, "", errManyDurationSources
	}

	var (
		d     timer.Duration
		cfg   timer.WarningConfig
		label = req.Label
		err   error
	)
	switch {
	case req.Seconds != nil:
		d, err = timer.ValidateDurationValue(*req.Seconds)
	case req.Duration != "":
		d, err = timer.ParseTimeString(req.Duration)
	case req.Preset != "":
		p, ok := s.cfg.FindPreset(req.Preset)
		if !ok {
			return 0, cfg, "", errors.New("unknown preset " + req.Preset)
		}
		d, cfg = p.Duration, p.Warnings
		if label == "" {
			label = p.Name
		}
	default:
		lu, ok := s.timers.LastUsed()
		if !ok {
			return 0, cfg, "", errNoDurationSource
		}
		d, cfg = lu.Duration, lu.Config
	}
	if err != nil {
		return 0, cfg, "", err
	}
	if req.Config != nil {
		cfg = *req.Config
	}
	return d, cfg, label, nil
}

func (s *RESTServer) createTimer(c *gin.Context) {
	var req createTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err, false)
		return
	}

	d, cfg, label, err := s.resolve(req)
	if err != nil {
		var te *timer.Error
		if errors.As(err, &te) {
			respondTimerError(c, err)
			return
		}
		respondBadRequest(c, err, true)
		return
	}

	snap, err := s.timers.Create(label, d.Seconds(), cfg)
	if err != nil {
		respondTimerError(c, err)
		return
	}
	if req.Start {
		if snap, err = s.timers.Start(snap.ID); err != nil {
			respondServiceError(c, err)
			return
		}
	}
	c.JSON(http.StatusCreated, snap)
}

func (s *RESTServer) listTimers(c *gin.Context) {
	timers := s.timers.List()
	if status := c.Query("status"); status != "" {
		want, err := timer.ParseStatus(status)
		if err != nil {
			respondBadRequest(c, err, true)
			return
		}
		filtered := make([]services.Snapshot, 0, len(timers))
		for _, t := range timers {
			if t.Status == want {
				filtered = append(filtered, t)
			}
		}
		timers = filtered
	}
	c.JSON(http.StatusOK, gin.H{"timers": timers, "count": len(timers)})
}

func (s *RESTServer) getTimer(c *gin.Context) {
	snap, err := s.timers.Get(c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *RESTServer) deleteTimer(c *gin.Context) {
	if err := s.timers.Delete(c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// timerAction wraps a single-id lifecycle operation as a handler.
func (s *RESTServer) timerAction(op func(string) (services.Snapshot, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := op(c.Param("id"))
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

func (s *RESTServer) startTimer(c *gin.Context)  { s.timerAction(s.timers.Start)(c) }
func (s *RESTServer) pauseTimer(c *gin.Context)  { s.timerAction(s.timers.Pause)(c) }
func (s *RESTServer) resumeTimer(c *gin.Context) { s.timerAction(s.timers.Resume)(c) }
func (s *RESTServer) resetTimer(c *gin.Context)  { s.timerAction(s.timers.Reset)(c) }

// getTimerEvents pages through the persisted lifecycle of a timer. Deleted
// timers keep their history.
func (s *RESTServer) getTimerEvents(c *gin.Context) {
	id := c.Param("id")
	events, err := s.eventBus.History(id, 0)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	if len(events) == 0 {
		if _, err := s.timers.Get(id); err != nil {
			respondServiceError(c, err)
			return
		}
	}

	p := ParsePagination(c, DefaultPaginationConfig())
	start, end := pageBounds(p, len(events))
	page := events[start:end]
	if page == nil {
		page = []domain.Event{}
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       page,
		"pagination": NewPaginationResponse(p, len(events)),
	})
}

func (s *RESTServer) getPresets(c *gin.Context) {
	type presetView struct {
		Name       string              `json:"name"`
		Seconds    int                 `json:"seconds"`
		Formatted  string              `json:"formatted"`
		Warnings   timer.WarningConfig `json:"warnings"`
		Thresholds timer.Thresholds    `json:"thresholds"`
	}

	presets := make([]presetView, 0, len(s.cfg.Presets))
	for _, p := range s.cfg.Presets {
		presets = append(presets, presetView{
			Name:       p.Name,
			Seconds:    p.Duration.Seconds(),
			Formatted:  p.Duration.String(),
			Warnings:   p.Warnings,
			Thresholds: timer.CalculateWarningThresholds(p.Duration.Seconds(), p.Warnings),
		})
	}
	c.JSON(http.StatusOK, gin.H{"presets": presets})
}

func (s *RESTServer) getLastUsed(c *gin.Context) {
	lu, ok := s.timers.LastUsed()
	if !ok {
		respondNotFound(c, "Last used timer")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"seconds":   lu.Duration.Seconds(),
		"formatted": lu.Duration.String(),
		"config":    lu.Config,
	})
}
