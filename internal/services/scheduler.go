package services

import (
	"fmt"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/mescon/Tickarr/internal/logger"
)

// Default maintenance schedules.
const (
	PurgeExpiredSchedule = "@every 1m"
	PruneEventsSchedule  = "0 3 * * *"
)

// ExpiryPurger removes expired storage entries.
type ExpiryPurger interface {
	PurgeExpired() (int64, error)
}

// Maintainer prunes old events and compacts the database.
type Maintainer interface {
	RunMaintenance(retentionDays int) error
}

// JobInfo describes a registered maintenance job.
type JobInfo struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
}

// SchedulerService runs periodic maintenance on cron schedules.
type SchedulerService struct {
	cron  *cron.Cron
	jobs  map[string]cron.EntryID
	specs map[string]string
	mu    sync.Mutex
}

func NewSchedulerService() *SchedulerService {
	return &SchedulerService{
		cron:  cron.New(),
		jobs:  make(map[string]cron.EntryID),
		specs: make(map[string]string),
	}
}

// RegisterDefaults adds the storage purge and event prune jobs.
func (s *SchedulerService) RegisterDefaults(store ExpiryPurger, repo Maintainer, retentionDays int) error {
	if store != nil {
		if err := s.AddJob("purge-expired", PurgeExpiredSchedule, func() {
			n, err := store.PurgeExpired()
			if err != nil {
				logger.Errorf("Failed to purge expired storage entries: %v", err)
				return
			}
			if n > 0 {
				logger.Debugf("Purged %d expired storage entries", n)
			}
		}); err != nil {
			return err
		}
	}
	if repo != nil {
		if err := s.AddJob("prune-events", PruneEventsSchedule, func() {
			if err := repo.RunMaintenance(retentionDays); err != nil {
				logger.Errorf("Database maintenance failed: %v", err)
			}
		}); err != nil {
			return err
		}
	}
	return nil
}

// AddJob schedules fn under name, replacing any job with the same name.
func (s *SchedulerService) AddJob(name, spec string, fn func()) error {
	if err := ValidateCronExpression(spec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[name]; ok {
		s.cron.Remove(old)
	}
	entryID, err := s.cron.AddFunc(spec, func() {
		logger.Debugf("Running scheduled job %s", name)
		fn()
	})
	if err != nil {
		return err
	}
	s.jobs[name] = entryID
	s.specs[name] = spec
	return nil
}

// RemoveJob unschedules name. Unknown names are ignored.
func (s *SchedulerService) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		delete(s.specs, name)
	}
}

// Jobs lists registered jobs sorted by name.
func (s *SchedulerService) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.specs))
	for name, spec := range s.specs {
		out = append(out, JobInfo{Name: name, Schedule: spec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RunNow runs a registered job synchronously.
func (s *SchedulerService) RunNow(name string) error {
	s.mu.Lock()
	entryID, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	s.cron.Entry(entryID).Job.Run()
	return nil
}

func (s *SchedulerService) Start() {
	logger.Infof("Starting Scheduler Service (%d jobs)...", len(s.Jobs()))
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *SchedulerService) Stop() {
	<-s.cron.Stop().Done()
}

// ValidateCronExpression checks a standard cron expression or descriptor.
func ValidateCronExpression(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}
