package services

import (
	"sync"
	"time"

	"github.com/cortexui/dashboard/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Scheduler runs the dashboard's housekeeping jobs.
type Scheduler struct {
	cronScheduler *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		cronScheduler: cron.New(),
		entries:       make(map[string]cron.EntryID),
	}
}

// Add registers fn under name, replacing an earlier job with the same name.
func (s *Scheduler) Add(name, spec string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[name]; ok {
		s.cronScheduler.Remove(id)
		delete(s.entries, name)
	}

	entryID, err := s.cronScheduler.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Str("job", name).Msg("[Scheduler] job panicked")
			}
		}()
		fn()
	})
	if err != nil {
		logger.Errorf("[Scheduler] Failed to add job %s (%s): %v", name, spec, err)
		return err
	}

	s.entries[name] = entryID
	logger.Infof("[Scheduler] Job %s scheduled (%s)", name, spec)
	return nil
}

func (s *Scheduler) Start() {
	s.cronScheduler.Start()
	logger.Info().Int("jobs", s.Jobs()).Msg("[Scheduler] started")
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cronScheduler.Stop().Done()
}

func (s *Scheduler) Jobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RunClaimer claims one window of a job across dashboard instances.
type RunClaimer interface {
	ClaimRun(job, window string) (bool, error)
}

// Exclusive wraps fn so that only the instance claiming the current window
// of length every runs it.
func Exclusive(c RunClaimer, name string, every time.Duration, fn func()) func() {
	return func() {
		window := time.Now().UTC().Truncate(every).Format(time.RFC3339)
		ok, err := c.ClaimRun(name, window)
		if err != nil {
			logger.Warn().Err(err).Str("job", name).Msg("[Scheduler] could not claim run")
			return
		}
		if !ok {
			logger.Debug().Str("job", name).Str("window", window).Msg("[Scheduler] run claimed by another instance")
			return
		}
		fn()
	}
}
