package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/ender-local/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler runs the periodic backup of every instance.
type Scheduler struct {
	backupSvc services.BackupServiceProvider
	eventSvc  services.EventServiceProvider
	spec      string
	cron      *cron.Cron
}

// NewScheduler creates a scheduler for the given standard cron spec. An
// empty spec yields a scheduler that never fires.
func NewScheduler(spec string, backupSvc services.BackupServiceProvider, eventSvc services.EventServiceProvider) (*Scheduler, error) {
	s := &Scheduler{
		backupSvc: backupSvc,
		eventSvc:  eventSvc,
		spec:      spec,
		cron:      cron.New(),
	}
	if spec == "" {
		return s, nil
	}
	if _, err := s.cron.AddFunc(spec, s.runBackups); err != nil {
		return nil, fmt.Errorf("invalid backup schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	if s.spec == "" {
		log.Info().Msg("No backup schedule configured; scheduler idle")
		return
	}
	log.Info().Str("schedule", s.spec).Msg("Starting backup scheduler...")
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running job until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		log.Info().Msg("Stopping backup scheduler.")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Spec returns the configured cron spec, "" when disabled.
func (s *Scheduler) Spec() string {
	return s.spec
}

// Next returns the next planned run. ok is false when nothing is scheduled
// or the scheduler has not been started.
func (s *Scheduler) Next() (next time.Time, ok bool) {
	entries := s.cron.Entries()
	if len(entries) == 0 || entries[0].Next.IsZero() {
		return time.Time{}, false
	}
	return entries[0].Next, true
}

// RunNow backs up every instance immediately, outside the schedule.
func (s *Scheduler) RunNow() (int, error) {
	return s.run(services.TriggerManual)
}

func (s *Scheduler) runBackups() {
	s.run(services.TriggerScheduled)
}

func (s *Scheduler) run(trigger string) (int, error) {
	n, err := s.backupSvc.BackupAll(trigger)
	if err != nil {
		log.Error().Err(err).Int("succeeded", n).Str("trigger", trigger).Msg("Scheduler: backup run finished with errors")
		s.recordEvent("schedule.backup.fail", "error", fmt.Sprintf("Backup run failed: %v", err))
		return n, err
	}
	log.Info().Int("backups", n).Str("trigger", trigger).Msg("Scheduler: backup run finished")
	s.recordEvent("schedule.backup.success", "info", fmt.Sprintf("Backup run archived %d servers.", n))
	return n, nil
}

func (s *Scheduler) recordEvent(eventType, level, message string) {
	if s.eventSvc == nil {
		return
	}
	if err := s.eventSvc.CreateEvent(eventType, level, message, nil); err != nil {
		log.Warn().Err(err).Msg("Scheduler: failed to record event")
	}
}
