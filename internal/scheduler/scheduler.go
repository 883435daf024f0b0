package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"vocab-quiz-service/internal/domain"
)

// Roller is the day-boundary hook of the streak engine.
type Roller interface {
	Rollover() domain.StreakState
}

// Scheduler runs the streak rollover at every local midnight.
type Scheduler struct {
	cron   *gocron.Scheduler
	roller Roller
	log    logrus.FieldLogger
	job    *gocron.Job
}

// New creates a scheduler bound to the learner's time zone.
func New(roller Roller, loc *time.Location, log logrus.FieldLogger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	cron := gocron.NewScheduler(loc)
	cron.SingletonModeAll()
	return &Scheduler{
		cron:   cron,
		roller: roller,
		log:    log.WithField("component", "scheduler"),
	}
}

// Start runs a catch-up rollover for midnights missed while the process was down,
// then schedules the daily job and starts the scheduler in the background.
func (s *Scheduler) Start() error {
	s.rollover()

	job, err := s.cron.Every(1).Day().At("00:00").Tag("streak-rollover").Do(s.rollover)
	if err != nil {
		return fmt.Errorf("schedule rollover: %w", err)
	}
	s.job = job
	s.cron.StartAsync()
	s.log.WithField("next_run", job.NextRun()).Info("streak rollover scheduled")
	return nil
}

// Stop terminates all scheduled tasks.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// NextRun reports when the rollover fires next; zero before Start.
func (s *Scheduler) NextRun() time.Time {
	if s.job == nil {
		return time.Time{}
	}
	return s.job.NextRun()
}

func (s *Scheduler) rollover() {
	state := s.roller.Rollover()
	s.log.WithFields(logrus.Fields{"current": state.Current, "best": state.Best}).Debug("streak rollover")
}
