package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SchedulerService wraps cron-based jobs.
type SchedulerService struct {
	cron *cron.Cron
}

// NewSchedulerService builds the cron runner. A job still running when its
// next tick arrives skips that tick.
func NewSchedulerService(loc *time.Location, log zerolog.Logger) *SchedulerService {
	cronLog := log.With().Str("component", "cron").Logger()
	logger := cron.PrintfLogger(&cronLog)
	return &SchedulerService{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
}

// ScheduleDaily registers a daily job at the given HH:MM time string.
func (s *SchedulerService) ScheduleDaily(timeStr string, job func()) (cron.EntryID, error) {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

// ScheduleTick registers job on wall-clock boundaries of interval (every hour
// on the hour for 1h). Intervals that do not divide a day fall back to @every.
func (s *SchedulerService) ScheduleTick(interval time.Duration, job func()) (cron.EntryID, error) {
	spec, err := buildTickSpec(interval)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}

func buildTickSpec(interval time.Duration) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("interval must be positive")
	}
	switch {
	case interval == 24*time.Hour:
		return "0 0 0 * * *", nil
	case interval%time.Hour == 0 && (24*time.Hour)%interval == 0:
		return fmt.Sprintf("0 0 */%d * * *", int(interval.Hours())), nil
	case interval%time.Minute == 0 && time.Hour%interval == 0:
		return fmt.Sprintf("0 */%d * * * *", int(interval.Minutes())), nil
	default:
		return fmt.Sprintf("@every %ds", int(interval.Seconds())), nil
	}
}
