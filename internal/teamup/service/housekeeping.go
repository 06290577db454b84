package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/teamup/internal/teamup/store"
	"github.com/robfig/cron/v3"
)

// HousekeepingService periodically wipes one-time codes that expired without
// being used.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// Now defaults to time.Now.
	Now func() time.Time

	cron *cron.Cron
	wg   sync.WaitGroup
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		cron:     cron.New(cron.WithLogger(cronLogger{logger.With("component", "cron")})),
	}
}

// Start schedules the cleanup job and runs it once right away. It is
// non-blocking; call Stop to shut the scheduler down.
func (s *HousekeepingService) Start() error {
	spec := fmt.Sprintf("@every %s", s.Interval)
	if _, err := s.cron.AddFunc(spec, s.cleanup); err != nil {
		return fmt.Errorf("schedule housekeeping: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.cleanup()
	}()
	s.cron.Start()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
	return nil
}

// Stop waits for a running cleanup to finish, up to 30 seconds.
func (s *HousekeepingService) Stop() {
	ctx, cancel := context.WithTimeout(s.cron.Stop(), 30*time.Second)
	defer cancel()
	<-ctx.Done()
	s.wg.Wait()
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) cleanup() {
	if _, err := s.RunOnce(context.Background()); err != nil {
		s.Logger.Error("failed to clear expired otps", "error", err)
	}
}

// RunOnce clears expired codes and returns how many users were touched.
func (s *HousekeepingService) RunOnce(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}

	n, err := s.Store.Users().ClearExpiredOTPs(ctx, now)
	if err != nil {
		return 0, err
	}
	s.Logger.Debug("housekeeping cleanup completed", "cleared_otps", n)
	return n, nil
}

// cronLogger routes the scheduler's own messages to slog.
type cronLogger struct {
	logger *slog.Logger
}

// Info logs routine messages about cron's operation.
func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
