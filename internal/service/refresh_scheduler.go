package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type enrollmentReloader interface {
	Load(ctx context.Context) LoadReport
}

// RefreshScheduler reloads enrollments on a cron schedule. Reloads never
// overlap; a tick that fires while one is running is skipped.
type RefreshScheduler struct {
	cron     *cron.Cron
	reloader enrollmentReloader
	timeout  time.Duration
	logger   *zap.Logger
	mu       sync.Mutex
	running  bool
}

// NewRefreshScheduler registers the reload job. An empty schedule returns a
// nil scheduler, whose Start and Stop are no-ops.
func NewRefreshScheduler(schedule string, reloader enrollmentReloader, timeout time.Duration, logger *zap.Logger) (*RefreshScheduler, error) {
	if schedule == "" {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	s := &RefreshScheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		reloader: reloader,
		timeout:  timeout,
		logger:   logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins scheduling.
func (s *RefreshScheduler) Start() {
	if s == nil {
		return
	}
	s.cron.Start()
	s.logger.Info("enrollment refresh scheduler started", zap.Int("entries", len(s.cron.Entries())))
}

// Stop halts scheduling and waits for a running reload.
func (s *RefreshScheduler) Stop() {
	if s == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *RefreshScheduler) tick() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Debug("enrollment refresh still running, skipping tick")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	report := s.reloader.Load(ctx)
	s.logger.Info("scheduled enrollment refresh",
		zap.Uint64("version", report.Snapshot.Version),
		zap.String("tier", string(report.Snapshot.Tier)),
		zap.Bool("degraded", report.Snapshot.Degraded),
		zap.Strings("warnings", report.Warnings))
}
