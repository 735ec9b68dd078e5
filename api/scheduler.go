/*
scheduler.go - Background approval refresh

PURPOSE:
  Periodically refreshes schedule instances from the source so approvals
  made by other clients (or by an approval whose caller went away) are
  reflected in the engine's per-key state without a user request.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Refreshes once immediately on start
  - Concurrent refreshes for the same actor share one fetch (singleflight
    inside Approver.Refresh), so a tick overlapping a user request is cheap
  - Errors are logged; the next tick retries

CONFIGURATION:
  - refresh.enabled, refresh.interval
  - refresh.restaurant_id, refresh.user_id: the actor refreshes run as

USAGE:
  s := NewRefreshScheduler(approver, actor, logger)
  s.Start()
  // ... later
  s.Stop()

SEE ALSO:
  - payout/approval.go: Approver.Refresh
*/
package api

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warp/payout-engine/payout"
	"go.uber.org/zap"
)

// RefreshScheduler reconciles approval state on an interval.
type RefreshScheduler struct {
	Approver *payout.Approver
	Actor    payout.Actor
	Interval time.Duration
	Enabled  bool
	Logger   *zap.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	runs   atomic.Int64
}

// NewRefreshScheduler creates a new scheduler.
func NewRefreshScheduler(approver *payout.Approver, actor payout.Actor, logger *zap.Logger) *RefreshScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshScheduler{
		Approver: approver,
		Actor:    actor,
		Interval: 5 * time.Minute,
		Enabled:  true,
		Logger:   logger.Named("refresh"),
	}
}

// Start begins the scheduler.
func (s *RefreshScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.Info("started", zap.Duration("interval", s.Interval))
}

// Stop stops the scheduler and waits for an in-progress refresh.
func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Logger.Info("stopped")
	}
}

// Runs reports how many refreshes have completed, successful or not.
func (s *RefreshScheduler) Runs() int {
	return int(s.runs.Load())
}

func (s *RefreshScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.refresh()

	for {
		select {
		case <-ticker.C:
			s.refresh()
		case <-stop:
			return
		}
	}
}

func (s *RefreshScheduler) refresh() {
	start := time.Now()
	instances, err := s.Approver.Refresh(context.Background(), s.Actor)
	if err != nil {
		s.Logger.Error("refresh failed", zap.Error(err))
	} else {
		approved := 0
		for _, inst := range instances {
			if inst.IsApproved {
				approved++
			}
		}
		s.Logger.Debug("refreshed",
			zap.Int("instances", len(instances)),
			zap.Int("approved", approved),
			zap.Duration("took", time.Since(start)),
		)
	}

	s.runs.Add(1)
}
