package registry

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// Sweeper errors.
var (
	ErrSweeperStarted    = errors.New("sweeper already started")
	ErrSweeperNotStarted = errors.New("sweeper not started")
)

// SweeperConfig configures the liveness sweeper.
type SweeperConfig struct {
	// Timeout is how long an agent may stay silent before eviction.
	// Default: 30 seconds
	Timeout time.Duration

	// Interval between sweep cycles.
	// Default: 10 seconds
	Interval time.Duration

	// Logger for eviction and cycle-error output. Defaults to log.Default().
	Logger *log.Logger
}

// DefaultSweeperConfig returns the default sweeper configuration.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Timeout:  30 * time.Second,
		Interval: 10 * time.Second,
	}
}

// Sweeper periodically evicts agents whose last heartbeat is older than the
// timeout. A single goroutine runs the cycles, so a cycle never overlaps
// with itself. Errors inside a cycle are logged and swallowed; the next
// tick is the retry mechanism.
type Sweeper struct {
	store    *MemoryStore
	timeout  time.Duration
	interval time.Duration
	logger   *log.Logger

	running atomic.Bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// NewSweeper creates a sweeper for the given store.
func NewSweeper(store *MemoryStore, cfg SweeperConfig) *Sweeper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSweeperConfig().Timeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweeperConfig().Interval
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	return &Sweeper{
		store:    store,
		timeout:  cfg.Timeout,
		interval: cfg.Interval,
		logger:   cfg.Logger.WithPrefix("sweeper"),
	}
}

// Start launches the sweep loop. The loop stops when ctx is cancelled or
// Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.running.Swap(true) {
		return ErrSweeperStarted
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.doneCh = make(chan struct{})

	go s.run(ctx)
	return nil
}

// run executes sweep cycles until cancelled.
func (s *Sweeper) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.running.Store(false)
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep runs one eviction pass. Any error is logged and swallowed so the
// loop always reaches the next cycle.
func (s *Sweeper) sweep() {
	now := s.store.now()

	snapshot, err := s.store.Snapshot()
	if err != nil {
		s.logger.Error("sweep cycle failed", "err", err)
		return
	}

	cutoff := now.Add(-s.timeout)
	for _, url := range StaleURLs(snapshot, now, s.timeout) {
		if s.store.evictIfStale(url, cutoff) {
			s.logger.Warn("evicted stale agent",
				"url", url,
				"silent_for", now.Sub(snapshot[url]).Round(time.Millisecond),
				"timeout", s.timeout)
		}
	}
}

// Stop cancels the sweep loop and waits for the in-flight cycle to finish.
func (s *Sweeper) Stop() error {
	if !s.running.Swap(false) {
		return ErrSweeperNotStarted
	}
	s.cancel()
	<-s.doneCh
	return nil
}

// StaleURLs returns the urls whose last-seen timestamp is older than
// timeout relative to now. Pure function so the eviction rule is testable
// without timers or a live store.
func StaleURLs(snapshot map[string]time.Time, now time.Time, timeout time.Duration) []string {
	var stale []string
	for url, lastSeen := range snapshot {
		if now.Sub(lastSeen) > timeout {
			stale = append(stale, url)
		}
	}
	return stale
}
