package client

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// Sender errors.
var (
	ErrSenderStarted    = errors.New("sender already started")
	ErrSenderNotStarted = errors.New("sender not started")
)

// DefaultInterval is the default pause between heartbeats.
const DefaultInterval = 10 * time.Second

// SenderConfig configures a heartbeat Sender.
type SenderConfig struct {
	// Client is the registry client to send heartbeats through.
	Client *Client

	// AgentURL identifies this agent to the registry.
	AgentURL string

	// Interval between heartbeats. Zero means DefaultInterval.
	Interval time.Duration

	// EvictionTimeout is the registry's heartbeat timeout, when known.
	// Validate rejects intervals that leave fewer than two heartbeats
	// per timeout window, since a single dropped request would then be
	// enough to get the agent evicted. Zero skips the check.
	EvictionTimeout time.Duration

	// OnRejected is called when the registry reports the agent as
	// unregistered. Typical use is re-registering the card. Optional.
	OnRejected func(ctx context.Context)

	// Logger for heartbeat activity. Nil means the default logger.
	Logger *log.Logger
}

// Validate checks the sender configuration.
func (c *SenderConfig) Validate() error {
	if c.Client == nil {
		return errors.New("client is required")
	}
	if c.AgentURL == "" {
		return errors.New("agent URL is required")
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative, got %v", c.Interval)
	}

	interval := c.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	if c.EvictionTimeout > 0 && 2*interval > c.EvictionTimeout {
		return fmt.Errorf("interval %v leaves fewer than two heartbeats per %v eviction timeout", interval, c.EvictionTimeout)
	}
	return nil
}

// Sender sends heartbeats to the registry on a fixed interval.
type Sender struct {
	client     *Client
	agentURL   string
	interval   time.Duration
	onRejected func(ctx context.Context)
	logger     *log.Logger

	running atomic.Bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// NewSender creates a heartbeat sender from the config.
func NewSender(cfg SenderConfig) (*Sender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	return &Sender{
		client:     cfg.Client,
		agentURL:   cfg.AgentURL,
		interval:   cfg.Interval,
		onRejected: cfg.OnRejected,
		logger:     cfg.Logger.WithPrefix("heartbeat"),
	}, nil
}

// Start begins heartbeating in the background. The first heartbeat goes
// out immediately so a freshly registered agent never starts its life
// already halfway to eviction.
func (s *Sender) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSenderStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.doneCh = make(chan struct{})

	go s.run(runCtx)
	return nil
}

// Stop halts heartbeating and waits for the loop to exit.
func (s *Sender) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return ErrSenderNotStarted
	}

	s.cancel()
	<-s.doneCh
	return nil
}

func (s *Sender) run(ctx context.Context) {
	defer close(s.doneCh)

	s.beat(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.beat(ctx)
		}
	}
}

func (s *Sender) beat(ctx context.Context) {
	err := s.client.Heartbeat(ctx, s.agentURL)
	if err == nil {
		s.logger.Debug("heartbeat sent", "url", s.agentURL)
		return
	}

	if errors.Is(err, ErrNotRegistered) {
		s.logger.Warn("registry no longer knows this agent", "url", s.agentURL)
		if s.onRejected != nil {
			s.onRejected(ctx)
		}
		return
	}

	if ctx.Err() != nil {
		return
	}

	// Transient failure; the next tick retries.
	s.logger.Error("heartbeat failed", "url", s.agentURL, "error", err)
}
