// Package shutdown coordinates graceful teardown of the registry
// process. Handlers run sequentially in reverse registration order, so
// registering in startup order stops the outermost surface first: the
// HTTP listener goes down before the sweeper, the sweeper before the
// store, the store before the bus.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
)

// Common errors.
var (
	// ErrAlreadyShutdown indicates shutdown was already initiated.
	ErrAlreadyShutdown = errors.New("shutdown already initiated")

	// ErrTimeout indicates shutdown did not complete within the timeout.
	ErrTimeout = errors.New("shutdown timeout exceeded")
)

// DefaultTimeout bounds the whole shutdown sequence.
const DefaultTimeout = 10 * time.Second

// Handler tears down one component. The context is cancelled when the
// shutdown timeout is reached.
type Handler func(ctx context.Context) error

// Coordinator runs registered handlers on shutdown.
type Coordinator struct {
	timeout time.Duration
	logger  *log.Logger

	mu       sync.Mutex
	handlers []registration
	once     sync.Once
	err      error
	done     chan struct{}
	sigCh    chan os.Signal
}

type registration struct {
	name    string
	handler Handler
}

// NewCoordinator creates a coordinator. Zero timeout means
// DefaultTimeout.
func NewCoordinator(timeout time.Duration, logger *log.Logger) *Coordinator {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Coordinator{
		timeout: timeout,
		logger:  logger.WithPrefix("shutdown"),
		done:    make(chan struct{}),
		sigCh:   make(chan os.Signal, 1),
	}
}

// Register adds a named handler. Handlers run in reverse registration
// order.
func (c *Coordinator) Register(name string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, registration{name: name, handler: handler})
}

// HandleSignals triggers shutdown on SIGTERM or SIGINT. Call before the
// signals are expected.
func (c *Coordinator) HandleSignals() {
	signal.Notify(c.sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-c.sigCh
		c.logger.Info("signal received, shutting down", "signal", sig)
		_ = c.Shutdown()
	}()
}

// Shutdown runs all handlers. Returns ErrAlreadyShutdown on repeat
// calls, ErrTimeout if the sequence overruns the configured timeout.
func (c *Coordinator) Shutdown() error {
	first := false
	c.once.Do(func() {
		first = true
		c.err = c.run()
		close(c.done)
	})

	if !first {
		select {
		case <-c.done:
			return c.err
		default:
			return ErrAlreadyShutdown
		}
	}
	return c.err
}

// Trigger requests shutdown as if a signal arrived.
func (c *Coordinator) Trigger() {
	select {
	case c.sigCh <- syscall.SIGTERM:
	default:
	}
}

// Done is closed when shutdown completes.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err reports the shutdown error. Only valid after Done is closed.
func (c *Coordinator) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Coordinator) run() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	c.mu.Lock()
	handlers := make([]registration, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	var failed error
	for i := len(handlers) - 1; i >= 0; i-- {
		reg := handlers[i]

		select {
		case <-ctx.Done():
			c.logger.Error("shutdown timed out", "remaining", i+1)
			return ErrTimeout
		default:
		}

		start := time.Now()
		if err := reg.handler(ctx); err != nil {
			c.logger.Error("handler failed", "name", reg.name, "error", err)
			if failed == nil {
				failed = err
			}
			continue
		}
		c.logger.Debug("handler done", "name", reg.name, "took", time.Since(start))
	}

	return failed
}
