package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestShutdownRunsHandlersInReverseOrder(t *testing.T) {
	c := NewCoordinator(time.Second, nil)

	var order []string
	for _, name := range []string{"bus", "store", "server"} {
		n := name
		c.Register(n, func(ctx context.Context) error {
			order = append(order, n)
			return nil
		})
	}

	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown error: %v", err)
	}

	want := []string{"server", "store", "bus"}
	if len(order) != len(want) {
		t.Fatalf("ran %d handlers, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestShutdownContinuesPastFailure(t *testing.T) {
	c := NewCoordinator(time.Second, nil)

	ran := false
	c.Register("first", func(ctx context.Context) error {
		ran = true
		return nil
	})
	c.Register("broken", func(ctx context.Context) error {
		return errors.New("close failed")
	})

	err := c.Shutdown()
	if err == nil {
		t.Fatal("expected failure to surface")
	}
	if !ran {
		t.Error("handler after the failing one never ran")
	}
}

func TestShutdownOnlyOnce(t *testing.T) {
	c := NewCoordinator(time.Second, nil)

	count := 0
	c.Register("counter", func(ctx context.Context) error {
		count++
		return nil
	})

	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown error: %v", err)
	}
	if err := c.Shutdown(); err != nil {
		t.Fatalf("repeat Shutdown error: %v", err)
	}
	if count != 1 {
		t.Errorf("handlers ran %d times, want 1", count)
	}
}

func TestShutdownTimeout(t *testing.T) {
	c := NewCoordinator(20*time.Millisecond, nil)

	c.Register("never-reached", func(ctx context.Context) error {
		return nil
	})
	c.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return ctx.Err()
	})

	if err := c.Shutdown(); !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
}

func TestTriggerInitiatesShutdown(t *testing.T) {
	c := NewCoordinator(time.Second, nil)
	c.Register("noop", func(ctx context.Context) error { return nil })

	c.HandleSignals()
	c.Trigger()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("shutdown never completed after Trigger")
	}

	if err := c.Err(); err != nil {
		t.Errorf("Err = %v", err)
	}
}
