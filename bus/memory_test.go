package bus

import (
	"errors"
	"testing"
	"time"
)

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	b := NewMemoryBus(Config{})
	defer b.Close()

	sub, err := b.Subscribe("registry.agent.evicted")
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}

	if err := b.Publish("registry.agent.evicted", []byte("http://a")); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	select {
	case msg := <-sub.Messages():
		if string(msg.Data) != "http://a" {
			t.Errorf("Data = %q, want %q", msg.Data, "http://a")
		}
		if msg.Subject != "registry.agent.evicted" {
			t.Errorf("Subject = %q", msg.Subject)
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for message")
	}
}

func TestMemoryBus_SubjectIsolation(t *testing.T) {
	b := NewMemoryBus(Config{})
	defer b.Close()

	sub, _ := b.Subscribe("registry.agent.registered")

	b.Publish("registry.agent.evicted", []byte("x"))

	select {
	case msg := <-sub.Messages():
		t.Errorf("received message for foreign subject: %v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_MultipleSubscribers(t *testing.T) {
	b := NewMemoryBus(Config{})
	defer b.Close()

	sub1, _ := b.Subscribe("events")
	sub2, _ := b.Subscribe("events")

	b.Publish("events", []byte("hello"))

	for i, sub := range []Subscription{sub1, sub2} {
		select {
		case msg := <-sub.Messages():
			if string(msg.Data) != "hello" {
				t.Errorf("subscriber %d: Data = %q", i, msg.Data)
			}
		case <-time.After(time.Second):
			t.Errorf("subscriber %d: timeout", i)
		}
	}
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	b := NewMemoryBus(Config{})
	defer b.Close()

	sub, _ := b.Subscribe("events")
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe error: %v", err)
	}

	// Publishing after unsubscribe must not panic on the closed channel.
	if err := b.Publish("events", []byte("x")); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	if _, ok := <-sub.Messages(); ok {
		t.Error("channel should be closed after Unsubscribe")
	}
}

func TestMemoryBus_InvalidSubject(t *testing.T) {
	b := NewMemoryBus(Config{})
	defer b.Close()

	if err := b.Publish("", nil); !errors.Is(err, ErrInvalidSubject) {
		t.Errorf("Publish: expected ErrInvalidSubject, got %v", err)
	}
	if _, err := b.Subscribe(""); !errors.Is(err, ErrInvalidSubject) {
		t.Errorf("Subscribe: expected ErrInvalidSubject, got %v", err)
	}
}

func TestMemoryBus_Closed(t *testing.T) {
	b := NewMemoryBus(Config{})
	sub, _ := b.Subscribe("events")
	b.Close()

	if err := b.Publish("events", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish: expected ErrClosed, got %v", err)
	}
	if _, err := b.Subscribe("events"); !errors.Is(err, ErrClosed) {
		t.Errorf("Subscribe: expected ErrClosed, got %v", err)
	}

	if _, ok := <-sub.Messages(); ok {
		t.Error("subscription channel should be closed when the bus closes")
	}

	// Second close is a no-op.
	if err := b.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}
}

func TestMemoryBus_BufferOverflowDrops(t *testing.T) {
	b := NewMemoryBus(Config{BufferSize: 2})
	defer b.Close()

	sub, _ := b.Subscribe("events")

	for i := 0; i < 10; i++ {
		b.Publish("events", []byte{byte(i)})
	}

	// Only the buffered messages survive; the rest are dropped, not blocked.
	count := 0
	for {
		select {
		case <-sub.Messages():
			count++
		case <-time.After(50 * time.Millisecond):
			if count != 2 {
				t.Errorf("received %d messages, want 2 (buffer size)", count)
			}
			return
		}
	}
}
