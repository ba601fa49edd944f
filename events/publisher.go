// Package events publishes registry changes onto a message bus so that
// operators can observe registrations and evictions without polling the
// HTTP API. The registry itself never consumes these events.
package events

import (
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/beaconhq/beacon/bus"
	"github.com/beaconhq/beacon/registry"
)

// SubjectPrefix is the subject prefix for registry events.
// The event type is appended, e.g. "registry.agent.evicted".
const SubjectPrefix = "registry.agent."

// Publisher errors.
var (
	ErrAlreadyStarted = errors.New("publisher already started")
	ErrNotStarted     = errors.New("publisher not started")
)

// Envelope is the JSON payload published per registry event.
type Envelope struct {
	// ID uniquely identifies this event.
	ID string `json:"id"`

	// Type is the registry event type.
	Type registry.EventType `json:"type"`

	// Timestamp when the event was published.
	Timestamp time.Time `json:"timestamp"`

	// Card is the agent card the event refers to.
	Card registry.AgentCard `json:"card"`
}

// Subject returns the subject for this envelope.
func (e *Envelope) Subject() string {
	return SubjectPrefix + string(e.Type)
}

// Publisher forwards store watch events to a message bus.
type Publisher struct {
	store  registry.Store
	bus    bus.MessageBus
	logger *log.Logger

	running atomic.Bool
	doneCh  chan struct{}
}

// NewPublisher creates a publisher for the given store and bus.
func NewPublisher(store registry.Store, b bus.MessageBus, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.Default()
	}

	return &Publisher{
		store:  store,
		bus:    b,
		logger: logger.WithPrefix("events"),
	}
}

// Start begins forwarding events. The forwarding goroutine exits when the
// store closes its watch channel.
func (p *Publisher) Start() error {
	if p.running.Swap(true) {
		return ErrAlreadyStarted
	}

	watch, err := p.store.Watch()
	if err != nil {
		p.running.Store(false)
		return err
	}

	p.doneCh = make(chan struct{})
	go p.run(watch)
	return nil
}

// run forwards events until the watch channel closes.
func (p *Publisher) run(watch <-chan registry.Event) {
	defer close(p.doneCh)

	for event := range watch {
		if err := p.publish(event); err != nil {
			// Event fan-out is best effort; the store stays authoritative.
			p.logger.Warn("failed to publish registry event",
				"type", event.Type, "url", event.Card.URL, "err", err)
		}
	}
}

// publish wraps a registry event in an envelope and publishes it.
func (p *Publisher) publish(event registry.Event) error {
	env := Envelope{
		ID:        uuid.NewString(),
		Type:      event.Type,
		Timestamp: time.Now().UTC(),
		Card:      event.Card,
	}

	data, err := json.Marshal(&env)
	if err != nil {
		return err
	}

	return p.bus.Publish(env.Subject(), data)
}

// Stop waits for the forwarding goroutine to drain. The store must be
// closed first; Stop does not close the watch channel itself.
func (p *Publisher) Stop() error {
	if !p.running.Swap(false) {
		return ErrNotStarted
	}
	<-p.doneCh
	return nil
}
