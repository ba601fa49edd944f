// Package registry provides an in-memory agent directory with
// liveness-based membership.
//
// Agents register a card describing themselves and refresh their staleness
// clock with periodic heartbeats. The Sweeper evicts members that stay
// silent longer than the configured timeout.
package registry

import (
	"errors"
	"time"
)

// Common errors.
var (
	ErrNotFound    = errors.New("agent not found")
	ErrClosed      = errors.New("registry closed")
	ErrInvalidCard = errors.New("invalid agent card")
)

// AgentCard is the registered metadata for one agent. URL is the identity
// key: re-registering the same URL replaces the prior card.
type AgentCard struct {
	// Name is a human-readable name. Not unique.
	Name string `json:"name"`

	// Description of what the agent does.
	Description string `json:"description"`

	// URL uniquely identifies the agent and is where it can be reached.
	URL string `json:"url"`

	// Version of the agent.
	Version string `json:"version"`

	// Capabilities is opaque to the registry; consumers interpret it.
	Capabilities map[string]any `json:"capabilities"`

	// Skills is opaque to the registry; consumers interpret it.
	Skills []map[string]any `json:"skills"`
}

// ValidateCard checks that the required string fields are present.
// Capabilities and skills are never inspected.
func ValidateCard(card AgentCard) error {
	if card.Name == "" || card.Description == "" || card.URL == "" || card.Version == "" {
		return ErrInvalidCard
	}
	return nil
}

// EventType represents the type of registry event.
type EventType string

const (
	EventRegistered   EventType = "registered"
	EventUpdated      EventType = "updated"
	EventUnregistered EventType = "unregistered"
	EventEvicted      EventType = "evicted"
)

// Event represents a change in the registry.
type Event struct {
	// Type indicates what happened.
	Type EventType

	// Card contains the agent card. For removal events this is the last
	// known state.
	Card AgentCard
}

// Store is the authoritative url -> (card, last-seen) mapping. All
// operations are atomic with respect to each other.
type Store interface {
	// Register inserts or replaces the card for card.URL and sets its
	// last-seen timestamp to now. Last write wins.
	Register(card AgentCard) error

	// Unregister removes the entry for url. Removing an absent url is a
	// no-op, not an error.
	Unregister(url string) error

	// Get returns the card for url, or ErrNotFound.
	Get(url string) (*AgentCard, error)

	// List returns all registered cards as a snapshot at call time.
	List() ([]AgentCard, error)

	// Touch refreshes the last-seen timestamp for url.
	// Returns ErrNotFound if the url is not registered.
	Touch(url string) error

	// Snapshot returns a copy of the url -> last-seen mapping.
	Snapshot() (map[string]time.Time, error)

	// Watch returns a channel of registry events. The channel is closed
	// when the store is closed. Multiple watchers are supported.
	Watch() (<-chan Event, error)

	// Close shuts down the store and closes all watcher channels.
	Close() error
}
