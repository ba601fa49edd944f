// Package client talks to a registry server over HTTP. It covers the
// full surface: registration, heartbeats, lookups and the health probe.
// Sender layers periodic heartbeating on top of Client.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/beaconhq/beacon/registry"
)

// Client errors.
var (
	// ErrNotRegistered is returned when the registry does not know the
	// agent. The caller should re-register.
	ErrNotRegistered = errors.New("agent not registered")

	// ErrNotFound is returned when a lookup misses.
	ErrNotFound = errors.New("agent not found")
)

// DefaultTimeout bounds individual registry calls.
const DefaultTimeout = 5 * time.Second

// Client is an HTTP client for a registry server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the registry at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// NewWithHTTPClient creates a client with a caller-supplied http.Client,
// useful for custom transports and tests.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: baseURL, http: hc}
}

// Register announces the agent card to the registry. The registry
// overwrites any existing entry for the same URL.
func (c *Client) Register(ctx context.Context, card registry.AgentCard) (registry.AgentCard, error) {
	var out registry.AgentCard

	body, err := json.Marshal(card)
	if err != nil {
		return out, fmt.Errorf("marshal card: %w", err)
	}

	resp, err := c.post(ctx, "/registry/register", body)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return out, fmt.Errorf("register: %s", readError(resp))
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode register response: %w", err)
	}
	return out, nil
}

// RegisterWithRetry registers the card, retrying with a fixed backoff
// until it succeeds, attempts are exhausted, or the context ends.
// Covers the common case of an agent starting before the registry.
func (c *Client) RegisterWithRetry(ctx context.Context, card registry.AgentCard, attempts int, backoff time.Duration) (registry.AgentCard, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return registry.AgentCard{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		out, err := c.Register(ctx, card)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return registry.AgentCard{}, fmt.Errorf("register after %d attempts: %w", attempts, lastErr)
}

// Heartbeat refreshes the agent's liveness clock. Returns
// ErrNotRegistered when the registry no longer knows the agent,
// typically after an eviction.
func (c *Client) Heartbeat(ctx context.Context, agentURL string) error {
	body, err := json.Marshal(map[string]string{"url": agentURL})
	if err != nil {
		return fmt.Errorf("marshal heartbeat: %w", err)
	}

	resp, err := c.post(ctx, "/registry/heartbeat", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrNotRegistered
	default:
		return fmt.Errorf("heartbeat: %s", readError(resp))
	}
}

// Agents lists all registered agents.
func (c *Client) Agents(ctx context.Context) ([]registry.AgentCard, error) {
	resp, err := c.get(ctx, "/registry/agents")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list agents: %s", readError(resp))
	}

	var agents []registry.AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&agents); err != nil {
		return nil, fmt.Errorf("decode agents: %w", err)
	}
	return agents, nil
}

// Agent fetches one agent by URL.
func (c *Client) Agent(ctx context.Context, agentURL string) (registry.AgentCard, error) {
	var card registry.AgentCard

	resp, err := c.get(ctx, "/registry/agents/"+url.PathEscape(agentURL))
	if err != nil {
		return card, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return card, ErrNotFound
	default:
		return card, fmt.Errorf("get agent: %s", readError(resp))
	}

	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return card, fmt.Errorf("decode agent: %w", err)
	}
	return card, nil
}

// Health probes the registry process.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.get(ctx, "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return c.http.Do(req)
}

// readError extracts a short error string from a failed response.
func readError(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(data) == 0 {
		return fmt.Sprintf("status %d", resp.StatusCode)
	}

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return fmt.Sprintf("status %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Sprintf("status %d: %s", resp.StatusCode, string(data))
}
