// Package route picks the registered agent best suited for a query.
//
// The router fetches the current agent list from the registry, presents
// each agent's name, description and capabilities to a language model,
// and resolves the model's pick back to the agent's URL. The model is
// behind the Completer interface so tests can route without network or
// API keys.
package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/beaconhq/beacon/registry"
)

// Routing errors.
var (
	// ErrNoAgents is returned when the registry has no live agents.
	ErrNoAgents = errors.New("no agents available")

	// ErrUnknownAgent is returned when the model names an agent the
	// registry does not have.
	ErrUnknownAgent = errors.New("model picked an unknown agent")
)

const systemPrompt = "You are a helpful assistant that responds in JSON."

// Completer produces a JSON completion for a routing prompt.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// AgentSource supplies the current set of registered agents. Satisfied
// by client.Client.
type AgentSource interface {
	Agents(ctx context.Context) ([]registry.AgentCard, error)
}

// Match is a routing decision resolved to a concrete agent.
type Match struct {
	URL        string
	Name       string
	Confidence float64
}

// Router selects agents for queries.
type Router struct {
	agents    AgentSource
	completer Completer
	logger    *log.Logger
}

// NewRouter creates a router over the given agent source and completer.
func NewRouter(agents AgentSource, completer Completer, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Default()
	}

	return &Router{
		agents:    agents,
		completer: completer,
		logger:    logger.WithPrefix("router"),
	}
}

// BestAgent returns the agent best suited to handle the query.
func (r *Router) BestAgent(ctx context.Context, query string) (Match, error) {
	agents, err := r.agents.Agents(ctx)
	if err != nil {
		return Match{}, fmt.Errorf("list agents: %w", err)
	}
	if len(agents) == 0 {
		return Match{}, ErrNoAgents
	}

	raw, err := r.completer.Complete(ctx, systemPrompt, buildPrompt(query, agents))
	if err != nil {
		return Match{}, fmt.Errorf("routing decision: %w", err)
	}

	var decision struct {
		AgentName  string  `json:"agent_name"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		return Match{}, fmt.Errorf("parse routing decision %q: %w", raw, err)
	}

	for _, a := range agents {
		if a.Name == decision.AgentName {
			r.logger.Info("routed query", "agent", a.Name, "confidence", decision.Confidence)
			return Match{URL: a.URL, Name: a.Name, Confidence: decision.Confidence}, nil
		}
	}

	return Match{}, fmt.Errorf("%w: %q", ErrUnknownAgent, decision.AgentName)
}

// buildPrompt renders the query and the agent roster into the routing
// prompt. Capabilities go in verbatim as JSON.
func buildPrompt(query string, agents []registry.AgentCard) string {
	descriptions := make([]string, 0, len(agents))
	for _, a := range agents {
		caps, err := json.Marshal(a.Capabilities)
		if err != nil {
			caps = []byte("{}")
		}
		descriptions = append(descriptions, fmt.Sprintf(
			"Agent Name: %s\nDescription: %s\nCapabilities: %s",
			a.Name, a.Description, caps,
		))
	}

	var b strings.Builder
	b.WriteString("You are an intelligent router responsible for routing user queries to the correct agent.\n")
	b.WriteString("Based on the user's query and the available agents' capabilities, determine the best agent to handle the query.\n\n")
	fmt.Fprintf(&b, "User Query: %q\n\n", query)
	b.WriteString("Available Agents:\n---\n")
	b.WriteString(strings.Join(descriptions, "\n---\n"))
	b.WriteString("\n---\n\n")
	b.WriteString("Please respond with a JSON object containing the 'agent_name' of the most suitable agent and a 'confidence' score (from 0.0 to 1.0).")
	return b.String()
}
