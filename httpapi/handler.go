package httpapi

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"github.com/beaconhq/beacon/registry"
)

// Handler serves the registry routes.
type Handler struct {
	store  registry.Store
	logger *log.Logger
}

// NewHandler creates a handler backed by the given store.
func NewHandler(store registry.Store, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	return &Handler{
		store:  store,
		logger: logger.WithPrefix("http"),
	}
}

// RegisterRoutes attaches all registry routes to the echo instance.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/registry/register", h.RegisterAgent)
	e.GET("/registry/agents", h.ListAgents)
	e.GET("/registry/agents/:url", h.GetAgent)
	e.POST("/registry/heartbeat", h.Heartbeat)
	e.GET("/health", h.Health)
}

// HeartbeatRequest is the body of a heartbeat call.
type HeartbeatRequest struct {
	URL string `json:"url"`
}

// HeartbeatResponse is the structured acknowledgment for a heartbeat.
type HeartbeatResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RegisterAgent registers a new agent or overwrites an existing one.
// POST /registry/register
func (h *Handler) RegisterAgent(c echo.Context) error {
	var card registry.AgentCard
	if err := c.Bind(&card); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if err := h.store.Register(card); err != nil {
		if errors.Is(err, registry.ErrInvalidCard) {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "name, description, url and version are required",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	h.logger.Info("agent registered", "name", card.Name, "url", card.URL)
	return c.JSON(http.StatusCreated, card)
}

// ListAgents lists all currently registered agents.
// GET /registry/agents
func (h *Handler) ListAgents(c echo.Context) error {
	agents, err := h.store.List()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, agents)
}

// GetAgent returns one agent by URL. Agent URLs contain slashes, so the
// path parameter must be percent-encoded; ?url= is accepted as a fallback.
// GET /registry/agents/:url
func (h *Handler) GetAgent(c echo.Context) error {
	raw := c.Param("url")
	if q := c.QueryParam("url"); q != "" {
		raw = q
	}

	agentURL, err := url.PathUnescape(raw)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed url parameter"})
	}

	card, err := h.store.Get(agentURL)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "agent with URL '" + agentURL + "' not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, card)
}

// Heartbeat refreshes an agent's staleness clock. Unknown agents get a
// structured negative acknowledgment and are expected to re-register.
// POST /registry/heartbeat
func (h *Handler) Heartbeat(c echo.Context) error {
	var req HeartbeatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, HeartbeatResponse{Success: false, Error: "invalid request body"})
	}
	if req.URL == "" {
		return c.JSON(http.StatusBadRequest, HeartbeatResponse{Success: false, Error: "url is required"})
	}

	if err := h.store.Touch(req.URL); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			h.logger.Warn("heartbeat from unregistered agent", "url", req.URL)
			return c.JSON(http.StatusNotFound, HeartbeatResponse{
				Success: false,
				Error:   "agent not registered",
			})
		}
		return c.JSON(http.StatusInternalServerError, HeartbeatResponse{Success: false, Error: err.Error()})
	}

	h.logger.Debug("heartbeat", "url", req.URL)
	return c.JSON(http.StatusOK, HeartbeatResponse{Success: true})
}

// Health is the liveness probe for the registry process itself,
// independent of agent liveness.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}
