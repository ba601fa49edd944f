// Package httpapi binds the registry store to its HTTP surface.
package httpapi

import (
	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/beaconhq/beacon/registry"
)

// NewServer creates and configures the registry HTTP server.
func NewServer(store registry.Store, logger *log.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Handlers
	h := NewHandler(store, logger)
	h.RegisterRoutes(e)

	return e
}
