// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version  string
	runCount func() int
}

// NewHealthHandler creates a new health handler. runCount may be nil.
func NewHealthHandler(version string, runCount func() int) HealthHandler {
	return &HealthHandlerImpl{
		version:  version,
		runCount: runCount,
	}
}

type healthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	StoredRuns int    `json:"storedRuns"`
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := healthResponse{Status: "ok", Version: h.version}
	if h.runCount != nil {
		resp.StoredRuns = h.runCount()
	}
	return c.JSON(http.StatusOK, resp)
}
