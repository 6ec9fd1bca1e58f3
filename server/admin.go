package server

import (
	"net/http"

	"botgateway/helpers"
	"botgateway/interfaces"

	"github.com/go-kit/log"
	"github.com/labstack/echo/v4"
)

// instanceView is the JSON shape returned by GET /v1/instances: one entry per registered
// instance, identified by address (DirectAddress) or connection id (ReverseSession).
type instanceView struct {
	Address          string  `json:"address,omitempty"`
	ConnectionID     string  `json:"connection_id,omitempty"`
	Kind             string  `json:"kind"`
	Services         []string `json:"services"`
	Health           string  `json:"health"`
	LastHeartbeatAge float64 `json:"last_heartbeat_age_s"`
}

// AdminServer exposes the supplemental operational HTTP surface (C8 extension, SPEC_FULL.md §7):
// GET /healthz (liveness) and GET /v1/instances (registry snapshot). Grounded on MyDiscoverer's
// handlers.HTTPServer, with hand-rolled routes in place of oapi-codegen's generated ServerInterface
// since no OpenAPI document exists for this surface.
type AdminServer struct {
	registry interfaces.Registry
	clock    interfaces.TimeProvider
	logger   log.Logger
	echo     *echo.Echo
}

// NewAdminServer builds an AdminServer with its routes registered. Panics on nil registry/clock/logger.
func NewAdminServer(registry interfaces.Registry, clock interfaces.TimeProvider, logger log.Logger) *AdminServer {
	s := &AdminServer{
		registry: helpers.NilPanic(registry, "server.admin.go: registry is required"),
		clock:    helpers.NilPanic(clock, "server.admin.go: clock is required"),
		logger:   log.With(helpers.NilPanic(logger, "server.admin.go: logger is required"), "component", "admin"),
		echo:     echo.New(),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.GET("/healthz", s.healthz)
	s.echo.GET("/v1/instances", s.listInstances)
	return s
}

// Handler returns the http.Handler to mount on an *http.Server.
func (s *AdminServer) Handler() http.Handler {
	return s.echo
}

// healthz reports 200 while the process is serving; there is no deeper liveness check since the
// admin surface has no dependency the gRPC server doesn't already need to start.
func (s *AdminServer) healthz(ectx echo.Context) error {
	return ectx.NoContent(http.StatusOK)
}

// listInstances returns a JSON snapshot of every registered instance (SPEC_FULL.md §7).
func (s *AdminServer) listInstances(ectx echo.Context) error {
	now := s.clock.Now()
	snapshot := s.registry.Snapshot()
	views := make([]instanceView, 0, len(snapshot))
	for _, inst := range snapshot {
		views = append(views, instanceView{
			Address:          inst.Address,
			ConnectionID:     inst.ConnectionID,
			Kind:             string(inst.Kind),
			Services:         inst.Services,
			Health:           string(inst.Health),
			LastHeartbeatAge: now.Sub(inst.LastHeartbeat).Seconds(),
		})
	}
	return ectx.JSON(http.StatusOK, views)
}
