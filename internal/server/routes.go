package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/berfenger/energyopt2mqtt/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var errUnexpectedResponse = errors.New("unexpected actor response")

type snapshotResponse struct {
	Available bool                   `json:"available"`
	Snapshot  *domain.Snapshot       `json:"snapshot"`
	Config    domain.OptimizerConfig `json:"config"`
}

type strategyBody struct {
	Strategy string `json:"strategy"`
}

type toggleBody struct {
	Enabled *bool `json:"enabled"`
}

type socLimitsBody struct {
	MinSoC *float64 `json:"min_soc"`
	MaxSoC *float64 `json:"max_soc"`
}

type entityStateBody struct {
	State             *string        `json:"state"`
	Attributes        map[string]any `json:"attributes"`
	ReplaceAttributes bool           `json:"replace_attributes"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)

	api := e.Group("/api")
	api.GET("/snapshot", s.SnapshotHandler)
	api.GET("/config", s.ConfigHandler)
	api.POST("/optimize", s.OptimizeHandler)
	api.PUT("/strategy", s.StrategyHandler)
	api.PUT("/automation", s.toggleHandler(func(v bool) domain.OptimizerControlRequest {
		return domain.SetAutomationEnabledRequest{Enable: v}
	}))
	api.PUT("/manual-override", s.toggleHandler(func(v bool) domain.OptimizerControlRequest {
		return domain.SetManualOverrideRequest{Enable: v}
	}))
	api.PUT("/dry-run", s.toggleHandler(func(v bool) domain.OptimizerControlRequest {
		return domain.SetDryRunRequest{Enable: v}
	}))
	api.PUT("/soc-limits", s.SoCLimitsHandler)
	api.GET("/states", s.ListEntityStatesHandler)
	api.GET("/states/:entity_id", s.GetEntityStateHandler)
	api.PUT("/states/:entity_id", s.PutEntityStateHandler)
	api.DELETE("/states/:entity_id", s.DeleteEntityStateHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.ask(domain.ActorHealthRequest{})
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) SnapshotHandler(c echo.Context) error {
	resp, err := s.snapshot()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snapshotResponse{
		Available: resp.Available,
		Snapshot:  resp.Snapshot,
		Config:    resp.Config,
	})
}

func (s *Server) ConfigHandler(c echo.Context) error {
	resp, err := s.snapshot()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp.Config)
}

func (s *Server) OptimizeHandler(c echo.Context) error {
	return s.control(c, domain.TriggerOptimizationRequest{}, http.StatusAccepted)
}

func (s *Server) StrategyHandler(c echo.Context) error {
	var body strategyBody
	if err := c.Bind(&body); err != nil {
		return err
	}
	if body.Strategy == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "strategy is required")
	}
	return s.control(c, domain.SetStrategyRequest{Strategy: body.Strategy}, http.StatusOK)
}

func (s *Server) toggleHandler(fn func(bool) domain.OptimizerControlRequest) echo.HandlerFunc {
	return func(c echo.Context) error {
		var body toggleBody
		if err := c.Bind(&body); err != nil {
			return err
		}
		if body.Enabled == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "enabled is required")
		}
		return s.control(c, fn(*body.Enabled), http.StatusOK)
	}
}

func (s *Server) SoCLimitsHandler(c echo.Context) error {
	var body socLimitsBody
	if err := c.Bind(&body); err != nil {
		return err
	}
	var req domain.OptimizerControlRequest
	switch {
	case body.MinSoC != nil && body.MaxSoC != nil:
		req = domain.SetSoCLimitsRequest{MinSoC: *body.MinSoC, MaxSoC: *body.MaxSoC}
	case body.MinSoC != nil:
		req = domain.SetMinSoCRequest{Value: *body.MinSoC}
	case body.MaxSoC != nil:
		req = domain.SetMaxSoCRequest{Value: *body.MaxSoC}
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "min_soc or max_soc is required")
	}
	return s.control(c, req, http.StatusOK)
}

func (s *Server) ListEntityStatesHandler(c echo.Context) error {
	res, err := s.ask(domain.ListEntityStatesRequest{})
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	resp, ok := res.(domain.ListEntityStatesResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, errUnexpectedResponse.Error())
	}
	return c.JSON(http.StatusOK, resp.States)
}

func (s *Server) GetEntityStateHandler(c echo.Context) error {
	entityId, err := entityIdParam(c)
	if err != nil {
		return err
	}
	res, err := s.ask(domain.GetEntityStateRequest{EntityId: entityId})
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	resp, ok := res.(domain.GetEntityStateResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, errUnexpectedResponse.Error())
	}
	if !resp.Found {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("entity %s not found", entityId))
	}
	return c.JSON(http.StatusOK, resp.State)
}

func (s *Server) PutEntityStateHandler(c echo.Context) error {
	entityId, err := entityIdParam(c)
	if err != nil {
		return err
	}
	var body entityStateBody
	if err := c.Bind(&body); err != nil {
		return err
	}
	if body.State == nil && body.Attributes == nil && !body.ReplaceAttributes {
		return echo.NewHTTPError(http.StatusBadRequest, "state or attributes is required")
	}
	res, err := s.ask(domain.EntityStateUpdateRequest{
		EntityId:          entityId,
		State:             body.State,
		Attributes:        body.Attributes,
		ReplaceAttributes: body.ReplaceAttributes,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	resp, ok := res.(domain.EntityStateUpdateResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, errUnexpectedResponse.Error())
	}
	return c.JSON(http.StatusOK, resp.State)
}

func (s *Server) DeleteEntityStateHandler(c echo.Context) error {
	entityId, err := entityIdParam(c)
	if err != nil {
		return err
	}
	res, err := s.ask(domain.DeleteEntityStateRequest{EntityId: entityId})
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	resp, ok := res.(domain.DeleteEntityStateResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, errUnexpectedResponse.Error())
	}
	if !resp.Found {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("entity %s not found", entityId))
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) ask(msg any) (any, error) {
	return s.rootContext.RequestFuture(s.masterActor, msg, REQUEST_TIMEOUT).Result()
}

func (s *Server) snapshot() (domain.GetSnapshotResponse, error) {
	res, err := s.ask(domain.GetSnapshotRequest{})
	if err != nil {
		return domain.GetSnapshotResponse{}, echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	resp, ok := res.(domain.GetSnapshotResponse)
	if !ok {
		return domain.GetSnapshotResponse{}, echo.NewHTTPError(http.StatusInternalServerError, errUnexpectedResponse.Error())
	}
	return resp, nil
}

func (s *Server) control(c echo.Context, req domain.OptimizerControlRequest, status int) error {
	res, err := s.ask(req)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	resp, ok := res.(domain.OptimizerControlResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, errUnexpectedResponse.Error())
	}
	if resp.HasResponseError() {
		return echo.NewHTTPError(http.StatusBadRequest, resp.GetResponseError().Error())
	}
	return c.JSON(status, resp.Config)
}

// entityIdParam accepts Home Assistant ids of the form <domain>.<object_id>.
func entityIdParam(c echo.Context) (string, error) {
	entityId := c.Param("entity_id")
	parts := strings.SplitN(entityId, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid entity id %q", entityId))
	}
	return entityId, nil
}
