package server

import (
	"net/http"
	"time"

	"surplus2mqtt/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type switchBody struct {
	On bool `json:"on"`
}

type switchResult struct {
	Stage uint8 `json:"stage"`
	On    bool  `json:"on"`
}

type absorptionMinutesBody struct {
	Minutes int `json:"minutes"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/api/surplus/status", s.SurplusStatusHandler)
	e.POST("/api/surplus/stage1", s.SurplusSwitchHandler(domain.SurplusStageI))
	e.POST("/api/surplus/stage2", s.SurplusSwitchHandler(domain.SurplusStageII))
	e.POST("/api/surplus/absorption_minutes", s.AbsorptionMinutesHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) SurplusStatusHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetSurplusStatusRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	response, ok := res.(domain.GetSurplusStatusResponse)
	if !ok || response.HasResponseError() {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.JSON(http.StatusOK, response.Status)
}

func (s *Server) SurplusSwitchHandler(stage domain.SurplusStage) echo.HandlerFunc {
	return func(c echo.Context) error {
		var body switchBody
		if err := c.Bind(&body); err != nil {
			return c.NoContent(http.StatusBadRequest)
		}
		mode := domain.SurplusSwitchOff
		if body.On {
			mode = domain.SurplusSwitchOn
		}
		res, err := s.rootContext.RequestFuture(s.masterActor, domain.SurplusSwitchRequest{
			Stage: stage,
			Mode:  mode,
		}, 10*time.Second).Result()
		if err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		response, ok := res.(domain.SurplusSwitchResponse)
		if !ok || response.HasResponseError() {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.JSON(http.StatusOK, switchResult{
			Stage: uint8(response.Stage),
			On:    response.On,
		})
	}
}

func (s *Server) AbsorptionMinutesHandler(c echo.Context) error {
	var body absorptionMinutesBody
	if err := c.Bind(&body); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.SurplusSetAbsorptionToSunsetRequest{
		Minutes: body.Minutes,
	}, 10*time.Second).Result()
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	response, ok := res.(domain.SurplusSetAbsorptionToSunsetResponse)
	if !ok || response.HasResponseError() {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.JSON(http.StatusOK, absorptionMinutesBody{Minutes: response.Minutes})
}
