package server

import (
	"net/http"
	"time"

	"github.com/mvaladares/solarman2mqtt/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const requestTimeout = 10 * time.Second

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/control/start", s.ControlStartHandler)
	e.POST("/control/stop", s.ControlStopHandler)
	e.GET("/control/state", s.ControlStateHandler)

	e.POST("/registers/read", s.ReadRegistersHandler)
	e.POST("/registers/write", s.WriteRegistersHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, requestTimeout).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

type controlStartBody struct {
	PowerWatts      int `json:"power_watts"`
	DurationMinutes int `json:"duration_minutes"`
}

type controlStartReply struct {
	PowerWatts      int `json:"power_watts"`
	DurationMinutes int `json:"duration_minutes"`
}

func (s *Server) ControlStartHandler(c echo.Context) error {
	var body controlStartBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ControlStartRequest{
		PowerWatts:      body.PowerWatts,
		DurationMinutes: body.DurationMinutes,
	}, requestTimeout).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	response, ok := res.(domain.ControlStartResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	if response.HasResponseError() {
		return echo.NewHTTPError(http.StatusBadGateway, response.GetResponseError().Error())
	}
	return c.JSON(http.StatusOK, controlStartReply{
		PowerWatts:      response.PowerWatts,
		DurationMinutes: response.DurationMinutes,
	})
}

func (s *Server) ControlStopHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ControlStopRequest{}, requestTimeout).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	if response, ok := res.(domain.ControlStopResponse); !ok || response.HasResponseError() {
		return echo.NewHTTPError(http.StatusBadGateway, "stop failed")
	}
	return c.NoContent(http.StatusNoContent)
}

type controlStateReply struct {
	Active              bool   `json:"active"`
	EndsAt              string `json:"ends_at,omitempty"`
	TargetPowerPermille int16  `json:"target_power_permille"`
}

func (s *Server) ControlStateHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ControlGetStateRequest{}, requestTimeout).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	response, ok := res.(domain.ControlGetStateResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	reply := controlStateReply{
		Active:              response.Active,
		TargetPowerPermille: response.TargetPowerPermille,
	}
	if !response.EndsAt.IsZero() {
		reply.EndsAt = response.EndsAt.Format(time.RFC3339)
	}
	return c.JSON(http.StatusOK, reply)
}

type readRegistersBody struct {
	Address uint16 `json:"address"`
	Count   uint16 `json:"count"`
}

type readRegistersReply struct {
	Address uint16   `json:"address"`
	Values  []uint16 `json:"values"`
}

func (s *Server) ReadRegistersHandler(c echo.Context) error {
	var body readRegistersBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.Count == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "count must be > 0")
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ReadRegistersRequest{
		Address: body.Address,
		Count:   body.Count,
	}, requestTimeout).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	response, ok := res.(domain.ReadRegistersResponse)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "unexpected response")
	}
	if response.HasResponseError() {
		return echo.NewHTTPError(http.StatusBadGateway, response.GetResponseError().Error())
	}
	return c.JSON(http.StatusOK, readRegistersReply{
		Address: response.Address,
		Values:  response.Values,
	})
}

type writeRegistersBody struct {
	Address uint16   `json:"address"`
	Values  []uint16 `json:"values"`
}

func (s *Server) WriteRegistersHandler(c echo.Context) error {
	var body writeRegistersBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(body.Values) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "values must not be empty")
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.WriteRegistersRequest{
		Address: body.Address,
		Values:  body.Values,
	}, requestTimeout).Result()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	if response, ok := res.(domain.WriteRegistersResponse); !ok || response.HasResponseError() {
		return echo.NewHTTPError(http.StatusBadGateway, "write failed")
	}
	return c.NoContent(http.StatusNoContent)
}
