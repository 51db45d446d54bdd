package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aiopshq/assistant/internal/agent"
)

// QueryHandler exposes the pipeline over HTTP.
type QueryHandler struct {
	Orch    *agent.Orchestrator
	Timeout time.Duration
}

type queryRequest struct {
	Query string `json:"query"`
}

// Register mounts the query endpoints on g.
func (h *QueryHandler) Register(g *echo.Group) {
	g.POST("/query", h.processQuery)
	g.GET("/status/:id", h.getStatus)
}

func (h *QueryHandler) processQuery(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query must not be empty")
	}

	ctx := c.Request().Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	result, err := h.Orch.ProcessQuery(ctx, req.Query)
	if err != nil {
		var perr *agent.PlanningError
		if errors.As(err, &perr) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, perr.Error())
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return echo.NewHTTPError(http.StatusGatewayTimeout, "query processing timed out")
		}
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *QueryHandler) getStatus(c echo.Context) error {
	id := c.Param("id")
	status, err := h.Orch.GetStatus(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, status)
}
