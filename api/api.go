// Package api exposes the Cascade engine and review inbox over HTTP.
// Handlers are thin: they parse and validate input, delegate to the
// engine or review service, and map sentinel errors to status codes.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/openfield/cascade"
	"github.com/openfield/cascade/engine"
	"github.com/openfield/cascade/review"
	"github.com/openfield/cascade/workflow"
)

// API wires all HTTP handlers for the cascade system.
type API struct {
	engine  *engine.Engine
	reviews *review.Service
	store   workflow.Store
	logger  *slog.Logger
}

// Option configures the API.
type Option func(*API)

// WithLogger sets the logger for the API.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// New creates an API around the engine and review service. The store is
// used for listings the engine does not expose.
func New(eng *engine.Engine, reviews *review.Service, store workflow.Store, opts ...Option) *API {
	a := &API{
		engine:  eng,
		reviews: reviews,
		store:   store,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns a fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	e := echo.New()
	e.HideBanner = true
	a.RegisterRoutes(e)
	return e
}

// RegisterRoutes registers all cascade API routes into the given Echo
// instance.
func (a *API) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/v1")

	g.POST("/workflows/:type", a.startWorkflow)
	g.GET("/workflows", a.listWorkflows)
	g.GET("/workflows/:workflowId", a.getWorkflow)
	g.POST("/workflows/:workflowId/resume", a.resumeWorkflow)
	g.POST("/workflows/:workflowId/cancel", a.cancelWorkflow)

	g.GET("/reviews", a.listReviews)
	g.GET("/reviews/:reviewId", a.getReview)
	g.POST("/reviews/:reviewId/resolve", a.resolveReview)

	e.GET("/healthz", a.health)
}

// health reports liveness.
func (a *API) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// httpError maps sentinel errors onto HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, cascade.ErrRunNotFound),
		errors.Is(err, cascade.ErrReviewNotFound),
		errors.Is(err, cascade.ErrDefinitionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, cascade.ErrNotPaused),
		errors.Is(err, cascade.ErrTerminal),
		errors.Is(err, cascade.ErrReviewResolved),
		errors.Is(err, cascade.ErrAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, cascade.ErrTenantThrottled):
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
