package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/openfield/cascade/id"
	"github.com/openfield/cascade/review"
	"github.com/openfield/cascade/workflow"
)

// StartWorkflowRequest is the body for starting a workflow instance.
type StartWorkflowRequest struct {
	TenantID string         `json:"tenant_id"`
	Input    map[string]any `json:"input"`
}

// startWorkflow launches a new instance of the named workflow type.
// (POST /v1/workflows/:type)
func (a *API) startWorkflow(c echo.Context) error {
	var req StartWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	s, err := a.engine.Start(c.Request().Context(), c.Param("type"), req.TenantID, req.Input)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, s)
}

// listWorkflows returns instances filtered by status.
// (GET /v1/workflows?status=paused&tenant_id=acme&limit=50&offset=0)
func (a *API) listWorkflows(c echo.Context) error {
	status := workflow.Status(c.QueryParam("status"))
	if status == "" {
		status = workflow.StatusRunning
	}

	opts := workflow.ListOpts{TenantID: c.QueryParam("tenant_id")}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		opts.Limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid offset")
		}
		opts.Offset = n
	}

	states, err := a.store.ListStatesByStatus(c.Request().Context(), status, opts)
	if err != nil {
		return httpError(err)
	}
	if states == nil {
		states = []*workflow.State{}
	}
	return c.JSON(http.StatusOK, states)
}

// getWorkflow returns the current checkpoint of an instance.
// (GET /v1/workflows/:workflowId)
func (a *API) getWorkflow(c echo.Context) error {
	wfID, err := id.ParseWorkflowID(c.Param("workflowId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid workflow ID: "+err.Error())
	}

	s, err := a.engine.Status(c.Request().Context(), wfID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, s)
}

// resumeWorkflow delivers a human decision directly to a paused instance.
// Most resumptions should go through the review inbox instead; this
// endpoint exists for operator intervention.
// (POST /v1/workflows/:workflowId/resume)
func (a *API) resumeWorkflow(c echo.Context) error {
	wfID, err := id.ParseWorkflowID(c.Param("workflowId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid workflow ID: "+err.Error())
	}

	var resp review.Response
	if err := c.Bind(&resp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	if err := a.engine.Resume(c.Request().Context(), wfID, resp); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

// cancelWorkflow cancels a non-terminal instance.
// (POST /v1/workflows/:workflowId/cancel)
func (a *API) cancelWorkflow(c echo.Context) error {
	wfID, err := id.ParseWorkflowID(c.Param("workflowId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid workflow ID: "+err.Error())
	}

	if err := a.engine.Cancel(c.Request().Context(), wfID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusAccepted)
}
