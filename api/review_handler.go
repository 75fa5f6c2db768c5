package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/openfield/cascade/id"
	"github.com/openfield/cascade/review"
)

// listReviews returns review requests, pending ones by default.
// (GET /v1/reviews?status=pending&workflow_id=wf_...&tenant_id=acme)
func (a *API) listReviews(c echo.Context) error {
	opts := review.ListOpts{
		Status:   review.RequestStatus(c.QueryParam("status")),
		TenantID: c.QueryParam("tenant_id"),
	}
	if opts.Status == "" {
		opts.Status = review.RequestPending
	}
	if v := c.QueryParam("workflow_id"); v != "" {
		wfID, err := id.ParseWorkflowID(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid workflow ID: "+err.Error())
		}
		opts.WorkflowID = wfID
	}
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

	reqs, err := a.reviews.List(c.Request().Context(), opts)
	if err != nil {
		return httpError(err)
	}
	if reqs == nil {
		reqs = []*review.Request{}
	}
	return c.JSON(http.StatusOK, reqs)
}

// getReview returns a single review request.
// (GET /v1/reviews/:reviewId)
func (a *API) getReview(c echo.Context) error {
	revID, err := id.ParseReviewID(c.Param("reviewId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid review ID: "+err.Error())
	}

	req, err := a.reviews.Get(c.Request().Context(), revID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, req)
}

// resolveReview records a human decision and resumes the paused workflow.
// (POST /v1/reviews/:reviewId/resolve)
func (a *API) resolveReview(c echo.Context) error {
	revID, err := id.ParseReviewID(c.Param("reviewId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid review ID: "+err.Error())
	}

	var resp review.Response
	if err := c.Bind(&resp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	req, err := a.reviews.Resolve(c.Request().Context(), revID, resp)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, req)
}
