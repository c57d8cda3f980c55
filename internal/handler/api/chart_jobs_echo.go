package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"TrendChart/internal/domain/models"
	domrepo "TrendChart/internal/domain/repository"
	"TrendChart/internal/service/metrics"
	xhttp "TrendChart/pkg/http"
	xlogger "TrendChart/pkg/logger"
)

// ChartJobs is what the handler needs from the asynchronous chart job use case.
type ChartJobs interface {
	Submit(ctx context.Context, req *models.ChartRequest) (string, error)
	Result(ctx context.Context, requestID string) (*models.ChartJobResult, error)
}

// ChartJobsEchoHandler accepts chart requests for background generation.
type ChartJobsEchoHandler struct {
	logger *xlogger.Logger
	jobs   ChartJobs
}

func NewChartJobsEchoHandler(logger *xlogger.Logger, jobs ChartJobs) *ChartJobsEchoHandler {
	return &ChartJobsEchoHandler{logger: logger, jobs: jobs}
}

func (h *ChartJobsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/charts/jobs")
	g.POST("", h.Submit)
	g.GET("/:id", h.Result)
}

// Submit validates the request like /generate and answers 202 with the job id.
func (h *ChartJobsEchoHandler) Submit(c echo.Context) error {
	const endpoint = "jobs_submit"
	start := time.Now()
	defer func() { metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.ChartRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.EndpointErrors.WithLabelValues(endpoint).Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	id, err := h.jobs.Submit(c.Request().Context(), req)
	if err != nil {
		metrics.EndpointErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("chart job submit error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("chart job could not be queued").WithError(err))
	}
	return xhttp.AcceptedResponse(c, "/api/charts/jobs/"+id, models.ChartJobResult{RequestID: id, Status: models.JobPending})
}

// Result answers 202 while the job is pending and 200 once it is done or failed.
func (h *ChartJobsEchoHandler) Result(c echo.Context) error {
	const endpoint = "jobs_result"
	start := time.Now()
	defer func() { metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	res, err := h.jobs.Result(c.Request().Context(), c.Param("id"))
	switch {
	case errors.Is(err, domrepo.ErrJobNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("id", "chart job not found"))
	case err != nil:
		metrics.EndpointErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("chart job lookup error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("chart job lookup failed").WithError(err))
	}
	if res.Status == models.JobPending {
		return xhttp.DataResponse(c, http.StatusAccepted, res)
	}
	return xhttp.SuccessResponse(c, res)
}
