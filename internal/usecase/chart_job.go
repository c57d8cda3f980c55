package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/creasty/defaults"

	"TrendChart/internal/domain/models"
	"TrendChart/internal/services/trend"
)

type chartResponder interface {
	GenerateResponse(ctx context.Context, p GenerateParams) (*models.ChartResponse, error)
}

// runChartJob generates the chart for an asynchronous job. Invalid parameters produce a
// failed result; any other error is returned so the transport can retry the job.
func runChartJob(ctx context.Context, gen chartResponder, source string, job *models.ChartJob, now func() time.Time) (models.ChartJobResult, error) {
	res := models.ChartJobResult{RequestID: job.RequestID}

	// same defaults as the HTTP transport
	if err := defaults.Set(&job.ChartRequest); err != nil {
		return res, fmt.Errorf("apply job defaults: %w", err)
	}

	chart, err := gen.GenerateResponse(ctx, ParamsFromRequest(source, &job.ChartRequest))
	res.GeneratedAt = now().UTC()
	switch {
	case err == nil:
		res.Status = models.JobDone
		res.Chart = chart
	case errors.Is(err, trend.ErrInvalidParameter):
		res.Status = models.JobFailed
		res.Error = err.Error()
	default:
		return res, fmt.Errorf("generate chart %s: %w", job.RequestID, err)
	}
	return res, nil
}
