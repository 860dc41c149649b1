package api

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"NoisyMarket/internal/domain/models"
	domrepo "NoisyMarket/internal/domain/repository"
	"NoisyMarket/internal/services/markov"
	"NoisyMarket/internal/usecase"
	xhttp "NoisyMarket/pkg/http"
	xlogger "NoisyMarket/pkg/logger"
	"NoisyMarket/pkg/util"
)

const (
	defaultRunLimit = 10000
	maxRunLimit     = 100000
)

// RunReader reads stored paths back.
type RunReader interface {
	QueryRun(ctx context.Context, runID string, limit int) ([]models.PathRecord, error)
}

// SimulationsEchoHandler serves the simulation, calibration and chain endpoints.
type SimulationsEchoHandler struct {
	logger *xlogger.Logger
	runner *usecase.SimulationRunner
	runs   RunReader
	cals   *usecase.CalibrationUseCase
	jobs   *usecase.JobSubmitter
}

// NewSimulationsEchoHandler wires the handler. jobs may be nil when no queue is configured.
func NewSimulationsEchoHandler(
	logger *xlogger.Logger,
	runner *usecase.SimulationRunner,
	runs RunReader,
	cals *usecase.CalibrationUseCase,
	jobs *usecase.JobSubmitter,
) *SimulationsEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &SimulationsEchoHandler{logger: logger, runner: runner, runs: runs, cals: cals, jobs: jobs}
}

func (h *SimulationsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/simulations", h.Simulate)
	g.POST("/simulations/batch", h.Batch)
	g.POST("/simulations/jobs", h.SubmitJob)
	g.GET("/simulations/jobs/:id", h.JobStatus)
	g.GET("/simulations/runs/:id", h.Run)
	g.GET("/calibrations/:symbol", h.GetCalibration)
	g.PUT("/calibrations/:symbol", h.PutCalibration)
	g.GET("/chain/fixed-point", h.FixedPoint)
}

func (h *SimulationsEchoHandler) Simulate(c echo.Context) error {
	req := &models.SimulationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()
	spec, err := h.runner.BuildSpec(ctx, *req)
	if err != nil {
		return h.fail(c, "simulate", err)
	}
	res, err := h.runner.Run(ctx, spec)
	if err != nil {
		return h.fail(c, "simulate", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SimulationsEchoHandler) Batch(c echo.Context) error {
	req := &models.BatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()
	spec, err := h.runner.BuildSpec(ctx, req.SimulationRequest)
	if err != nil {
		return h.fail(c, "batch", err)
	}
	sum, err := h.runner.RunBatch(ctx, spec, req.Trials)
	if err != nil {
		return h.fail(c, "batch", err)
	}
	return xhttp.SuccessResponse(c, sum)
}

func (h *SimulationsEchoHandler) SubmitJob(c echo.Context) error {
	if h.jobs == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("job queue is not configured"))
	}
	req := &models.BatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	st, err := h.jobs.Submit(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "submit job", err)
	}
	return xhttp.AcceptedResponse(c, st)
}

func (h *SimulationsEchoHandler) JobStatus(c echo.Context) error {
	if h.jobs == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("job queue is not configured"))
	}
	st, err := h.jobs.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "job status", err)
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *SimulationsEchoHandler) Run(c echo.Context) error {
	limit := util.ClampInt(util.ParseIntDefault(c.QueryParam("limit"), defaultRunLimit), 1, maxRunLimit)
	rows, err := h.runs.QueryRun(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return h.fail(c, "query run", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *SimulationsEchoHandler) GetCalibration(c echo.Context) error {
	cal, err := h.cals.Get(c.Request().Context(), c.Param("symbol"))
	if err != nil {
		return h.fail(c, "get calibration", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, cal)
}

// PutCalibration stores a calibration supplied by the caller. The path symbol wins over the body.
func (h *SimulationsEchoHandler) PutCalibration(c echo.Context) error {
	cal := &models.Calibration{}
	if err := c.Bind(cal); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("malformed calibration").WithError(err))
	}
	cal.Symbol = c.Param("symbol")
	if err := usecase.ValidateCalibration(cal); err != nil {
		return h.fail(c, "put calibration", err)
	}
	if err := h.cals.Save(c.Request().Context(), cal); err != nil {
		return h.fail(c, "put calibration", err)
	}
	return xhttp.SuccessResponse(c, cal)
}

func (h *SimulationsEchoHandler) FixedPoint(c echo.Context) error {
	req := &models.FixedPointRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	q, err := markov.NewTransitionMatrix([2][2]float64{
		{req.UpUp, req.UpDown},
		{req.DownUp, req.DownDown},
	})
	if err != nil {
		return h.fail(c, "fixed point", err)
	}
	up, down, err := q.FixedPoint()
	if err != nil {
		return h.fail(c, "fixed point", err)
	}
	return xhttp.SuccessResponse(c, models.FixedPointResponse{Up: up, Down: down})
}

func (h *SimulationsEchoHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= 500 {
		h.logger.Error(op+" failed", xlogger.Error(err))
	} else {
		h.logger.Debug(op+" rejected", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// toAppError maps domain errors onto HTTP errors.
func toAppError(err error) *xhttp.AppError {
	var (
		appErr *xhttp.AppError
		ce     *markov.ConfigurationError
		se     *markov.SamplingError
		de     *markov.DegenerateChainError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &ce):
		return xhttp.BadRequestError(ce.Error()).WithField(strings.ReplaceAll(ce.Field, " ", "_"))
	case errors.As(err, &de):
		return xhttp.UnprocessableError(de.Error()).
			WithParam("up_given_down", de.UpGivenDown).
			WithParam("down_given_up", de.DownGivenUp)
	case errors.As(err, &se):
		return xhttp.UnprocessableError(se.Error()).WithParam("draws", se.Draws)
	case errors.Is(err, domrepo.ErrNotFound):
		return xhttp.NotFoundErrorf("%v", err)
	case errors.Is(err, usecase.ErrBackendUnavailable):
		return xhttp.ServiceUnavailableError(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.ServiceUnavailableError("request timed out")
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
