package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/qantedservices-cmd/amilou-sub002/core/tracking"
)

type trackingApi struct {
	svc      tracking.Service
	validate *validator.Validate
}

func registerTrackingAPI(g *echo.Group, jwt, ident echo.MiddlewareFunc, svc tracking.Service, validate *validator.Validate) {
	api := trackingApi{svc: svc, validate: validate}

	tg := g.Group("", jwt, ident)
	tg.POST("/sessions", api.recordSession)
	tg.GET("/attendance", api.queryAttendance)
	tg.GET("/progress", api.queryProgress)
	tg.POST("/progress", api.recordProgress)
	tg.GET("/evaluations", api.queryEvaluations)
	tg.POST("/evaluations", api.recordEvaluation)
	tg.GET("/stats", api.queryStats)
}

func (api *trackingApi) recordSession(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	var data tracking.NewSession
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sess, att, err := api.svc.RecordSession(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "recording session")
	}
	return ctx.JSON(http.StatusCreated, SessionResponse{Session: sess, Attendance: att})
}

func (api *trackingApi) queryAttendance(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	filter, err := bindTrackingFilter(ctx)
	if err != nil {
		return err
	}

	list, err := api.svc.QueryAttendance(ctx.Request().Context(), ident, filter)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	if list == nil {
		list = []tracking.Attendance{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *trackingApi) recordProgress(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	var data tracking.NewProgress
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProgress")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	prog, err := api.svc.RecordProgress(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "recording progress")
	}
	return ctx.JSON(http.StatusCreated, prog)
}

func (api *trackingApi) queryProgress(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	filter, err := bindTrackingFilter(ctx)
	if err != nil {
		return err
	}

	list, err := api.svc.QueryProgress(ctx.Request().Context(), ident, filter)
	if err != nil {
		return errors.Wrap(err, "querying progress")
	}
	if list == nil {
		list = []tracking.Progress{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *trackingApi) recordEvaluation(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	var data tracking.NewEvaluation
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvaluation")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	eval, err := api.svc.RecordEvaluation(ctx.Request().Context(), ident, data)
	if err != nil {
		return errors.Wrap(err, "recording evaluation")
	}
	return ctx.JSON(http.StatusCreated, eval)
}

func (api *trackingApi) queryEvaluations(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	filter, err := bindTrackingFilter(ctx)
	if err != nil {
		return err
	}

	list, err := api.svc.QueryEvaluations(ctx.Request().Context(), ident, filter)
	if err != nil {
		return errors.Wrap(err, "querying evaluations")
	}
	if list == nil {
		list = []tracking.Evaluation{}
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *trackingApi) queryStats(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	filter, err := bindTrackingFilter(ctx)
	if err != nil {
		return err
	}

	stats, err := api.svc.QueryStats(ctx.Request().Context(), ident, filter)
	if err != nil {
		return errors.Wrap(err, "querying stats")
	}
	if stats == nil {
		stats = []tracking.Stats{}
	}
	return ctx.JSON(http.StatusOK, stats)
}

type SessionResponse struct {
	Session    tracking.Session      `json:"session"`
	Attendance []tracking.Attendance `json:"attendance"`
}
