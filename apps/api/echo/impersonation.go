package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/qantedservices-cmd/amilou-sub002/core/identity"
)

type impersonationApi struct {
	svc      *identity.Service
	validate *validator.Validate
}

func registerImpersonationAPI(g *echo.Group, jwt, ident echo.MiddlewareFunc, svc *identity.Service, validate *validator.Validate) {
	api := impersonationApi{svc: svc, validate: validate}

	ig := g.Group("/impersonation", jwt, ident)
	ig.GET("", api.current)
	ig.POST("", api.start)
	ig.DELETE("", api.stop)
}

func (api *impersonationApi) current(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	rec, ok := api.svc.Current(p)
	if !ok {
		return ctx.JSON(http.StatusOK, ImpersonationStatus{})
	}
	return ctx.JSON(http.StatusOK, newImpersonationStatus(rec))
}

// start makes the admin act as another user; non-admins are rejected before the target is looked up.
func (api *impersonationApi) start(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	if !p.IsAdmin() {
		return identity.ErrForbidden
	}

	var data StartImpersonationRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StartImpersonationRequest")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	rec, err := api.svc.Start(ctx.Request().Context(), p, data.UserID)
	if err != nil {
		return errors.Wrap(err, "starting impersonation")
	}
	return ctx.JSON(http.StatusOK, newImpersonationStatus(rec))
}

func (api *impersonationApi) stop(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}
	api.svc.Stop(p)
	return ctx.NoContent(http.StatusNoContent)
}

type (
	StartImpersonationRequest struct {
		UserID string `json:"user_id" validate:"required"`
	}

	ImpersonationStatus struct {
		Active            bool       `json:"active"`
		TargetUserID      string     `json:"target_user_id,omitempty"`
		TargetDisplayName string     `json:"target_display_name,omitempty"`
		StartedAt         *time.Time `json:"started_at,omitempty"`
	}
)

func newImpersonationStatus(rec identity.Record) ImpersonationStatus {
	startedAt := rec.StartedAt
	return ImpersonationStatus{
		Active:            true,
		TargetUserID:      rec.TargetUserID,
		TargetDisplayName: rec.TargetDisplayName,
		StartedAt:         &startedAt,
	}
}
