package echoapi

import (
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/qantedservices-cmd/amilou-sub002/core/report"
)

type reportApi struct {
	svc *report.Service
}

func registerReportAPI(g *echo.Group, jwt, ident echo.MiddlewareFunc, svc *report.Service) {
	api := reportApi{svc: svc}

	rg := g.Group("/reports", jwt, ident)
	rg.POST("/:kind", api.export)
	rg.GET("/download/:id", api.download)
}

// export builds the report under the request's identity; the file is downloadable once.
func (api *reportApi) export(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	filter, err := bindTrackingFilter(ctx)
	if err != nil {
		return err
	}

	exp, err := api.svc.Export(ctx.Request().Context(), ident, ctx.Param("kind"), filter)
	if err != nil {
		return errors.Wrap(err, "exporting report")
	}
	return ctx.JSON(http.StatusCreated, exp)
}

func (api *reportApi) download(ctx echo.Context) error {
	if _, err := getContextIdentity(ctx); err != nil {
		return errors.Wrap(err, "getting context identity")
	}

	entry, err := api.svc.Download(ctx.Param("id"))
	if err != nil {
		return err
	}
	ctx.Response().Header().Set(
		echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": entry.FileName}),
	)
	return ctx.Blob(http.StatusOK, "text/csv; charset=utf-8", entry.Data)
}
