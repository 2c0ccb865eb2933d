package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/qantedservices-cmd/amilou-sub002/core/group"
)

var errGrpNotFoundInCtx = errors.New("group object not found in echo.Context")

type groupApi struct {
	svc      group.Service
	validate *validator.Validate
}

func registerGroupAPI(g *echo.Group, jwt, ident echo.MiddlewareFunc, svc group.Service, validate *validator.Validate) {
	api := groupApi{svc: svc, validate: validate}

	gg := g.Group("/groups", jwt, ident, adminMiddleware())
	gg.GET("", api.query)
	gg.POST("", api.create)

	// detail endpoints
	dg := gg.Group("/:id", groupObjectMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.GET("/members", api.members)
	dg.POST("/members", api.addMember)
}

func (api *groupApi) query(ctx echo.Context) error {
	filter := new(group.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []group.Group{})
	}
	filter.Clean()

	groups, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying groups")
	}
	if groups == nil {
		groups = []group.Group{}
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *groupApi) create(ctx echo.Context) error {
	var data group.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grp, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *groupApi) retrieve(ctx echo.Context) error {
	grp, ok := ctx.Get("object").(group.Group)
	if !ok {
		return errors.Wrap(errGrpNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) members(ctx echo.Context) error {
	grp, ok := ctx.Get("object").(group.Group)
	if !ok {
		return errors.Wrap(errGrpNotFoundInCtx, "retrieving object from context")
	}
	mbrs, err := api.svc.Members(ctx.Request().Context(), grp.ID)
	if err != nil {
		return errors.Wrap(err, "listing members")
	}
	return ctx.JSON(http.StatusOK, mbrs)
}

func (api *groupApi) addMember(ctx echo.Context) error {
	grp, ok := ctx.Get("object").(group.Group)
	if !ok {
		return errors.Wrap(errGrpNotFoundInCtx, "retrieving object from context")
	}

	var data group.NewMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMember")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mbr, err := api.svc.AddMember(ctx.Request().Context(), grp.ID, data)
	if err != nil {
		return errors.Wrap(err, "adding member")
	}
	return ctx.JSON(http.StatusCreated, mbr)
}

func groupObjectMiddleware(svc group.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			grp, err := svc.Get(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == group.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding group by ID")
			}
			ctx.Set("object", grp)
			return next(ctx)
		}
	}
}
