package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/identity"
	"github.com/qantedservices-cmd/amilou-sub002/core/user"
	"github.com/qantedservices-cmd/amilou-sub002/core/visibility"
)

var nameOrdering = []core.DBOrdering{{Field: "name", Ascending: true}}

type userApi struct {
	svc      user.Service
	vis      *visibility.Engine
	tokens   *tokenIssuer
	validate *validator.Validate
}

func registerUserAPI(
	g *echo.Group,
	jwt, ident echo.MiddlewareFunc,
	tokens *tokenIssuer,
	svc user.Service,
	vis *visibility.Engine,
	validate *validator.Validate,
) {
	api := userApi{
		svc:      svc,
		vis:      vis,
		tokens:   tokens,
		validate: validate,
	}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/login", api.login)

	// authed endpoints
	ag := ug.Group("", jwt, ident)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)
	ag.GET("/visible", api.visible)
	ag.GET("/roles", api.queryRoles)
	ag.GET("", api.query, adminMiddleware())
	ag.POST("/register", api.create, adminMiddleware())
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := api.tokens.authenticate(data.Username, data.Password, api.svc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := api.tokens.generate(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := api.tokens.refresh(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) me(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context principal")
	}

	usr, err := api.svc.GetByID(ident.UserID)
	if err != nil {
		return errors.Wrap(err, "finding effective user")
	}
	return ctx.JSON(http.StatusOK, MeResponse{User: usr, Principal: p, Identity: ident})
}

// visible lists the users the effective user may see in `category`, sorted by name.
func (api *userApi) visible(ctx echo.Context) error {
	ident, err := getContextIdentity(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context identity")
	}
	cat, err := visibility.ParseCategory(ctx.QueryParam("category"))
	if err != nil {
		return err
	}

	set, err := api.vis.VisibleUsers(ctx.Request().Context(), ident.UserID, cat)
	if err != nil {
		return errors.Wrap(err, "computing visible users")
	}
	users := []user.User{}
	if ids := set.Slice(); len(ids) > 0 {
		if users, err = api.svc.Query(&user.QueryFilter{IDs: ids}, nameOrdering); err != nil {
			return errors.Wrap(err, "querying visible users")
		}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Create(data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	MeResponse struct {
		User      user.User                  `json:"user"`
		Principal identity.Principal         `json:"principal"`
		Identity  identity.EffectiveIdentity `json:"identity"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}
