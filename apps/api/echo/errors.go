package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/group"
	"github.com/qantedservices-cmd/amilou-sub002/core/identity"
	"github.com/qantedservices-cmd/amilou-sub002/core/report"
	"github.com/qantedservices-cmd/amilou-sub002/core/user"
	"github.com/qantedservices-cmd/amilou-sub002/core/visibility"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")

	// domain errors surfaced as-is; NotFound & Forbidden stay distinct
	errStatuses = map[error]int{
		identity.ErrUnauthenticated:   http.StatusUnauthorized,
		identity.ErrForbidden:         http.StatusForbidden,
		identity.ErrNoSession:         http.StatusForbidden,
		visibility.ErrInvalidCategory: http.StatusBadRequest,
		visibility.ErrUnknownUser:     http.StatusNotFound,
		user.ErrNotFound:              http.StatusNotFound,
		group.ErrNotFound:             http.StatusNotFound,
		report.ErrInvalidKind:         http.StatusBadRequest,
		report.ErrNotFound:            http.StatusNotFound,
	}
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a fatal error (see core.IsFatal) is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		if status, ok := errStatuses[cause]; ok {
			code = status
			message = cause.Error()
		} else {
			switch origErr := cause.(type) {
			case *echo.HTTPError:
				if origErr == middleware.ErrJWTMissing {
					code = http.StatusUnauthorized
					message = origErr.Message
					break
				}
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				code = origErr.Code
				message = origErr.Message
			case validator.ValidationErrors:
				fldErrs := make(map[string]string, len(origErr))
				for _, vErr := range origErr {
					fldErrs[vErr.Field()] = vErr.Translate(translator)
				}
				code = http.StatusBadRequest
				message = fldErrs
			case *core.ValidationError:
				if flds := origErr.FieldMap(); flds != nil {
					message = flds
				} else {
					message = origErr.Error()
				}
				code = http.StatusBadRequest
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				if p, pErr := getContextPrincipal(ctx); pErr == nil {
					logger.Error(msg, errors.Wrap(err, msg), p)
				} else {
					logger.Error(msg, errors.Wrap(err, msg))
				}

				// the database is gone, shutting down...
				if core.IsFatal(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
