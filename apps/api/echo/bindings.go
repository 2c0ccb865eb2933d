package echoapi

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/qantedservices-cmd/amilou-sub002/core"
	"github.com/qantedservices-cmd/amilou-sub002/core/tracking"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindTrackingFilter reads `user_id` (repeatable), `group_id`, `from` & `to` (RFC3339) from the query string.
func bindTrackingFilter(ctx echo.Context) (*tracking.QueryFilter, error) {
	data := ctx.QueryParams()
	filter := &tracking.QueryFilter{
		UserIDs: data["user_id"],
		GroupID: data.Get("group_id"),
	}

	var fldErrs []core.FieldError
	parse := func(param string) time.Time {
		val := strings.TrimSpace(data.Get(param))
		if val == "" {
			return time.Time{}
		}
		t, err := time.Parse(time.RFC3339, val)
		if err != nil {
			fldErrs = append(fldErrs, core.FieldError{Field: param, Error: "must be an RFC3339 date-time"})
		}
		return t
	}
	filter.From = parse("from")
	filter.To = parse("to")
	if fldErrs != nil {
		return nil, core.NewValidationError(nil, fldErrs...)
	}

	filter.Clean()
	return filter, nil
}
