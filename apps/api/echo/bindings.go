package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core"
	"github.com/thinkquality/thinkquality/core/user"
)

const (
	orderingParam = "ordering"
	contextObjKey = "object"
)

var errObjNotFoundInCtx = errors.New("object not found in echo.Context")

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses `?ordering=name,-created_at` and keeps the allowed fields, mapped to their columns.
func (ord *Ordering) Bind(ctx echo.Context, allowed map[string]string) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	var orderings []core.DBOrdering
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		orderings = append(orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
	ord.Orderings = core.CleanOrdering(orderings, allowed)
}

// bindOrdering is a shortcut for Ordering.Bind.
func bindOrdering(ctx echo.Context, allowed map[string]string) []core.DBOrdering {
	ord := new(Ordering)
	ord.Bind(ctx, allowed)
	return ord.Orderings
}

// bindBody binds the request body to i, wrapping binding errors as bad requests.
func bindBody(ctx echo.Context, i interface{}) error {
	if err := ctx.Bind(i); err != nil {
		if herr, ok := err.(*echo.HTTPError); ok {
			return herr
		}
		return errors.Wrap(err, "binding request body")
	}
	return nil
}

func contextObject[T any](ctx echo.Context) (T, error) {
	obj, ok := ctx.Get(contextObjKey).(T)
	if !ok {
		return obj, errors.Wrap(errObjNotFoundInCtx, "retrieving object from context")
	}
	return obj, nil
}

// companyScope returns the company records must be read from: the actor's own, or
// any company for super admins (empty meaning every company).
func companyScope(actor user.User, requested string) string {
	if actor.IsSuperAdmin() {
		return requested
	}
	return actor.CompanyID
}

type SuccessResponse struct {
	Success string `json:"success"`
}
