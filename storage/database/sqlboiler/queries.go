package boiledrepos

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/qantedservices-cmd/amilou-sub002/core"
)

// clauses accumulates WHERE conditions with their positional ($n) args.
type clauses struct {
	conds []string
	args  []interface{}
}

// arg registers `v` and returns its placeholder.
func (c *clauses) arg(v interface{}) string {
	c.args = append(c.args, v)
	return "$" + strconv.Itoa(len(c.args))
}

func (c *clauses) add(cond string) {
	c.conds = append(c.conds, cond)
}

func (c *clauses) where() string {
	if len(c.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.conds, " AND ")
}

func getExec(def core.DBExecutor, svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return def
}

// trapNoRowsErr maps psql "no rows" err to `notFound`
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}
