package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/thinkquality/thinkquality/core"
)

const uniqueViolation = "23505"

// repository holds the default executor, used outside of transactions.
type repository struct {
	db core.DBExecutor
}

func (repo repository) exec(exec []core.DBExecutor) core.DBExecutor {
	return core.Exec(repo.db, exec)
}

// trapNoRows maps "no rows" errors to notFound.
func trapNoRows(err error, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// checkRowsAffected returns notFound when res affected no row.
func checkRowsAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "getting affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// where accumulates AND-ed conditions written with `?` placeholders.
type where struct {
	clauses []string
	args    []interface{}
}

func (w *where) add(clause string, args ...interface{}) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// search adds a case-insensitive LIKE on any of the columns.
func (w *where) search(term string, columns ...string) {
	likes := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	pattern := "%" + strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(term) + "%"
	for _, col := range columns {
		likes = append(likes, col+" ILIKE ?")
		args = append(args, pattern)
	}
	w.add("("+strings.Join(likes, " OR ")+")", args...)
}

// query binds the accumulated conditions to the postgres placeholders.
func (w *where) query(base, suffix string) (string, []interface{}) {
	return sqlx.Rebind(sqlx.DOLLAR, base+w.String()+suffix), w.args
}

// orderBy renders the ordering, which must already be mapped to column names.
func orderBy(ordering []core.DBOrdering, def string) string {
	if len(ordering) == 0 {
		return " ORDER BY " + def
	}
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		parts = append(parts, ord.String())
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}
