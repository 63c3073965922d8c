package db

import (
	"fmt"
	"strings"
)

// SearchQuery accumulates AND-ed WHERE fragments with positional arguments
// and renders matching count and page queries.
type SearchQuery struct {
	table   string
	cols    string
	where   string
	args    []interface{}
	idx     int
	orderBy string
}

func NewSearchQuery(table, cols string) *SearchQuery {
	return &SearchQuery{table: table, cols: cols, idx: 1}
}

// Add appends a clause. Each %d in clause is replaced by the next
// placeholder index, one per argument.
func (q *SearchQuery) Add(clause string, args ...interface{}) {
	idx := make([]interface{}, len(args))
	for i := range args {
		idx[i] = q.idx + i
	}
	q.where += " AND " + fmt.Sprintf(clause, idx...)
	q.args = append(q.args, args...)
	q.idx += len(args)
}

// Eq adds column = value.
func (q *SearchQuery) Eq(column string, value interface{}) {
	q.Add(column+" = $%d", value)
}

// Contains adds a case-insensitive substring match across any of the columns.
func (q *SearchQuery) Contains(value string, columns ...string) {
	if len(columns) == 0 {
		return
	}
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf("%s ILIKE $%d", col, q.idx)
	}
	q.where += " AND (" + strings.Join(parts, " OR ") + ")"
	q.args = append(q.args, "%"+escapeLike(value)+"%")
	q.idx++
}

// OrderBy sets the ORDER BY clause (without the keyword).
func (q *SearchQuery) OrderBy(orderBy string) {
	q.orderBy = orderBy
}

func (q *SearchQuery) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=1%s", q.table, q.where)
}

func (q *SearchQuery) CountArgs() []interface{} {
	return q.args
}

// DataSQL renders the page query. A limit of zero or less means no limit.
func (q *SearchQuery) DataSQL(limit, offset int) string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", q.cols, q.table, q.where)
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", q.idx, q.idx+1)
	} else {
		sql += fmt.Sprintf(" OFFSET $%d", q.idx)
	}
	return sql
}

func (q *SearchQuery) DataArgs(limit, offset int) []interface{} {
	out := make([]interface{}, len(q.args), len(q.args)+2)
	copy(out, q.args)
	if limit > 0 {
		return append(out, limit, offset)
	}
	return append(out, offset)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
