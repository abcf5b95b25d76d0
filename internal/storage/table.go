// ABOUTME: Generic table descriptors and the keyed/queried record operations built on them.
// ABOUTME: Get, Put, Add, BulkPut, Query, Delete, DeleteWhere and status flips for every entity table.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/harperreed/gymtracker/internal/models"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Table describes how one entity maps onto one SQLite table.
// Columns[0] is the primary key.
type Table[T any] struct {
	Name    string
	Columns []string
	values  func(*T) []any
	scan    func(rowScanner) (*T, error)
}

func (t *Table[T]) hasColumn(col string) bool {
	return slices.Contains(t.Columns, col)
}

func (t *Table[T]) columnList() string {
	return strings.Join(t.Columns, ", ")
}

func (t *Table[T]) insertSQL() string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.Name, t.columnList(), marks)
}

func (t *Table[T]) upsertSQL() string {
	sets := make([]string, 0, len(t.Columns)-1)
	for _, c := range t.Columns[1:] {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	return fmt.Sprintf("%s ON CONFLICT(%s) DO UPDATE SET %s", t.insertSQL(), t.Columns[0], strings.Join(sets, ", "))
}

// Clause narrows or orders a query. Column names are checked against the table.
type Clause interface {
	apply(q *selectQuery)
}

type selectQuery struct {
	has   func(string) bool
	where []string
	args  []any
	order []string
	limit int
	err   error
}

func (q *selectQuery) column(col string) bool {
	if !q.has(col) {
		if q.err == nil {
			q.err = fmt.Errorf("unknown column %q", col)
		}
		return false
	}
	return true
}

type clauseFunc func(q *selectQuery)

func (f clauseFunc) apply(q *selectQuery) { f(q) }

// Eq matches rows where col equals v.
func Eq(col string, v any) Clause {
	return clauseFunc(func(q *selectQuery) {
		if q.column(col) {
			q.where = append(q.where, col+" = ?")
			q.args = append(q.args, bind(v))
		}
	})
}

// Gte matches rows where col is at least v.
func Gte(col string, v any) Clause {
	return clauseFunc(func(q *selectQuery) {
		if q.column(col) {
			q.where = append(q.where, col+" >= ?")
			q.args = append(q.args, bind(v))
		}
	})
}

// IsNull matches rows where col is null.
func IsNull(col string) Clause {
	return clauseFunc(func(q *selectQuery) {
		if q.column(col) {
			q.where = append(q.where, col+" IS NULL")
		}
	})
}

// NotNull matches rows where col is not null.
func NotNull(col string) Clause {
	return clauseFunc(func(q *selectQuery) {
		if q.column(col) {
			q.where = append(q.where, col+" IS NOT NULL")
		}
	})
}

// In matches rows where col is any of vals. An empty list matches nothing.
func In[V any](col string, vals []V) Clause {
	return clauseFunc(func(q *selectQuery) {
		if !q.column(col) {
			return
		}
		if len(vals) == 0 {
			q.where = append(q.where, "0")
			return
		}
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(vals)), ", ")
		q.where = append(q.where, fmt.Sprintf("%s IN (%s)", col, marks))
		for _, v := range vals {
			q.args = append(q.args, bind(v))
		}
	})
}

// OrderBy sorts results by col.
func OrderBy(col string, desc bool) Clause {
	return clauseFunc(func(q *selectQuery) {
		if q.column(col) {
			dir := "ASC"
			if desc {
				dir = "DESC"
			}
			q.order = append(q.order, col+" "+dir)
		}
	})
}

// Limit caps the number of rows returned.
func Limit(n int) Clause {
	return clauseFunc(func(q *selectQuery) { q.limit = n })
}

func (t *Table[T]) build(head string, clauses []Clause) (string, []any, error) {
	q := &selectQuery{has: t.hasColumn}
	for _, c := range clauses {
		c.apply(q)
	}
	if q.err != nil {
		return "", nil, fmt.Errorf("%s: %w", t.Name, q.err)
	}
	var b strings.Builder
	b.WriteString(head)
	if len(q.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.where, " AND "))
	}
	if len(q.order) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.order, ", "))
	}
	if q.limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.limit)
	}
	return b.String(), q.args, nil
}

// Get returns the row with the given primary key, or ErrNotFound.
func Get[T any](ctx context.Context, q Querier, t *Table[T], id string) (*T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", t.columnList(), t.Name, t.Columns[0])
	v, err := t.scan(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s %s: %w", t.Name, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", t.Name, id, err)
	}
	return v, nil
}

// First returns the first row matching clauses, or ErrNotFound.
func First[T any](ctx context.Context, q Querier, t *Table[T], clauses ...Clause) (*T, error) {
	for v, err := range Query(ctx, q, t, append(clauses, Limit(1))...) {
		return v, err
	}
	return nil, fmt.Errorf("first %s: %w", t.Name, ErrNotFound)
}

// Put inserts or replaces the row by primary key.
func Put[T any](ctx context.Context, q Querier, t *Table[T], v *T) error {
	if _, err := q.ExecContext(ctx, t.upsertSQL(), t.values(v)...); err != nil {
		return fmt.Errorf("put %s: %w", t.Name, classify(t.Name, err))
	}
	return nil
}

// Add inserts the row and fails with a *ConstraintError if the key exists.
func Add[T any](ctx context.Context, q Querier, t *Table[T], v *T) error {
	if _, err := q.ExecContext(ctx, t.insertSQL(), t.values(v)...); err != nil {
		return fmt.Errorf("add %s: %w", t.Name, classify(t.Name, err))
	}
	return nil
}

// BulkPut puts every row in one transaction; either all land or none do.
func BulkPut[T any](ctx context.Context, q Querier, t *Table[T], rows []*T) error {
	if len(rows) == 0 {
		return nil
	}
	return inTx(ctx, q, func(tx Querier) error {
		query := t.upsertSQL()
		for _, v := range rows {
			if _, err := tx.ExecContext(ctx, query, t.values(v)...); err != nil {
				return fmt.Errorf("bulk put %s: %w", t.Name, classify(t.Name, err))
			}
		}
		return nil
	})
}

// Query lazily yields rows matching clauses. Iteration stops at the first error.
func Query[T any](ctx context.Context, q Querier, t *Table[T], clauses ...Clause) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		query, args, err := t.build(fmt.Sprintf("SELECT %s FROM %s", t.columnList(), t.Name), clauses)
		if err != nil {
			yield(nil, err)
			return
		}
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("query %s: %w", t.Name, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			v, err := t.scan(rows)
			if err != nil {
				yield(nil, fmt.Errorf("scan %s: %w", t.Name, err))
				return
			}
			if !yield(v, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("query %s: %w", t.Name, err))
		}
	}
}

// Collect drains Query into a slice.
func Collect[T any](ctx context.Context, q Querier, t *Table[T], clauses ...Clause) ([]*T, error) {
	var out []*T
	for v, err := range Query(ctx, q, t, clauses...) {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Count returns how many rows match clauses.
func Count[T any](ctx context.Context, q Querier, t *Table[T], clauses ...Clause) (int, error) {
	query, args, err := t.build("SELECT COUNT(*) FROM "+t.Name, clauses)
	if err != nil {
		return 0, err
	}
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.Name, err)
	}
	return n, nil
}

// Delete removes the row with the given primary key. Deleting a missing row is not an error.
func Delete[T any](ctx context.Context, q Querier, t *Table[T], id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.Name, t.Columns[0])
	if _, err := q.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", t.Name, id, err)
	}
	return nil
}

// DeleteWhere removes every row matching clauses and returns how many went.
// At least one clause is required so a stray call cannot empty a table.
func DeleteWhere[T any](ctx context.Context, q Querier, t *Table[T], clauses ...Clause) (int64, error) {
	if len(clauses) == 0 {
		return 0, fmt.Errorf("delete from %s: no condition given", t.Name)
	}
	query, args, err := t.build("DELETE FROM "+t.Name, clauses)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", t.Name, err)
	}
	return res.RowsAffected()
}

// SetStatus flips sync_status for the given ids in one statement.
func SetStatus[T any](ctx context.Context, q Querier, t *Table[T], status models.SyncStatus, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := t.build("UPDATE "+t.Name+" SET sync_status = ?", []Clause{In(t.Columns[0], ids)})
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, query, append([]any{string(status)}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("set %s status: %w", t.Name, err)
	}
	return res.RowsAffected()
}

// MarkSynced flips accepted rows to synced. A row is flipped only if it was
// among sent and is unchanged since sent was read; anything edited in the
// meantime stays pending so its newer state is pushed later.
func MarkSynced[T any](ctx context.Context, q Querier, t *Table[T], sent []*T, accepted []string) (int, error) {
	if len(accepted) == 0 || len(sent) == 0 {
		return 0, nil
	}
	submitted := make(map[string]*T, len(sent))
	for _, row := range sent {
		submitted[t.id(row)] = row
	}

	var flip []string
	for current, err := range Query(ctx, q, t, In(t.Columns[0], accepted)) {
		if err != nil {
			return 0, err
		}
		id := t.id(current)
		if snap, ok := submitted[id]; ok && reflect.DeepEqual(snap, current) {
			flip = append(flip, id)
		}
	}
	n, err := SetStatus(ctx, q, t, models.StatusSynced, flip)
	return int(n), err
}

func (t *Table[T]) id(v *T) string {
	id, _ := t.values(v)[0].(string)
	return id
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ResolveID expands an id prefix into the single full id it matches.
// The prefix is matched literally and must not be empty.
func ResolveID[T any](ctx context.Context, q Querier, t *Table[T], idOrPrefix string) (string, error) {
	if idOrPrefix == "" {
		return "", fmt.Errorf("%s: empty id: %w", t.Name, ErrNotFound)
	}
	if len(idOrPrefix) == 36 && strings.Count(idOrPrefix, "-") == 4 {
		return idOrPrefix, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s LIKE ? || '%%' ESCAPE '\' LIMIT 2`, t.Columns[0], t.Name, t.Columns[0])
	rows, err := q.QueryContext(ctx, query, likeEscaper.Replace(idOrPrefix))
	if err != nil {
		return "", fmt.Errorf("resolve %s id: %w", t.Name, err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan %s id: %w", t.Name, err)
		}
		matches = append(matches, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("resolve %s id: %w", t.Name, err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%s %s: %w", t.Name, idOrPrefix, ErrNotFound)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("ambiguous prefix %s: matches multiple %s", idOrPrefix, t.Name)
}

// bind converts domain values into driver values.
func bind(v any) any {
	switch x := v.(type) {
	case models.SyncStatus:
		return string(x)
	case models.WeekType:
		return string(x)
	case models.SetType:
		return string(x)
	case models.Unit:
		return string(x)
	case time.Time:
		return formatTime(x)
	case bool:
		if x {
			return 1
		}
		return 0
	}
	return v
}
