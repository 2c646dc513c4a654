package postgres

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// statementCall records one statement a repository issued, in order.
type statementCall struct {
	sql  string
	args []any
}

// stubResult is the canned response consumed by the next statement.
type stubResult struct {
	values []any
	tag    pgconn.CommandTag
	rows   *stubRows
	err    error
}

// scriptQuerier replays a fixed script of results while recording every
// statement, so tests can assert the exact SQL contract a repository issues.
type scriptQuerier struct {
	calls   []statementCall
	results []stubResult
}

func (q *scriptQuerier) record(sql string, args []any) stubResult {
	q.calls = append(q.calls, statementCall{sql: sql, args: args})
	if len(q.results) == 0 {
		return stubResult{}
	}
	next := q.results[0]
	q.results = q.results[1:]
	return next
}

func (q *scriptQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	next := q.record(sql, args)
	return next.tag, next.err
}

func (q *scriptQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	next := q.record(sql, args)
	if next.err != nil {
		return nil, next.err
	}
	if next.rows == nil {
		return &stubRows{}, nil
	}
	return next.rows, nil
}

func (q *scriptQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	next := q.record(sql, args)
	return stubRow{values: next.values, err: next.err}
}

// stubRow scans scripted values, or reports pgx.ErrNoRows when none were
// scripted, mirroring a conditional insert whose RETURNING produced nothing.
type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.values == nil {
		return pgx.ErrNoRows
	}
	return assignValues(dest, r.values)
}

type stubRows struct {
	rows [][]any
	pos  int
	err  error
}

func (r *stubRows) Close() {}

func (r *stubRows) Err() error { return r.err }

func (r *stubRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (r *stubRows) Values() ([]any, error) { return nil, nil }

func (r *stubRows) RawValues() [][]byte { return nil }

func (r *stubRows) Conn() *pgx.Conn { return nil }

func (r *stubRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	return assignValues(dest, r.rows[r.pos-1])
}

func assignValues(dest, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d scripted values", len(dest), len(values))
	}
	for i, value := range values {
		dv := reflect.ValueOf(dest[i])
		if dv.Kind() != reflect.Pointer || dv.IsNil() {
			return fmt.Errorf("scan: destination %d is not a pointer", i)
		}
		elem := dv.Elem()
		if value == nil {
			elem.Set(reflect.Zero(elem.Type()))
			continue
		}
		sv := reflect.ValueOf(value)
		if !sv.Type().AssignableTo(elem.Type()) {
			return fmt.Errorf("scan: cannot assign %T to destination %d (%s)", value, i, elem.Type())
		}
		elem.Set(sv)
	}
	return nil
}

// stubTx routes statements to the shared script and counts terminations.
type stubTx struct {
	pgx.Tx
	q         *scriptQuerier
	commits   int
	rollbacks int
}

func (t *stubTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.q.Exec(ctx, sql, args...)
}

func (t *stubTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.q.Query(ctx, sql, args...)
}

func (t *stubTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.q.QueryRow(ctx, sql, args...)
}

func (t *stubTx) Commit(context.Context) error { t.commits++; return nil }

func (t *stubTx) Rollback(context.Context) error { t.rollbacks++; return nil }

// stubDB satisfies the repository DB surface: scripted queries plus Begin.
type stubDB struct {
	*scriptQuerier
	tx *stubTx
}

func newStubDB() *stubDB {
	q := &scriptQuerier{}
	return &stubDB{scriptQuerier: q, tx: &stubTx{q: q}}
}

func (d *stubDB) Begin(context.Context) (pgx.Tx, error) { return d.tx, nil }
