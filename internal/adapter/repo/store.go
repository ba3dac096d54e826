package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/go-sql-driver/mysql"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore hands out repositories bound to the pool and runs units of work.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLStore(db *sql.DB, d Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: d}
}

func (s *SQLStore) Products() *ProductRepo { return &ProductRepo{q: s.db} }
func (s *SQLStore) Orders() *OrderRepo     { return &OrderRepo{q: s.db} }
func (s *SQLStore) Users() *UserRepo       { return &UserRepo{q: s.db} }

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// WithinTx commits when fn returns nil and rolls back otherwise.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, st usecase.Store) error) error {
	opts := &sql.TxOptions{}
	if s.dialect == MySQL {
		opts.Isolation = sql.LevelReadCommitted
	}
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(ctx, txStore{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type txStore struct{ tx *sql.Tx }

func (t txStore) Products() usecase.ProductRepo { return &ProductRepo{q: t.tx} }
func (t txStore) Orders() usecase.OrderRepo     { return &OrderRepo{q: t.tx} }

// runInTx gives multi-statement writes their own transaction when the
// repository is bound to the pool, and joins the caller's otherwise.
func runInTx(ctx context.Context, q querier, fn func(q querier) error) error {
	db, ok := q.(*sql.DB)
	if !ok {
		return fn(q)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// exists is the follow-up for a zero RowsAffected: MySQL reports rows
// changed, not rows matched, so a no-op update looks like a miss.
func exists(ctx context.Context, q querier, table string, id int64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func isUniqueViolation(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1451
	}
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func notFound(what string, id int64) error {
	return fmt.Errorf("%s %d: %w", what, id, domain.ErrNotFound)
}

// likePattern builds a case-insensitive contains pattern for LOWER(col) LIKE ? ESCAPE '!'.
func likePattern(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

var (
	_ usecase.UnitOfWork = (*SQLStore)(nil)
	_ usecase.Store      = txStore{}
)
