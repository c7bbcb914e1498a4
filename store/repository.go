package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/arc-self/neatoo/neatooerr"
)

// Querier is the narrow slice of *sql.DB/*sql.Tx a PersonRepository depends
// on. Depending on the interface instead of the concrete pool is what lets
// tests substitute DATA-DOG/go-sqlmock without a live Postgres, the same
// seam roles_handler.go gets for free from its generated db.Querier.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OpenPool parses dsn and returns a *sql.DB backed by pgx's stdlib driver,
// instrumented with otelpgx.NewTracer() — the database/sql-compatible
// equivalent of apps/iam-service/cmd/api/main.go's
// poolCfg.ConnConfig.Tracer = otelpgx.NewTracer() wiring, chosen here (over
// a bare *pgxpool.Pool) specifically so PersonRepository can depend on the
// database/sql Querier interface and be tested with go-sqlmock.
func OpenPool(dsn string) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	cfg.Tracer = otelpgx.NewTracer()
	return stdlib.OpenDB(*cfg), nil
}

// PersonRepository implements the Insert/Update/Delete/FetchByID adapters
// SPEC_FULL §4.14 calls the "write adapters" a generator would normally
// produce, against a Person SaveMeta entity.
type PersonRepository struct {
	db     Querier
	logger *zap.Logger
}

// NewPersonRepository builds a PersonRepository over db.
func NewPersonRepository(db Querier, logger *zap.Logger) *PersonRepository {
	return &PersonRepository{db: db, logger: logger}
}

// FetchByID loads a Person by primary key. A missing row surfaces as a
// neatooerr.KindDomain error rather than a bare sql.ErrNoRows, so it
// encodes cleanly through the dispatcher's status table.
func (r *PersonRepository) FetchByID(ctx context.Context, id int64) (*Person, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, active, age, name FROM people WHERE id = $1`, id)
	p := &Person{}
	if err := row.Scan(&p.ID, &p.Active, &p.Age, &p.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, neatooerr.Newf(neatooerr.KindDomain, "person %d not found", id)
		}
		r.logger.Error("fetch person failed", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("store: fetch person %d: %w", id, err)
	}
	return p, nil
}

// Insert persists a new Person and assigns its ID.
func (r *PersonRepository) Insert(ctx context.Context, p *Person) error {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO people (active, age, name) VALUES ($1, $2, $3) RETURNING id`,
		p.Active, p.Age, p.Name)
	var id int64
	if err := row.Scan(&id); err != nil {
		r.logger.Error("insert person failed", zap.Error(err))
		return fmt.Errorf("store: insert person: %w", err)
	}
	p.MarkSaved(id)
	return nil
}

// Update persists changes to an existing Person.
func (r *PersonRepository) Update(ctx context.Context, p *Person) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE people SET active = $1, age = $2, name = $3 WHERE id = $4`,
		p.Active, p.Age, p.Name, p.ID)
	if err != nil {
		r.logger.Error("update person failed", zap.Int64("id", p.ID), zap.Error(err))
		return fmt.Errorf("store: update person %d: %w", p.ID, err)
	}
	return r.requireOneRow(res, p.ID, "update")
}

// Delete removes a Person row.
func (r *PersonRepository) Delete(ctx context.Context, p *Person) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM people WHERE id = $1`, p.ID)
	if err != nil {
		r.logger.Error("delete person failed", zap.Int64("id", p.ID), zap.Error(err))
		return fmt.Errorf("store: delete person %d: %w", p.ID, err)
	}
	return r.requireOneRow(res, p.ID, "delete")
}

func (r *PersonRepository) requireOneRow(res sql.Result, id int64, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: %s person %d: rows affected: %w", op, id, err)
	}
	if n == 0 {
		return neatooerr.Newf(neatooerr.KindDomain, "person %d not found", id)
	}
	return nil
}
