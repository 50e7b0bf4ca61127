package registry

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig controls the pgx pool behind the provider store.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresStore implements Store against the providers table.
type PostgresStore struct {
	pool pgxQuerier
}

// NewPostgresStore connects a pgx pool using the provided config.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("registry.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse registry dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect registry: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewPostgresStoreWithPool(pool pgxQuerier) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// ProvidersByDepartment returns the active, registry-sourced providers
// of one department with their current enrichment fields.
func (s *PostgresStore) ProvidersByDepartment(ctx context.Context, dept string) ([]Provider, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, name, phone, rating_average, review_count
FROM providers
WHERE address_department = $1 AND is_active = true AND source = 'annuaire_entreprises'`, dept)
	if err != nil {
		return nil, fmt.Errorf("query providers for %s: %w", dept, err)
	}
	defer rows.Close()

	var providers []Provider
	for rows.Next() {
		var (
			p       Provider
			phone   *string
			rating  *float64
			reviews *int
		)
		if err := rows.Scan(&p.ID, &p.Name, &phone, &rating, &reviews); err != nil {
			return nil, fmt.Errorf("scan provider row: %w", err)
		}
		if phone != nil {
			p.Phone = *phone
		}
		if rating != nil {
			p.Rating = *rating
		}
		if reviews != nil {
			p.ReviewCount = *reviews
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provider rows: %w", err)
	}
	return providers, nil
}

// KnownPhones returns every distinct non-null phone of active providers.
func (s *PostgresStore) KnownPhones(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT phone FROM providers WHERE phone IS NOT NULL AND is_active = true`)
	if err != nil {
		return nil, fmt.Errorf("query known phones: %w", err)
	}
	defer rows.Close()

	var phones []string
	for rows.Next() {
		var phone string
		if err := rows.Scan(&phone); err != nil {
			return nil, fmt.Errorf("scan phone row: %w", err)
		}
		phones = append(phones, phone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate phone rows: %w", err)
	}
	return phones, nil
}

// ApplyUpdate writes the update's non-zero fields. Phone writes carry a
// conditional clause so a provider enriched concurrently by an external
// writer keeps its phone.
func (s *PostgresStore) ApplyUpdate(ctx context.Context, upd Update) error {
	if upd.ProviderID == "" {
		return fmt.Errorf("provider id is required")
	}
	if upd.IsZero() {
		return nil
	}

	var (
		sets []string
		args []any
	)
	next := func() string { return "$" + strconv.Itoa(len(args)) }

	if upd.Phone != "" {
		args = append(args, upd.Phone)
		sets = append(sets, "phone="+next())
	}
	if upd.Rating > 0 {
		args = append(args, upd.Rating)
		sets = append(sets, "rating_average="+next())
		args = append(args, upd.ReviewCount)
		sets = append(sets, "review_count="+next())
	}
	if upd.Website != "" {
		args = append(args, upd.Website)
		sets = append(sets, "website=COALESCE(website,"+next()+")")
	}

	args = append(args, upd.ProviderID)
	where := "id=" + next()
	if upd.Phone != "" {
		where += " AND phone IS NULL"
	}

	query := fmt.Sprintf("UPDATE providers SET %s WHERE %s", strings.Join(sets, ","), where)
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update provider %s: %w", upd.ProviderID, err)
	}
	return nil
}
