// Package postgres provides the Postgres-backed breach store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/hhs-breach-watch/internal/breach"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "breaches"

// Columns in insert/select order, excluding the serial id.
var breachColumns = []string{
	"name_of_covered_entity",
	"state",
	"covered_entity_type",
	"individuals_affected",
	"breach_submission_date",
	"type_of_breach",
	"location_of_breached_information",
	"business_associate_present",
	"web_description",
	"archive",
}

var orderClauses = map[breach.Order]string{
	breach.OrderDateDesc:     "breach_submission_date DESC, id DESC",
	breach.OrderDateAsc:      "breach_submission_date ASC, id ASC",
	breach.OrderAffectedDesc: "individuals_affected DESC, id ASC",
	breach.OrderAffectedAsc:  "individuals_affected ASC, id ASC",
	breach.OrderName:         "name_of_covered_entity ASC, id ASC",
}

// Config controls the Postgres connection pool used for breach rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// BreachStore reads and writes breach rows in Postgres.
type BreachStore struct {
	pool  pool
	table string
}

// NewBreachStore connects a pool using the provided config.
func NewBreachStore(ctx context.Context, cfg Config) (*BreachStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
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
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &BreachStore{pool: p, table: table}, nil
}

// NewBreachStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewBreachStoreWithPool(p pool, table string) (*BreachStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &BreachStore{pool: p, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *BreachStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks connectivity.
func (s *BreachStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// EnsureSchema creates the breach table and its lookup indexes when absent.
func (s *BreachStore) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id BIGSERIAL PRIMARY KEY,
	name_of_covered_entity TEXT NOT NULL,
	state TEXT NOT NULL,
	covered_entity_type TEXT NOT NULL DEFAULT '',
	individuals_affected INTEGER NOT NULL DEFAULT 500,
	breach_submission_date DATE NOT NULL,
	type_of_breach TEXT NOT NULL DEFAULT '',
	location_of_breached_information TEXT NOT NULL DEFAULT '',
	business_associate_present BOOLEAN NOT NULL DEFAULT FALSE,
	web_description TEXT NOT NULL DEFAULT '',
	archive BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS %[1]s_state_idx ON %[1]s (state);
CREATE INDEX IF NOT EXISTS %[1]s_submitted_idx ON %[1]s (breach_submission_date);`, s.table)
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ReplaceCategory deletes every row with the given archive flag and bulk
// loads rows in a single transaction.
func (s *BreachStore) ReplaceCategory(ctx context.Context, archive bool, rows []breach.Breach) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin replace: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx) //nolint:errcheck // already failing
		}
	}()

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE archive = $1", s.table), archive); err != nil {
		return 0, fmt.Errorf("delete category rows: %w", err)
	}
	source := make([][]any, 0, len(rows))
	for _, b := range rows {
		source = append(source, []any{
			b.NameOfCoveredEntity,
			b.State,
			b.CoveredEntityType,
			b.IndividualsAffected,
			b.BreachSubmissionDate,
			b.TypeOfBreach,
			b.LocationOfBreachedInformation,
			b.BusinessAssociatePresent,
			b.WebDescription,
			archive,
		})
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{s.table}, breachColumns, pgx.CopyFromRows(source))
	if err != nil {
		return 0, fmt.Errorf("copy breach rows: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit replace: %w", err)
	}
	committed = true
	return n, nil
}

func (s *BreachStore) selectColumns() string {
	return "id, " + strings.Join(breachColumns, ", ")
}

// List returns breaches matching filter.
func (s *BreachStore) List(ctx context.Context, filter breach.Filter) ([]breach.Breach, error) {
	f, err := filter.Normalize()
	if err != nil {
		return nil, err
	}
	query, args := s.buildListQuery(f)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list breaches: %w", err)
	}
	defer rows.Close()

	var out []breach.Breach
	for rows.Next() {
		b, err := scanBreach(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate breaches: %w", err)
	}
	return out, nil
}

func (s *BreachStore) buildListQuery(f breach.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.State != "" {
		add("state = $%d", f.State)
	}
	if f.Archive != nil {
		add("archive = $%d", *f.Archive)
	}
	if f.Since != nil {
		add("breach_submission_date >= $%d", *f.Since)
	}
	if f.Until != nil {
		add("breach_submission_date <= $%d", *f.Until)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", s.selectColumns(), s.table)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	fmt.Fprintf(&sb, " ORDER BY %s", orderClauses[f.Order])
	args = append(args, f.Limit, f.Offset)
	fmt.Fprintf(&sb, " LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return sb.String(), args
}

// Get loads a single breach or returns breach.ErrNotFound.
func (s *BreachStore) Get(ctx context.Context, id int64) (breach.Breach, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", s.selectColumns(), s.table)
	b, err := scanBreach(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return breach.Breach{}, breach.ErrNotFound
	}
	if err != nil {
		return breach.Breach{}, err
	}
	return b, nil
}

// SummarizeStates aggregates breach counts per state, optionally limited to
// one category.
func (s *BreachStore) SummarizeStates(ctx context.Context, archive *bool) ([]breach.StateSummary, error) {
	query := fmt.Sprintf(
		"SELECT state, COUNT(*), COALESCE(SUM(individuals_affected), 0) FROM %s", s.table)
	var args []any
	if archive != nil {
		query += " WHERE archive = $1"
		args = append(args, *archive)
	}
	query += " GROUP BY state ORDER BY state"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summarize states: %w", err)
	}
	defer rows.Close()

	var out []breach.StateSummary
	for rows.Next() {
		var sum breach.StateSummary
		if err := rows.Scan(&sum.State, &sum.Breaches, &sum.IndividualsAffected); err != nil {
			return nil, fmt.Errorf("scan state summary: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state summaries: %w", err)
	}
	return out, nil
}

func scanBreach(row pgx.Row) (breach.Breach, error) {
	var b breach.Breach
	err := row.Scan(
		&b.ID,
		&b.NameOfCoveredEntity,
		&b.State,
		&b.CoveredEntityType,
		&b.IndividualsAffected,
		&b.BreachSubmissionDate,
		&b.TypeOfBreach,
		&b.LocationOfBreachedInformation,
		&b.BusinessAssociatePresent,
		&b.WebDescription,
		&b.Archive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return breach.Breach{}, pgx.ErrNoRows
	}
	if err != nil {
		return breach.Breach{}, fmt.Errorf("scan breach: %w", err)
	}
	return b, nil
}
