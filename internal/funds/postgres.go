package funds

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS fund_names (
	name        TEXT PRIMARY KEY,
	placeholder TEXT NOT NULL UNIQUE,
	position    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS fund_registry_meta (
	id            INTEGER PRIMARY KEY,
	next_sequence INTEGER NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// PostgresConfig contains database configuration
type PostgresConfig struct {
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PostgresStore persists the registry in PostgreSQL
type PostgresStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

type fundRow struct {
	Name        string `db:"name"`
	Placeholder string `db:"placeholder"`
	Position    int    `db:"position"`
}

// NewPostgresStore connects to the database and ensures the schema exists
func NewPostgresStore(ctx context.Context, config PostgresConfig, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	store := &PostgresStore{db: db, logger: logger}
	if err := store.initialize(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	logger.Info("Fund registry store initialized",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns))

	return store, nil
}

func (s *PostgresStore) initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Load reads the registry. A database without a meta row has never been
// saved and yields a nil state.
func (s *PostgresStore) Load(ctx context.Context) (*State, error) {
	var next int
	err := s.db.GetContext(ctx, &next, `SELECT next_sequence FROM fund_registry_meta WHERE id = 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load registry meta: %w", err)
	}

	var rows []fundRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT name, placeholder, position FROM fund_names ORDER BY position`); err != nil {
		return nil, fmt.Errorf("failed to load fund names: %w", err)
	}

	state := &State{
		Names:        make([]string, 0, len(rows)),
		Placeholders: make(map[string]string, len(rows)),
		NextSequence: next,
	}
	for _, row := range rows {
		state.Names = append(state.Names, row.Name)
		state.Placeholders[row.Name] = row.Placeholder
	}
	return state, nil
}

// Save replaces the stored registry in a single transaction
func (s *PostgresStore) Save(ctx context.Context, state *State) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fund_names`); err != nil {
		return fmt.Errorf("failed to clear fund names: %w", err)
	}

	if len(state.Names) > 0 {
		rows := make([]fundRow, 0, len(state.Names))
		for i, name := range state.Names {
			rows = append(rows, fundRow{Name: name, Placeholder: state.Placeholders[name], Position: i})
		}
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO fund_names (name, placeholder, position) VALUES (:name, :placeholder, :position)`,
			rows); err != nil {
			return fmt.Errorf("failed to insert fund names: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO fund_registry_meta (id, next_sequence, updated_at) VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET next_sequence = EXCLUDED.next_sequence, updated_at = now()`,
		state.NextSequence); err != nil {
		return fmt.Errorf("failed to update registry meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit registry: %w", err)
	}

	s.logger.Debug("Fund registry saved", zap.Int("fund_count", len(state.Names)))
	return nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// maskDatabaseURL hides the password component for logging
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
