// Package sqldb provides a SQL-backed interaction archive that supports
// multiple database dialects.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/domain"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/core/ports"
	"github.com/dream-horizon-org/pulse-interaction-engine/internal/storage/dialect"
)

const defaultListLimit = 100

// Store is a SQL implementation of the interaction archive.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

var _ ports.InteractionStore = (*Store)(nil)

// Config holds database connection configuration
type Config struct {
	Driver string // Driver name: sqlite, postgres, mysql
	DSN    string // Data source name / connection string
}

// New creates a new SQL store from a driver name and DSN.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Run dialect-specific initialization (e.g., PRAGMA for SQLite)
	for _, stmt := range d.PragmaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db, dialect: d}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite creates a SQLite-backed store at the given path. Use ":memory:"
// for an ephemeral database.
func NewSQLite(dbPath string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dbPath})
}

// DB returns the underlying sqlx.DB for advanced operations
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect returns the dialect being used
func (s *Store) Dialect() dialect.Dialect {
	return s.dialect
}

func (s *Store) initSchema() error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS interactions (
id TEXT PRIMARY KEY,
name TEXT NOT NULL,
config_id INTEGER NOT NULL,
first_event_ns INTEGER NOT NULL,
last_event_ns INTEGER NOT NULL,
completion_ns INTEGER NOT NULL,
apdex_score REAL,
user_category TEXT,
is_errored %s NOT NULL DEFAULT 0,
events %s NOT NULL,
marker_events %s,
created_at %s NOT NULL DEFAULT %s
)`, s.dialect.BooleanType(), s.dialect.TextType(), s.dialect.TextType(),
			s.dialect.TimestampType(), s.dialect.CurrentTimestamp()),
		`CREATE INDEX IF NOT EXISTS idx_interactions_name ON interactions(name)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_config ON interactions(config_id)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_errored ON interactions(is_errored)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_completion ON interactions(completion_ns)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(s.dialect.Rebind(stmt)); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// SaveInteraction persists one terminal record. Saving the same walk id
// twice overwrites the previous row, so replayed terminals stay idempotent.
func (s *Store) SaveInteraction(ctx context.Context, interaction *domain.Interaction) error {
	if interaction == nil {
		return nil
	}

	events, err := json.Marshal(interaction.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}
	markers, err := json.Marshal(interaction.MarkerEvents)
	if err != nil {
		return fmt.Errorf("failed to marshal marker events: %w", err)
	}

	upsert := s.dialect.UpsertClause("id", []string{
		"name", "config_id", "first_event_ns", "last_event_ns", "completion_ns",
		"apdex_score", "user_category", "is_errored", "events", "marker_events",
	})
	query := s.dialect.Rebind(fmt.Sprintf(`INSERT INTO interactions (
id, name, config_id, first_event_ns, last_event_ns, completion_ns,
apdex_score, user_category, is_errored, events, marker_events, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, %s)
%s`, s.dialect.CurrentTimestamp(), upsert))

	var category any
	if interaction.UserCategory != "" {
		category = string(interaction.UserCategory)
	}

	_, err = s.db.ExecContext(ctx, query,
		interaction.ID, interaction.Name, interaction.ConfigID,
		interaction.FirstEventTimeNanos, interaction.LastEventTimeNanos,
		interaction.CompletionTimeNanos, interaction.ApdexScore, category,
		interaction.IsErrored, string(events), string(markers))
	if err != nil {
		return fmt.Errorf("failed to save interaction: %w", err)
	}

	return nil
}

// GetInteraction retrieves one record by walk id.
func (s *Store) GetInteraction(ctx context.Context, id string) (*domain.Interaction, error) {
	query := s.dialect.Rebind(`SELECT id, name, config_id, first_event_ns, last_event_ns, completion_ns,
apdex_score, user_category, is_errored, events, marker_events
FROM interactions WHERE id = ?`)

	row := s.db.QueryRowContext(ctx, query, id)
	interaction, err := scanInteraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("interaction %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interaction: %w", err)
	}

	return interaction, nil
}

// ListInteractions returns records newest first, filtered per opts.
func (s *Store) ListInteractions(ctx context.Context, opts ports.ListOptions) ([]*domain.Interaction, error) {
	query := `SELECT id, name, config_id, first_event_ns, last_event_ns, completion_ns,
apdex_score, user_category, is_errored, events, marker_events
FROM interactions`

	var conds []string
	var args []any
	if opts.Name != "" {
		conds = append(conds, "name = ?")
		args = append(args, opts.Name)
	}
	if opts.Errored != nil {
		conds = append(conds, "is_errored = ?")
		args = append(args, *opts.Errored)
	}
	if opts.SinceNanos > 0 {
		conds = append(conds, "completion_ns >= ?")
		args = append(args, opts.SinceNanos)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " ORDER BY completion_ns DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var interactions []*domain.Interaction
	for rows.Next() {
		interaction, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		interactions = append(interactions, interaction)
	}

	return interactions, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInteraction(row rowScanner) (*domain.Interaction, error) {
	var interaction domain.Interaction
	var apdex sql.NullFloat64
	var category, markersJSON sql.NullString
	var eventsJSON string

	if err := row.Scan(
		&interaction.ID, &interaction.Name, &interaction.ConfigID,
		&interaction.FirstEventTimeNanos, &interaction.LastEventTimeNanos,
		&interaction.CompletionTimeNanos, &apdex, &category,
		&interaction.IsErrored, &eventsJSON, &markersJSON); err != nil {
		return nil, err
	}

	if apdex.Valid {
		score := apdex.Float64
		interaction.ApdexScore = &score
	}
	if category.Valid {
		interaction.UserCategory = domain.UserCategory(category.String)
	}
	if err := json.Unmarshal([]byte(eventsJSON), &interaction.Events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal events: %w", err)
	}
	if markersJSON.Valid && markersJSON.String != "" {
		if err := json.Unmarshal([]byte(markersJSON.String), &interaction.MarkerEvents); err != nil {
			return nil, fmt.Errorf("failed to unmarshal marker events: %w", err)
		}
	}

	return &interaction, nil
}
