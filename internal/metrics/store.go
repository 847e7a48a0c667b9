package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ca-srg/leakscope/internal/record"
)

// Mode identifies the entry point that ran a search or export.
type Mode string

const (
	ModeSearch Mode = "search"
	ModeExport Mode = "export"
	ModeHTTP   Mode = "http"
	ModeMCP    Mode = "mcp"
)

// Modes lists every tracked mode.
func Modes() []Mode {
	return []Mode{ModeSearch, ModeExport, ModeHTTP, ModeMCP}
}

const dateLayout = "2006-01-02"

const schema = `
CREATE TABLE IF NOT EXISTS invocation_counts (
	mode  TEXT NOT NULL,
	date  TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (mode, date)
);
CREATE TABLE IF NOT EXISTS source_outcomes (
	source TEXT NOT NULL,
	state  TEXT NOT NULL,
	date   TEXT NOT NULL,
	count  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (source, state, date)
);`

// Store persists daily invocation counts and per-source outcomes in SQLite.
// Only counters are stored, never query text or results.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultPath returns ~/.leakscope/stats.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".leakscope", "stats.db"), nil
}

// NewStore opens (creating if needed) the database at path. An empty path
// uses DefaultPath.
func NewStore(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create stats directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open stats database: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create stats tables: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) today() string {
	return s.now().Format(dateLayout)
}

// Increment adds one invocation of mode for today.
func (s *Store) Increment(ctx context.Context, mode Mode) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invocation_counts (mode, date, count) VALUES (?, ?, 1)
		ON CONFLICT(mode, date) DO UPDATE SET count = count + 1`,
		string(mode), s.today())
	if err != nil {
		return fmt.Errorf("increment %s: %w", mode, err)
	}
	return nil
}

// RecordSources adds one outcome per source status for today.
func (s *Store) RecordSources(ctx context.Context, statuses []record.SourceStatus) error {
	if len(statuses) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	today := s.today()
	for _, st := range statuses {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO source_outcomes (source, state, date, count) VALUES (?, ?, ?, 1)
			ON CONFLICT(source, state, date) DO UPDATE SET count = count + 1`,
			st.Name, string(st.State), today); err != nil {
			return fmt.Errorf("record outcome for %s: %w", st.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Totals returns the cumulative count per mode. Every known mode is present.
func (s *Store) Totals(ctx context.Context) (map[Mode]int64, error) {
	totals := make(map[Mode]int64, len(Modes()))
	for _, m := range Modes() {
		totals[m] = 0
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT mode, COALESCE(SUM(count), 0) FROM invocation_counts GROUP BY mode`)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mode string
		var n int64
		if err := rows.Scan(&mode, &n); err != nil {
			return nil, fmt.Errorf("scan totals: %w", err)
		}
		totals[Mode(mode)] = n
	}
	return totals, rows.Err()
}

// CountOn returns the count of mode on date (YYYY-MM-DD).
func (s *Store) CountOn(ctx context.Context, mode Mode, date string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM invocation_counts WHERE mode = ? AND date = ?`,
		string(mode), date).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count %s on %s: %w", mode, date, err)
	}
	return n, nil
}

// SourceOutcome is the cumulative count of one source state.
type SourceOutcome struct {
	Source string
	State  record.SourceState
	Count  int64
}

// SourceOutcomes returns cumulative outcomes ordered by source then state.
func (s *Store) SourceOutcomes(ctx context.Context) ([]SourceOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, state, SUM(count) FROM source_outcomes
		GROUP BY source, state ORDER BY source, state`)
	if err != nil {
		return nil, fmt.Errorf("query source outcomes: %w", err)
	}
	defer rows.Close()

	var out []SourceOutcome
	for rows.Next() {
		var o SourceOutcome
		var state string
		if err := rows.Scan(&o.Source, &state, &o.Count); err != nil {
			return nil, fmt.Errorf("scan source outcomes: %w", err)
		}
		o.State = record.SourceState(state)
		out = append(out, o)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
