// Package sqlitesink is the reference internal/sink.Sink implementation:
// a naive CREATE TABLE IF NOT EXISTS plus batched INSERT OR REPLACE over
// modernc.org/sqlite. It exists for cmd/extractcli and integration tests —
// not as a production schema.
package sqlitesink

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// preferredKeyColumns is tried in order when picking the column(s) an
// INSERT OR REPLACE should key on; the first one present in a row's
// columns wins.
var preferredKeyColumns = []string{"guid", "class_name"}

// Sink writes batches to a single SQLite database file, creating tables
// and columns on first use.
type Sink struct {
	db *sql.DB

	mu     sync.Mutex
	tables map[string]map[string]bool // table -> known column set
}

// New opens (or creates) a SQLite database at path.
func New(path string) (*Sink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %q: %w", path, err)
	}
	return &Sink{db: db, tables: make(map[string]map[string]bool)}, nil
}

// Close closes the underlying database handle.
func (s *Sink) Close() error {
	return s.db.Close()
}

// UpsertBatch creates table (if absent), widens its schema to cover any
// new columns in rows, and upserts every row in one transaction.
func (s *Sink) UpsertBatch(ctx context.Context, table string, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}

	columns := unionColumns(rows)
	keyColumn := pickKeyColumn(columns)

	if err := s.ensureTable(ctx, table, columns, keyColumn); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction for %q: %w", table, err)
	}
	defer tx.Rollback()

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = "?"
	}
	stmt := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoteIdents(columns), ", "), strings.Join(placeholders, ", "))

	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("preparing upsert for %q: %w", table, err)
	}
	defer prepared.Close()

	for _, row := range rows {
		args := make([]any, len(columns))
		for i, col := range columns {
			args[i] = row[col]
		}
		if _, err := prepared.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("upserting row into %q: %w", table, err)
		}
	}

	return tx.Commit()
}

func (s *Sink) ensureTable(ctx context.Context, table string, columns []string, keyColumn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := s.tables[table]
	if known == nil {
		ddl := buildCreateTable(table, columns, keyColumn)
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating table %q: %w", table, err)
		}
		known = make(map[string]bool, len(columns))
		for _, c := range columns {
			known[c] = true
		}
		s.tables[table] = known
		return nil
	}

	for _, c := range columns {
		if known[c] {
			continue
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteIdent(table), quoteIdent(c))
		if _, err := s.db.ExecContext(ctx, alter); err != nil {
			return fmt.Errorf("widening table %q with column %q: %w", table, c, err)
		}
		known[c] = true
	}
	return nil
}

func buildCreateTable(table string, columns []string, keyColumn string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (", quoteIdent(table))
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(c))
		if c == keyColumn {
			b.WriteString(" PRIMARY KEY")
		}
	}
	b.WriteString(")")
	return b.String()
}

// unionColumns collects every column present across rows, sorted for
// deterministic DDL and placeholder ordering.
func unionColumns(rows []map[string]any) []string {
	set := make(map[string]bool)
	for _, row := range rows {
		for k := range row {
			set[k] = true
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func pickKeyColumn(columns []string) string {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	for _, k := range preferredKeyColumns {
		if present[k] {
			return k
		}
	}
	if len(columns) > 0 {
		return columns[0]
	}
	return ""
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteIdents(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = quoteIdent(s)
	}
	return out
}
