package source

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spektr-org/obsviz/engine"
	"github.com/spektr-org/obsviz/schema"
)

// ============================================================================
// SQLITE SOURCE — Observations table in a local database
// ============================================================================
// One column per catalog field: numeric fields are REAL, dates are TEXT in
// RFC 3339 UTC, everything else is TEXT. NULL is a missing value. Group
// means are computed by SQLite; date means are returned as Unix
// milliseconds, matching the engine's date axis.
// ============================================================================

const dateLayout = "2006-01-02T15:04:05Z"

// SQLite is an engine.Source backed by a SQLite database.
type SQLite struct {
	db      *sql.DB
	columns []schema.FieldMeta
}

var _ engine.Source = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &SQLite{db: db, columns: schema.Fields()}
	if _, err := db.Exec(s.ddl()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

// Close closes the database handle.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) ddl() string {
	cols := make([]string, 0, len(s.columns))
	for _, m := range s.columns {
		typ := "TEXT"
		if m.Kind == schema.KindNumeric {
			typ = "REAL"
		}
		cols = append(cols, fmt.Sprintf("%s %s", quote(m.Key), typ))
	}
	return "CREATE TABLE IF NOT EXISTS observations (\n\t" + strings.Join(cols, ",\n\t") + "\n);\n" +
		"CREATE TABLE IF NOT EXISTS palette (position INTEGER PRIMARY KEY, color TEXT NOT NULL);"
}

// ============================================================================
// WRITES
// ============================================================================

// Import appends records in one transaction. Missing values are stored as
// NULL.
func (s *SQLite) Import(ctx context.Context, records []engine.Observation) error {
	names := make([]string, len(s.columns))
	marks := make([]string, len(s.columns))
	for i, m := range s.columns {
		names[i] = quote(m.Key)
		marks[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO observations (%s) VALUES (%s)",
		strings.Join(names, ", "), strings.Join(marks, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(s.columns))
	for _, r := range records {
		for i, m := range s.columns {
			args[i] = columnValue(r, m)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert observation: %w", err)
		}
	}
	return tx.Commit()
}

func columnValue(r engine.Observation, m schema.FieldMeta) any {
	switch m.Kind {
	case schema.KindNumeric:
		if v, ok := r.Number(m.Key); ok {
			return v
		}
	case schema.KindDate:
		if t, ok := r.Time(m.Key); ok {
			return t.UTC().Format(dateLayout)
		}
	default:
		if v, ok := r.Text(m.Key); ok {
			return v
		}
	}
	return nil
}

// SetPalette replaces the stored palette.
func (s *SQLite) SetPalette(ctx context.Context, colors []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin palette: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM palette"); err != nil {
		return fmt.Errorf("clear palette: %w", err)
	}
	for i, c := range colors {
		if _, err := tx.ExecContext(ctx, "INSERT INTO palette (position, color) VALUES (?, ?)", i, c); err != nil {
			return fmt.Errorf("insert palette color: %w", err)
		}
	}
	return tx.Commit()
}

// ============================================================================
// READS
// ============================================================================

// Observations reads every row in insertion order.
func (s *SQLite) Observations(ctx context.Context) ([]engine.Observation, error) {
	names := make([]string, len(s.columns))
	for i, m := range s.columns {
		names[i] = quote(m.Key)
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM observations ORDER BY rowid", strings.Join(names, ", ")))
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var records []engine.Observation
	nums := make([]sql.NullFloat64, len(s.columns))
	strs := make([]sql.NullString, len(s.columns))
	dest := make([]any, len(s.columns))
	for i, m := range s.columns {
		if m.Kind == schema.KindNumeric {
			dest[i] = &nums[i]
		} else {
			dest[i] = &strs[i]
		}
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		values := make(map[schema.Field]any, len(s.columns))
		for i, m := range s.columns {
			switch {
			case m.Kind == schema.KindNumeric && nums[i].Valid:
				values[m.Key] = nums[i].Float64
			case m.Kind == schema.KindDate && strs[i].Valid:
				if t, err := time.Parse(dateLayout, strs[i].String); err == nil {
					values[m.Key] = t
				}
			case m.Kind != schema.KindNumeric && strs[i].Valid:
				values[m.Key] = strs[i].String
			}
		}
		records = append(records, engine.NewObservation(values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read observations: %w", err)
	}
	return records, nil
}

// CategoryDomain returns the distinct non-empty values of category in
// first-seen order.
func (s *SQLite) CategoryDomain(ctx context.Context, category schema.Field) ([]string, error) {
	if err := checkCategory(category); err != nil {
		return nil, err
	}
	col := quote(category)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT TRIM(%[1]s) AS v FROM observations
		 WHERE %[1]s IS NOT NULL AND TRIM(%[1]s) <> ''
		 GROUP BY v ORDER BY MIN(rowid)`, col))
	if err != nil {
		return nil, fmt.Errorf("query %s domain: %w", category, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s domain: %w", category, err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Aggregated returns AVG(y) per (x, group) pair in first-seen order.
func (s *SQLite) Aggregated(ctx context.Context, x, y, group schema.Field) ([]engine.AggregatedObservation, error) {
	if err := checkAggregate(x, y, group); err != nil {
		return nil, err
	}
	meta, _ := schema.Lookup(y)
	measure := quote(y)
	if meta.Kind == schema.KindDate {
		measure = fmt.Sprintf("(julianday(%s) - 2440587.5) * 86400000.0", measure)
	}
	xc, gc := quote(x), quote(group)
	query := fmt.Sprintf(
		`SELECT TRIM(%[1]s), TRIM(%[2]s), AVG(%[3]s) FROM observations
		 WHERE %[1]s IS NOT NULL AND TRIM(%[1]s) <> '' AND %[2]s IS NOT NULL AND TRIM(%[2]s) <> ''
		 GROUP BY TRIM(%[1]s), TRIM(%[2]s)
		 ORDER BY MIN(rowid)`, xc, gc, measure)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query aggregated observations: %w", err)
	}
	defer rows.Close()

	var out []engine.AggregatedObservation
	for rows.Next() {
		var xv, gv string
		var mean sql.NullFloat64
		if err := rows.Scan(&xv, &gv, &mean); err != nil {
			return nil, fmt.Errorf("scan aggregated observation: %w", err)
		}
		means := map[schema.Field]float64{}
		if mean.Valid {
			means[y] = mean.Float64
		}
		out = append(out, engine.NewAggregatedObservation(
			map[schema.Field]any{x: xv, group: gv},
			means,
		))
	}
	return out, rows.Err()
}

// Palette returns the stored palette in position order, or ErrNoPalette.
func (s *SQLite) Palette(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT color FROM palette ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query palette: %w", err)
	}
	defer rows.Close()

	var colors []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan palette: %w", err)
		}
		colors = append(colors, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(colors) == 0 {
		return nil, ErrNoPalette
	}
	return colors, nil
}

// quote renders a catalog field as a SQL identifier. Only catalog names
// reach here.
func quote(f schema.Field) string {
	return `"` + strings.ReplaceAll(string(f), `"`, `""`) + `"`
}
