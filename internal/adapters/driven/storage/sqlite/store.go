package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/ledgersync/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
	"github.com/custodia-labs/ledgersync/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.Store = (*Store)(nil)

// Store is a SQLite-backed driven.Store. Tables and their columns come from
// the embedded migrations; record keys without a column are dropped.
type Store struct {
	db     *sql.DB
	path   string
	closed atomic.Bool

	mu      sync.RWMutex
	columns map[string][]string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.ledgersync/data/ledgersync.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".ledgersync", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "ledgersync.db")

	// WAL lets readers proceed while a sync is writing
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// single writer; concurrent upserts queue on the connection
	db.SetMaxOpenConns(1)

	s := &Store{
		db:      db,
		path:    dbPath,
		columns: make(map[string][]string),
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection. Later calls fail with
// domain.ErrStoreUnavailable.
func (s *Store) Close() error {
	s.closed.Store(true)
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SchedulerStore returns a SchedulerStore backed by this database.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{store: s}
}

// migrate runs all pending migrations, recording each applied version.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== driven.Store ====================

// Select returns rows matching q.
func (s *Store) Select(ctx context.Context, table string, q domain.Query) ([]domain.Record, error) {
	cols, err := s.tableColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	where, args, err := whereClause(cols, q.Filter)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(quoteIdent(table))
	b.WriteString(where)
	if q.OrderBy != "" {
		if !hasColumn(cols, q.OrderBy) {
			return nil, fmt.Errorf("select %s: %w: unknown column %s", table, domain.ErrInvalidInput, q.OrderBy)
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(quoteIdent(q.OrderBy))
		if q.Desc {
			b.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, s.wrapErr("select "+table, err)
	}
	defer rows.Close()

	out := []domain.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrapErr("select "+table, err)
	}
	return out, nil
}

// Insert writes new rows in one transaction, assigning ids where missing.
func (s *Store) Insert(ctx context.Context, table string, records []domain.Record) ([]domain.Record, error) {
	cols, err := s.tableColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	var out []domain.Record
	err = s.withTx(ctx, "insert "+table, func(tx *sql.Tx) error {
		out, err = insertRows(ctx, tx, table, cols, records)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert inserts or updates rows keyed on conflictKeys in one transaction.
// The store id of an existing row is never changed.
func (s *Store) Upsert(
	ctx context.Context, table string, records []domain.Record, conflictKeys []string,
) ([]domain.Record, error) {
	if len(conflictKeys) == 0 {
		return nil, fmt.Errorf("%w: upsert %s without conflict keys", domain.ErrInvalidInput, table)
	}
	cols, err := s.tableColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	for _, k := range conflictKeys {
		if !hasColumn(cols, k) {
			return nil, fmt.Errorf("%w: upsert %s: unknown conflict column %s", domain.ErrInvalidInput, table, k)
		}
	}
	for _, rec := range records {
		for _, k := range conflictKeys {
			if !rec.Has(k) {
				return nil, fmt.Errorf("%w: upsert %s: missing %s", domain.ErrInvalidInput, table, k)
			}
		}
	}

	out := make([]domain.Record, 0, len(records))
	err = s.withTx(ctx, "upsert "+table, func(tx *sql.Tx) error {
		for _, rec := range records {
			row := rec.Clone()
			delete(row, domain.FieldID)
			names, args := rowValues(cols, withID(row))

			query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s RETURNING *",
				quoteIdent(table),
				joinIdents(names),
				placeholders(len(names)),
				joinIdents(conflictKeys),
				updateSet(names, conflictKeys),
			)

			rows, err := tx.QueryContext(ctx, query, args...)
			if err != nil {
				return err
			}
			var written domain.Record
			if rows.Next() {
				written, err = scanRecord(rows)
			}
			if closeErr := rows.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}
			out = append(out, written)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies patch to every row matching filter.
func (s *Store) Update(ctx context.Context, table string, filter domain.Filter, patch domain.Record) (int, error) {
	cols, err := s.tableColumns(ctx, table)
	if err != nil {
		return 0, err
	}

	patch = patch.Clone()
	delete(patch, domain.FieldID)
	names, args := rowValues(cols, patch)
	if len(names) == 0 {
		return 0, nil
	}

	where, whereArgs, err := whereClause(cols, filter)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}

	sets := make([]string, len(names))
	for i, n := range names {
		sets[i] = quoteIdent(n) + " = ?"
	}
	query := "UPDATE " + quoteIdent(table) + " SET " + strings.Join(sets, ", ") + where

	res, err := s.db.ExecContext(ctx, query, append(args, whereArgs...)...)
	if err != nil {
		return 0, s.wrapErr("update "+table, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Delete removes rows matching filter.
func (s *Store) Delete(ctx context.Context, table string, filter domain.Filter) (int, error) {
	cols, err := s.tableColumns(ctx, table)
	if err != nil {
		return 0, err
	}
	where, args, err := whereClause(cols, filter)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM "+quoteIdent(table)+where, args...)
	if err != nil {
		return 0, s.wrapErr("delete "+table, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Replace deletes rows matching filter and inserts records in one
// transaction.
func (s *Store) Replace(ctx context.Context, table string, filter domain.Filter, records []domain.Record) error {
	cols, err := s.tableColumns(ctx, table)
	if err != nil {
		return err
	}
	where, args, err := whereClause(cols, filter)
	if err != nil {
		return fmt.Errorf("replace %s: %w", table, err)
	}

	return s.withTx(ctx, "replace "+table, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+quoteIdent(table)+where, args...); err != nil {
			return err
		}
		_, err := insertRows(ctx, tx, table, cols, records)
		return err
	})
}

// ==================== Helpers ====================

// tableColumns returns the table's columns, cached after the first lookup.
func (s *Store) tableColumns(ctx context.Context, table string) ([]string, error) {
	s.mu.RLock()
	cols, ok := s.columns[table]
	s.mu.RUnlock()
	if ok {
		return cols, nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, s.wrapErr("table info "+table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table info: %w", err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrapErr("table info "+table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: unknown table %s", domain.ErrInvalidInput, table)
	}

	s.mu.Lock()
	s.columns[table] = cols
	s.mu.Unlock()
	return cols, nil
}

// withTx runs fn in a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrapErr(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return s.wrapErr(op, err)
	}
	if err := tx.Commit(); err != nil {
		return s.wrapErr(op, err)
	}
	return nil
}

// wrapErr marks connectivity failures with domain.ErrStoreUnavailable.
func (s *Store) wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if s.closed.Load() || errors.Is(err, sql.ErrConnDone) || isUnavailable(err) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUnavailable(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "unable to open database file") ||
		strings.Contains(msg, "disk I/O error")
}

func insertRows(
	ctx context.Context, tx *sql.Tx, table string, cols []string, records []domain.Record,
) ([]domain.Record, error) {
	out := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		row := withID(rec)
		names, args := rowValues(cols, row)

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdent(table), joinIdents(names), placeholders(len(names)))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, err
		}

		stored := make(domain.Record, len(names))
		for _, n := range names {
			stored[n] = domain.StorageValue(row[n])
		}
		out = append(out, stored)
	}
	return out, nil
}

// withID returns a copy of rec carrying an id.
func withID(rec domain.Record) domain.Record {
	row := rec.Clone()
	if !row.Has(domain.FieldID) {
		row[domain.FieldID] = uuid.New().String()
	}
	return row
}

// rowValues returns the record's known columns, sorted, with bind values.
func rowValues(cols []string, rec domain.Record) ([]string, []any) {
	names := make([]string, 0, len(rec))
	for k := range rec {
		if hasColumn(cols, k) {
			names = append(names, k)
		} else {
			logger.Debug("sqlite: dropping unknown column %s", k)
		}
	}
	sort.Strings(names)

	args := make([]any, len(names))
	for i, n := range names {
		args[i] = bindValue(rec[n])
	}
	return names, args
}

// bindValue converts a record value to a driver value.
func bindValue(v any) any {
	switch t := domain.StorageValue(v).(type) {
	case nil:
		return nil
	case string, float64, int64, []byte:
		return t
	case bool:
		return boolToInt(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case []string:
		return strings.Join(t, ",")
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

// whereClause builds a WHERE clause from a filter.
func whereClause(cols []string, filter domain.Filter) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}

	conds := make([]string, 0, len(filter))
	var args []any
	for _, p := range filter {
		if !hasColumn(cols, p.Field) {
			return "", nil, fmt.Errorf("%w: unknown column %s", domain.ErrInvalidInput, p.Field)
		}
		col := quoteIdent(p.Field)

		switch p.Op {
		case domain.OpEq:
			conds = append(conds, col+" = ?")
			args = append(args, predicateValue(p.Value))
		case domain.OpIn:
			if len(p.Values) == 0 {
				conds = append(conds, "0")
				continue
			}
			conds = append(conds, col+" IN ("+placeholders(len(p.Values))+")")
			for _, v := range p.Values {
				args = append(args, predicateValue(v))
			}
		case domain.OpIsNull:
			conds = append(conds, col+" IS NULL")
		case domain.OpNotNull:
			conds = append(conds, col+" IS NOT NULL")
		default:
			return "", nil, fmt.Errorf("%w: unsupported operator %s", domain.ErrInvalidInput, p.Op)
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// predicateValue keeps integers integral so they compare equal against
// TEXT and INTEGER columns alike.
func predicateValue(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int64:
		return t
	default:
		return bindValue(v)
	}
}

// scanRecord reads the current row into a record.
func scanRecord(rows *sql.Rows) (domain.Record, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	rec := make(domain.Record, len(names))
	for i, n := range names {
		switch v := values[i].(type) {
		case []byte:
			rec[n] = string(v)
		default:
			rec[n] = domain.StorageValue(v)
		}
	}
	return rec, nil
}

func updateSet(names, conflictKeys []string) string {
	sets := make([]string, 0, len(names))
	for _, n := range names {
		if n == domain.FieldID || containsString(conflictKeys, n) {
			continue
		}
		sets = append(sets, quoteIdent(n)+" = excluded."+quoteIdent(n))
	}
	if len(sets) == 0 {
		// Conflict-key-only rows still need a no-op update for RETURNING.
		k := quoteIdent(conflictKeys[0])
		return k + " = excluded." + k
	}
	return strings.Join(sets, ", ")
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func joinIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func hasColumn(cols []string, name string) bool {
	return containsString(cols, name)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
