package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

const (
	kindMigration = "migration"
	kindSeed      = "seed"

	defaultTable = "schema_history"
)

// Runner applies versioned SQL migrations and idempotent seed files from an
// fs.FS (usually an embed.FS shipped inside the binary). Applied files are
// recorded in a single history table keyed by kind and file name.
type Runner struct {
	db    *sql.DB
	src   fs.FS
	table string
}

type Option func(*Runner)

// WithHistoryTable overrides the bookkeeping table name.
func WithHistoryTable(name string) Option {
	return func(r *Runner) {
		if name != "" {
			r.table = name
		}
	}
}

func NewRunner(db *sql.DB, src fs.FS, opts ...Option) *Runner {
	r := &Runner{db: db, src: src, table: defaultTable}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Applied is one history row.
type Applied struct {
	Name      string
	AppliedAt time.Time
}

// Up applies all pending .up.sql files in lexical order and returns how many
// it ran.
func (r *Runner) Up(ctx context.Context) (int, error) {
	if err := r.ensureHistory(ctx); err != nil {
		return 0, err
	}
	done, err := r.applied(ctx, kindMigration)
	if err != nil {
		return 0, err
	}
	names, err := listSQL(r.src, ".up.sql")
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, name := range names {
		if done[name] {
			continue
		}
		if err := r.execFile(ctx, name); err != nil {
			return applied, fmt.Errorf("migrate %s: %w", name, err)
		}
		if err := r.record(ctx, kindMigration, name); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// Down rolls back the most recently applied migration using its .down.sql
// counterpart and returns its name.
func (r *Runner) Down(ctx context.Context) (string, error) {
	if err := r.ensureHistory(ctx); err != nil {
		return "", err
	}
	history, err := r.Status(ctx)
	if err != nil {
		return "", err
	}
	if len(history) == 0 {
		return "", errors.New("migrate: nothing to roll back")
	}
	last := history[len(history)-1].Name
	down := strings.TrimSuffix(last, ".up.sql") + ".down.sql"
	if _, err := fs.Stat(r.src, down); err != nil {
		return "", fmt.Errorf("migrate: no down file for %s", last)
	}
	if err := r.execFile(ctx, down); err != nil {
		return "", fmt.Errorf("rollback %s: %w", last, err)
	}
	_, err = r.db.ExecContext(ctx,
		fmt.Sprintf(`delete from %s where kind=$1 and name=$2`, r.table), kindMigration, last)
	return last, err
}

// Status lists applied migrations in order.
func (r *Runner) Status(ctx context.Context) ([]Applied, error) {
	if err := r.ensureHistory(ctx); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`select name, applied_at from %s where kind=$1 order by applied_at, name`, r.table),
		kindMigration)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Applied
	for rows.Next() {
		var a Applied
		if err := rows.Scan(&a.Name, &a.AppliedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Seed runs every not-yet-applied .seed.sql file.
func (r *Runner) Seed(ctx context.Context) (int, error) {
	if err := r.ensureHistory(ctx); err != nil {
		return 0, err
	}
	done, err := r.applied(ctx, kindSeed)
	if err != nil {
		return 0, err
	}
	names, err := listSQL(r.src, ".seed.sql")
	if err != nil {
		return 0, err
	}
	applied := 0
	for _, name := range names {
		if done[name] {
			continue
		}
		if err := r.execFile(ctx, name); err != nil {
			return applied, fmt.Errorf("seed %s: %w", name, err)
		}
		if err := r.record(ctx, kindSeed, name); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func (r *Runner) ensureHistory(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		create table if not exists %s (
			kind       text not null,
			name       text not null,
			applied_at timestamptz not null default now(),
			primary key (kind, name)
		)`, r.table))
	return err
}

func (r *Runner) execFile(ctx context.Context, name string) error {
	raw, err := fs.ReadFile(r.src, name)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(string(raw)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Runner) record(ctx context.Context, kind, name string) error {
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`insert into %s(kind, name, applied_at) values($1,$2,$3)`, r.table),
		kind, name, time.Now().UTC())
	return err
}

func (r *Runner) applied(ctx context.Context, kind string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`select name from %s where kind=$1`, r.table), kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out[name] = true
	}
	return out, rows.Err()
}

func listSQL(src fs.FS, suffix string) ([]string, error) {
	var names []string
	err := fs.WalkDir(src, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), suffix) {
			names = append(names, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// splitStatements splits on semicolons outside single-quoted strings. Good
// enough for DDL and simple seeds; functions with embedded semicolons belong
// in their own single-statement file.
func splitStatements(sql string) []string {
	var (
		stmts    []string
		current  strings.Builder
		inString bool
	)
	for _, r := range sql {
		switch {
		case r == '\'':
			inString = !inString
			current.WriteRune(r)
		case r == ';' && !inString:
			if s := strings.TrimSpace(current.String()); s != "" {
				stmts = append(stmts, s)
			}
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}
