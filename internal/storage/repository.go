package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"devexpense/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores calculator sessions until they expire.
type SQLiteRepository struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewSQLiteRepository(dbPath string, ttl time.Duration) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer keeps sqlite from returning SQLITE_BUSY under load
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, ttl: ttl, now: time.Now}, nil
}

// SetClock replaces time.Now, mainly for tests.
func (r *SQLiteRepository) SetClock(now func() time.Time) {
	r.now = now
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load implements session.Store
func (r *SQLiteRepository) Load(ctx context.Context, id string) (core.Session, bool, error) {
	var (
		s       core.Session
		flags   string
		amounts [4]string
	)
	now := r.now()
	err := r.db.QueryRowContext(ctx, `
		SELECT income, software, courses, internet, savings_percentage, errors,
		       total_expenses, balance, savings_amount, remaining_balance
		FROM sessions WHERE id = ? AND expires_at > ?`, id, now.UnixMilli()).
		Scan(&s.Inputs.Income, &s.Inputs.Software, &s.Inputs.Courses, &s.Inputs.Internet,
			&s.SavingsPercentage, &flags, &amounts[0], &amounts[1], &amounts[2], &amounts[3])
	if errors.Is(err, sql.ErrNoRows) {
		return core.Session{}, false, nil
	}
	if err != nil {
		return core.Session{}, false, fmt.Errorf("get session: %w", err)
	}

	if err := json.Unmarshal([]byte(flags), &s.Errors); err != nil {
		return core.Session{}, false, fmt.Errorf("decode validation state: %w", err)
	}
	parsed, err := parseDecimals(amounts[:]...)
	if err != nil {
		return core.Session{}, false, fmt.Errorf("decode result: %w", err)
	}
	s.Result = core.Result{
		TotalExpenses:    parsed[0],
		Balance:          parsed[1],
		SavingsAmount:    parsed[2],
		RemainingBalance: parsed[3],
	}

	s.History, err = r.listHistory(ctx, id)
	if err != nil {
		return core.Session{}, false, err
	}

	// sliding expiry, same as the memory store
	if _, err := r.db.ExecContext(ctx, `UPDATE sessions SET expires_at = ? WHERE id = ?`, now.Add(r.ttl).UnixMilli(), id); err != nil {
		return core.Session{}, false, fmt.Errorf("touch session: %w", err)
	}

	return s, true, nil
}

func (r *SQLiteRepository) listHistory(ctx context.Context, id string) (core.History, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, entry_date, income, total_expenses, balance
		FROM history_entries WHERE session_id = ? ORDER BY id DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var h core.History
	for rows.Next() {
		var (
			e       core.HistoryEntry
			date    string
			amounts [3]string
		)
		if err := rows.Scan(&e.ID, &date, &amounts[0], &amounts[1], &amounts[2]); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		d, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return nil, fmt.Errorf("parse history date %q: %w", date, err)
		}
		parsed, err := parseDecimals(amounts[:]...)
		if err != nil {
			return nil, fmt.Errorf("decode history entry %d: %w", e.ID, err)
		}
		e.Date = core.Date{Time: d}
		e.Income, e.TotalExpenses, e.Balance = parsed[0], parsed[1], parsed[2]
		h = append(h, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return h, nil
}

// Save implements session.Store. History is append-only, so entries already
// stored are left as they are, unless the stored session has expired, in which
// case it is replaced wholesale.
func (r *SQLiteRepository) Save(ctx context.Context, id string, s core.Session) error {
	flags, err := json.Marshal(s.Errors)
	if err != nil {
		return fmt.Errorf("encode validation state: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := r.now()
	// An expired row that the purge has not reached yet belongs to a session
	// that has ended; its history must not leak into the new one.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM history_entries WHERE session_id = ?
		AND EXISTS (SELECT 1 FROM sessions WHERE id = ? AND expires_at <= ?)`,
		id, id, now.UnixMilli()); err != nil {
		return fmt.Errorf("drop expired history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ? AND expires_at <= ?`, id, now.UnixMilli()); err != nil {
		return fmt.Errorf("drop expired session: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, income, software, courses, internet, savings_percentage, errors,
		                      total_expenses, balance, savings_amount, remaining_balance,
		                      created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			income = excluded.income,
			software = excluded.software,
			courses = excluded.courses,
			internet = excluded.internet,
			savings_percentage = excluded.savings_percentage,
			errors = excluded.errors,
			total_expenses = excluded.total_expenses,
			balance = excluded.balance,
			savings_amount = excluded.savings_amount,
			remaining_balance = excluded.remaining_balance,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at`,
		id, s.Inputs.Income, s.Inputs.Software, s.Inputs.Courses, s.Inputs.Internet,
		s.SavingsPercentage, string(flags),
		s.Result.TotalExpenses.String(), s.Result.Balance.String(),
		s.Result.SavingsAmount.String(), s.Result.RemainingBalance.String(),
		now.UnixMilli(), now.UnixMilli(), now.Add(r.ttl).UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	for _, e := range s.History {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO history_entries (session_id, id, entry_date, income, total_expenses, balance)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, e.ID, e.Date.String(), e.Income.String(), e.TotalExpenses.String(), e.Balance.String())
		if err != nil {
			return fmt.Errorf("insert history entry %d: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

// PurgeExpired deletes sessions past their expiry together with their history.
func (r *SQLiteRepository) PurgeExpired(ctx context.Context) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := r.now().UnixMilli()
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM history_entries
		WHERE session_id IN (SELECT id FROM sessions WHERE expires_at <= ?)`, now); err != nil {
		return 0, fmt.Errorf("delete expired history: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit purge: %w", err)
	}
	return n, nil
}

// CleanExpired implements cache.Cleaner.
func (r *SQLiteRepository) CleanExpired() int {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := r.PurgeExpired(ctx)
	if err != nil {
		slog.Error("Failed to purge expired sessions", "component", "storage", "error", err)
		return 0
	}
	return int(n)
}

// CountSessions returns the number of stored sessions, expired or not.
func (r *SQLiteRepository) CountSessions(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func parseDecimals(values ...string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("parse decimal %q: %w", v, err)
		}
		out[i] = d
	}
	return out, nil
}
