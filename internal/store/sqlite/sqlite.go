// Package sqlite implements economy.Store on a single SQLite file through
// sqlx and the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatthief/internal/economy"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed schema.sql
var schema string

var (
	_ economy.Store    = (*Store)(nil)
	_ economy.Presence = (*Store)(nil)
)

const selectUser = `SELECT name, cool_points, street_cred, mana, COALESCE(ride_or_die, '') AS ride_or_die FROM users`

type Store struct {
	db  *sqlx.DB
	log *slog.Logger
}

func New(db *sqlx.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, log: logger}
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";\n") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, tx economy.Tx) error) error {
	const maxAttempts = 8
	retryDelay := 25 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			if isBusy(err) {
				s.log.Debug("sqlite busy on begin, retrying", "attempt", attempt+1)
				if err := sleepWithContext(ctx, retryDelay); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("%w: %v", economy.ErrStoreUnavailable, err)
		}
		err = func() error {
			defer tx.Rollback()
			if err := fn(ctx, &sqliteTx{tx: tx}); err != nil {
				return err
			}
			return tx.Commit()
		}()
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			break
		}
		s.log.Debug("sqlite busy, retrying", "attempt", attempt+1, "delay", retryDelay)
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < 800*time.Millisecond {
			retryDelay *= 2
		}
	}
	return economy.ErrTxConflict
}

func (s *Store) LookupUser(ctx context.Context, name string) (economy.User, bool, error) {
	var u economy.User
	err := s.db.GetContext(ctx, &u, selectUser+` WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return economy.NewUser(name), false, nil
	}
	if err != nil {
		return economy.User{}, false, err
	}
	return u, true, nil
}

func (s *Store) LookupCommand(ctx context.Context, name string) (economy.Command, bool, error) {
	var c economy.Command
	err := s.db.GetContext(ctx, &c, `SELECT name, cost, health, likes, dislikes FROM commands WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return economy.Command{}, false, nil
	}
	if err != nil {
		return economy.Command{}, false, err
	}
	return c, true, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]economy.User, error) {
	var out []economy.User
	err := s.db.SelectContext(ctx, &out, selectUser+` ORDER BY id`)
	return out, err
}

func (s *Store) CountRideOrDie(ctx context.Context, name string) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM users WHERE ride_or_die = ? AND name <> ?`, name, name)
	return n, err
}

func (s *Store) CommandsFor(ctx context.Context, username string) ([]string, error) {
	return commandsFor(ctx, s.db, username)
}

func (s *Store) HasAccess(ctx context.Context, command, username string) (bool, error) {
	return hasAccess(ctx, s.db, command, username)
}

func (s *Store) CountOwners(ctx context.Context, command string) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM command_access WHERE command_name = ?`, command)
	return n, err
}

func (s *Store) History(ctx context.Context, username string, limit int) ([]economy.LedgerEntry, error) {
	var out []economy.LedgerEntry
	err := s.db.SelectContext(ctx, &out, `
		SELECT tx_group_id, username, command_name, action, currency, delta
		FROM ledger_entries
		WHERE username = ?
		ORDER BY id DESC
		LIMIT ?
	`, username, limit)
	return out, err
}

func (s *Store) Seen(ctx context.Context, username string, at time.Time) error {
	if username == "" {
		return economy.ErrEmptyUsername
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO presence (username, last_seen) VALUES (?, ?)
		ON CONFLICT (username) DO UPDATE SET last_seen = max(last_seen, excluded.last_seen)
	`, username, at.UnixNano())
	return err
}

func (s *Store) Recent(ctx context.Context, since time.Time) ([]string, error) {
	var out []string
	err := s.db.SelectContext(ctx, &out, `
		SELECT username FROM presence
		WHERE last_seen >= ?
		ORDER BY last_seen DESC, username
	`, since.UnixNano())
	return out, err
}

func commandsFor(ctx context.Context, q sqlx.QueryerContext, username string) ([]string, error) {
	var out []string
	err := sqlx.SelectContext(ctx, q, &out, `
		SELECT command_name FROM command_access
		WHERE username = ?
		ORDER BY command_name
	`, username)
	return out, err
}

func hasAccess(ctx context.Context, q sqlx.QueryerContext, command, username string) (bool, error) {
	var ok bool
	err := sqlx.GetContext(ctx, q, &ok, `
		SELECT EXISTS (SELECT 1 FROM command_access WHERE command_name = ? AND username = ?)
	`, command, username)
	return ok, err
}

func isBusy(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code() & 0xff
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
