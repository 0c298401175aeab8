// Package postgres implements economy.Store on PostgreSQL. Every Atomically
// call runs in a serializable transaction with row locks taken through
// SELECT ... FOR UPDATE, retried on serialization failures.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chatthief/internal/economy"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

var (
	_ economy.Store    = (*Store)(nil)
	_ economy.Presence = (*Store)(nil)
)

type Store struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func New(db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, log: logger}
}

// Migrate creates the economy schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate economy schema: %w", err)
	}
	return nil
}

func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, tx economy.Tx) error) error {
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return fmt.Errorf("%w: %v", economy.ErrStoreUnavailable, err)
		}
		err = func() error {
			defer tx.Rollback(ctx)
			if err := fn(ctx, &pgTx{tx: tx}); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			return economy.ErrTxConflict
		}
		s.log.Debug("transaction conflict, retrying", "attempt", attempt+1, "delay", retryDelay)
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return economy.ErrTxConflict
}

func (s *Store) LookupUser(ctx context.Context, name string) (economy.User, bool, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `
		SELECT name, cool_points, street_cred, mana, COALESCE(ride_or_die, '')
		FROM economy.users
		WHERE name = $1
	`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return economy.NewUser(name), false, nil
	}
	if err != nil {
		return economy.User{}, false, err
	}
	return u, true, nil
}

func (s *Store) LookupCommand(ctx context.Context, name string) (economy.Command, bool, error) {
	c, err := scanCommand(s.db.QueryRow(ctx, `
		SELECT name, cost, health, likes, dislikes
		FROM economy.commands
		WHERE name = $1
	`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return economy.Command{}, false, nil
	}
	if err != nil {
		return economy.Command{}, false, err
	}
	return c, true, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]economy.User, error) {
	rows, err := s.db.Query(ctx, `
		SELECT name, cool_points, street_cred, mana, COALESCE(ride_or_die, '')
		FROM economy.users
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []economy.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) CountRideOrDie(ctx context.Context, name string) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM economy.users WHERE ride_or_die = $1 AND name <> $1
	`, name).Scan(&n)
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
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM economy.command_access WHERE command_name = $1
	`, command).Scan(&n)
	return n, err
}

func (s *Store) History(ctx context.Context, username string, limit int) ([]economy.LedgerEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT tx_group_id::text, username, command_name, action, currency, delta
		FROM economy.ledger_entries
		WHERE username = $1
		ORDER BY id DESC
		LIMIT $2
	`, username, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []economy.LedgerEntry
	for rows.Next() {
		var e economy.LedgerEntry
		var currency string
		if err := rows.Scan(&e.TxGroupID, &e.Username, &e.Command, &e.Action, &currency, &e.Delta); err != nil {
			return nil, err
		}
		e.Currency = economy.Currency(currency)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Seen(ctx context.Context, username string, at time.Time) error {
	if username == "" {
		return economy.ErrEmptyUsername
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO economy.presence (username, last_seen)
		VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE
		SET last_seen = GREATEST(economy.presence.last_seen, EXCLUDED.last_seen)
	`, username, at.UTC())
	return err
}

func (s *Store) Recent(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT username
		FROM economy.presence
		WHERE last_seen >= $1
		ORDER BY last_seen DESC, username
	`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func commandsFor(ctx context.Context, q querier, username string) ([]string, error) {
	rows, err := q.Query(ctx, `
		SELECT command_name
		FROM economy.command_access
		WHERE username = $1
		ORDER BY command_name
	`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func hasAccess(ctx context.Context, q querier, command, username string) (bool, error) {
	var ok bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM economy.command_access
			WHERE command_name = $1 AND username = $2
		)
	`, command, username).Scan(&ok)
	return ok, err
}

func scanUser(row pgx.Row) (economy.User, error) {
	var u economy.User
	err := row.Scan(&u.Name, &u.CoolPoints, &u.StreetCred, &u.Mana, &u.RideOrDie)
	return u, err
}

func scanCommand(row pgx.Row) (economy.Command, error) {
	var c economy.Command
	err := row.Scan(&c.Name, &c.Cost, &c.Health, &c.Likes, &c.Dislikes)
	return c, err
}

// isRetryable matches serialization failures and deadlocks.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
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
