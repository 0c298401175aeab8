package sqlite

import (
	"context"

	"chatthief/internal/economy"

	"github.com/jmoiron/sqlx"
)

// sqliteTx relies on the write lock SQLite takes for the whole transaction,
// so reads need no row locks.
type sqliteTx struct {
	tx *sqlx.Tx
}

func (t *sqliteTx) User(ctx context.Context, name string) (economy.User, error) {
	if name == "" {
		return economy.User{}, economy.ErrEmptyUsername
	}
	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO users (name, mana) VALUES (?, ?)
		ON CONFLICT (name) DO NOTHING
	`, name, economy.DefaultMana); err != nil {
		return economy.User{}, err
	}
	var u economy.User
	err := t.tx.GetContext(ctx, &u, selectUser+` WHERE name = ?`, name)
	return u, err
}

func (t *sqliteTx) PutUser(ctx context.Context, u economy.User) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE users
		SET cool_points = ?, street_cred = ?, mana = ?, ride_or_die = NULLIF(?, '')
		WHERE name = ?
	`, u.CoolPoints, u.StreetCred, u.Mana, u.RideOrDie, u.Name)
	return err
}

func (t *sqliteTx) Command(ctx context.Context, name string, basePrice int64) (economy.Command, error) {
	seed := economy.NewCommand(name, basePrice)
	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO commands (name, cost) VALUES (?, ?)
		ON CONFLICT (name) DO NOTHING
	`, seed.Name, seed.Cost); err != nil {
		return economy.Command{}, err
	}
	var c economy.Command
	err := t.tx.GetContext(ctx, &c, `SELECT name, cost, health, likes, dislikes FROM commands WHERE name = ?`, name)
	return c, err
}

func (t *sqliteTx) PutCommand(ctx context.Context, c economy.Command) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE commands SET cost = ?, health = ?, likes = ?, dislikes = ?
		WHERE name = ?
	`, c.Cost, c.Health, c.Likes, c.Dislikes, c.Name)
	return err
}

func (t *sqliteTx) HasAccess(ctx context.Context, command, username string) (bool, error) {
	return hasAccess(ctx, t.tx, command, username)
}

func (t *sqliteTx) Grant(ctx context.Context, command, username string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO command_access (command_name, username) VALUES (?, ?)
		ON CONFLICT (command_name, username) DO NOTHING
	`, command, username)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (t *sqliteTx) Revoke(ctx context.Context, command, username string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		DELETE FROM command_access WHERE command_name = ? AND username = ?
	`, command, username)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (t *sqliteTx) CommandsFor(ctx context.Context, username string) ([]string, error) {
	return commandsFor(ctx, t.tx, username)
}

func (t *sqliteTx) CountRideOrDie(ctx context.Context, name string) (int64, error) {
	var n int64
	err := t.tx.GetContext(ctx, &n, `SELECT count(*) FROM users WHERE ride_or_die = ? AND name <> ?`, name, name)
	return n, err
}

func (t *sqliteTx) Append(ctx context.Context, entries ...economy.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO ledger_entries (tx_group_id, username, command_name, action, currency, delta)
		VALUES (:tx_group_id, :username, :command_name, :action, :currency, :delta)
	`, entries)
	return err
}
