package postgres

import (
	"context"

	"chatthief/internal/economy"

	"github.com/jackc/pgx/v5"
)

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) User(ctx context.Context, name string) (economy.User, error) {
	if name == "" {
		return economy.User{}, economy.ErrEmptyUsername
	}
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO economy.users (name, mana)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`, name, economy.DefaultMana); err != nil {
		return economy.User{}, err
	}
	return scanUser(t.tx.QueryRow(ctx, `
		SELECT name, cool_points, street_cred, mana, COALESCE(ride_or_die, '')
		FROM economy.users
		WHERE name = $1
		FOR UPDATE
	`, name))
}

func (t *pgTx) PutUser(ctx context.Context, u economy.User) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE economy.users
		SET cool_points = $2, street_cred = $3, mana = $4, ride_or_die = NULLIF($5, ''), updated_at = now()
		WHERE name = $1
	`, u.Name, u.CoolPoints, u.StreetCred, u.Mana, u.RideOrDie)
	return err
}

func (t *pgTx) Command(ctx context.Context, name string, basePrice int64) (economy.Command, error) {
	seed := economy.NewCommand(name, basePrice)
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO economy.commands (name, cost)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`, seed.Name, seed.Cost); err != nil {
		return economy.Command{}, err
	}
	return scanCommand(t.tx.QueryRow(ctx, `
		SELECT name, cost, health, likes, dislikes
		FROM economy.commands
		WHERE name = $1
		FOR UPDATE
	`, name))
}

func (t *pgTx) PutCommand(ctx context.Context, c economy.Command) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE economy.commands
		SET cost = $2, health = $3, likes = $4, dislikes = $5, updated_at = now()
		WHERE name = $1
	`, c.Name, c.Cost, c.Health, c.Likes, c.Dislikes)
	return err
}

func (t *pgTx) HasAccess(ctx context.Context, command, username string) (bool, error) {
	return hasAccess(ctx, t.tx, command, username)
}

func (t *pgTx) Grant(ctx context.Context, command, username string) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO economy.command_access (command_name, username)
		VALUES ($1, $2)
		ON CONFLICT (command_name, username) DO NOTHING
	`, command, username)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) Revoke(ctx context.Context, command, username string) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		DELETE FROM economy.command_access
		WHERE command_name = $1 AND username = $2
	`, command, username)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) CommandsFor(ctx context.Context, username string) ([]string, error) {
	return commandsFor(ctx, t.tx, username)
}

func (t *pgTx) CountRideOrDie(ctx context.Context, name string) (int64, error) {
	var n int64
	err := t.tx.QueryRow(ctx, `
		SELECT count(*) FROM economy.users WHERE ride_or_die = $1 AND name <> $1
	`, name).Scan(&n)
	return n, err
}

func (t *pgTx) Append(ctx context.Context, entries ...economy.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO economy.ledger_entries (tx_group_id, username, command_name, action, currency, delta)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, e.TxGroupID, e.Username, e.Command, e.Action, string(e.Currency), e.Delta)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}
