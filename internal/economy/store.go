package economy

import (
	"context"
	"time"
)

// Store persists users, commands and access grants. Atomically runs fn as one
// transaction: every key touched through tx is locked until fn returns, and
// nothing fn wrote is visible if it returns an error. Implementations may run
// fn more than once when retrying a conflict.
type Store interface {
	Atomically(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	LookupUser(ctx context.Context, name string) (User, bool, error)
	LookupCommand(ctx context.Context, name string) (Command, bool, error)
	// ListUsers returns every user in insertion order.
	ListUsers(ctx context.Context) ([]User, error)
	CountRideOrDie(ctx context.Context, name string) (int64, error)
	CommandsFor(ctx context.Context, username string) ([]string, error)
	HasAccess(ctx context.Context, command, username string) (bool, error)
	CountOwners(ctx context.Context, command string) (int, error)
	History(ctx context.Context, username string, limit int) ([]LedgerEntry, error)
}

// Tx is the locked view handed to Store.Atomically. Callers lock a user
// before any command so concurrent transactions acquire keys in one order.
type Tx interface {
	// User finds or creates the record and locks it.
	User(ctx context.Context, name string) (User, error)
	PutUser(ctx context.Context, u User) error
	// Command finds or creates the record at basePrice and locks it.
	Command(ctx context.Context, name string, basePrice int64) (Command, error)
	PutCommand(ctx context.Context, c Command) error

	HasAccess(ctx context.Context, command, username string) (bool, error)
	// Grant reports whether the access set changed.
	Grant(ctx context.Context, command, username string) (bool, error)
	Revoke(ctx context.Context, command, username string) (bool, error)
	CommandsFor(ctx context.Context, username string) ([]string, error)
	// CountRideOrDie is the karma of name as this transaction sees it.
	CountRideOrDie(ctx context.Context, name string) (int64, error)

	Append(ctx context.Context, entries ...LedgerEntry) error
}

// Catalog is the authoritative list of known sound effects.
type Catalog interface {
	Names() []string
	BasePrice(name string) (int64, bool)
}

type Roles interface {
	IsPrivileged(username string) bool
}

// Presence tracks who has been talking in chat recently.
type Presence interface {
	Seen(ctx context.Context, username string, at time.Time) error
	// Recent returns usernames seen at or after since, most recent first.
	Recent(ctx context.Context, since time.Time) ([]string, error)
}

type StaticRoles map[string]struct{}

func NewStaticRoles(names ...string) StaticRoles {
	out := make(StaticRoles, len(names))
	for _, n := range names {
		if n = NormalizeUsername(n); n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}

func (r StaticRoles) IsPrivileged(username string) bool {
	_, ok := r[username]
	return ok
}
