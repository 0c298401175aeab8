package economy

import (
	"errors"
	"strings"
)

const (
	DefaultMana = int64(3)

	// DefaultBasePrice is used by catalogs that do not price an effect.
	DefaultBasePrice = int64(1)

	// PurchaseIncrement is added to a command's cost after a direct purchase.
	PurchaseIncrement = int64(1)
	// ShareMultiplier scales the pre-share cost after a successful share.
	ShareMultiplier = int64(2)

	DefaultPaperUp         = int64(100)
	DefaultLeaderboardSize = 3
	MaxLeaderboardSize     = 100

	// RandomCommand asks Purchase to pick an affordable effect.
	RandomCommand = "random"
)

var (
	ErrUnknownCommand     = errors.New("unknown command")
	ErrEmptyUsername      = errors.New("username is required")
	ErrNegativeBalance    = errors.New("balance cannot go negative")
	ErrUnknownLeaderboard = errors.New("unknown leaderboard kind")
	ErrTxConflict         = errors.New("transaction conflict, try again")
	ErrStoreUnavailable   = errors.New("store unavailable")
)

type Currency string

const (
	CurrencyCoolPoints Currency = "cool_points"
	CurrencyStreetCred Currency = "street_cred"
	CurrencyMana       Currency = "mana"
	CurrencyAccess     Currency = "access"
)

// User is the persisted balance record for one chat username.
type User struct {
	Name       string `json:"name" db:"name"`
	CoolPoints int64  `json:"cool_points" db:"cool_points"`
	StreetCred int64  `json:"street_cred" db:"street_cred"`
	Mana       int64  `json:"mana" db:"mana"`
	RideOrDie  string `json:"ride_or_die,omitempty" db:"ride_or_die"`
}

func NewUser(name string) User {
	return User{Name: name, Mana: DefaultMana}
}

// Command is the persisted entitlement record. Membership lives in the
// store's access set, not on the record.
type Command struct {
	Name     string `json:"name" db:"name"`
	Cost     int64  `json:"cost" db:"cost"`
	Health   int64  `json:"health" db:"health"`
	Likes    int64  `json:"likes" db:"likes"`
	Dislikes int64  `json:"dislikes" db:"dislikes"`
}

func NewCommand(name string, basePrice int64) Command {
	if basePrice < 1 {
		basePrice = DefaultBasePrice
	}
	return Command{Name: name, Cost: basePrice}
}

// LikeRatio is the whole-number percentage of positive votes, 100 with no votes.
func (c Command) LikeRatio() int64 {
	total := c.Likes + c.Dislikes
	if total == 0 {
		return 100
	}
	return c.Likes * 100 / total
}

type LedgerEntry struct {
	TxGroupID string   `json:"tx_group_id" db:"tx_group_id"`
	Username  string   `json:"username" db:"username"`
	Command   string   `json:"command,omitempty" db:"command_name"`
	Action    string   `json:"action" db:"action"`
	Currency  Currency `json:"currency" db:"currency"`
	Delta     int64    `json:"delta" db:"delta"`
}

// NormalizeUsername strips chat decoration. Usernames stay case-sensitive.
func NormalizeUsername(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "@")
}

// NormalizeCommand strips the chat prefix. Effect names are lower case.
func NormalizeCommand(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "!"))
}
