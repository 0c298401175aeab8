package economy

import (
	"context"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Service is the economy and permission engine. It is safe for concurrent use;
// atomicity comes from the Store.
type Service struct {
	store   Store
	catalog Catalog
	roles   Roles
	log     *slog.Logger
	mu      sync.Mutex
	rand    *mathrand.Rand
}

func NewService(store Store, catalog Catalog, roles Roles, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if roles == nil {
		roles = StaticRoles{}
	}
	return &Service{
		store:   store,
		catalog: catalog,
		roles:   roles,
		log:     logger,
		rand:    mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Service) Catalog() Catalog {
	return s.catalog
}

func (s *Service) Roles() Roles {
	return s.roles
}

func (s *Service) IsPrivileged(username string) bool {
	return s.roles.IsPrivileged(NormalizeUsername(username))
}

// Stats finds or creates the user and reports balances.
func (s *Service) Stats(ctx context.Context, username string) (Stats, error) {
	u, err := s.EnsureUser(ctx, username)
	if err != nil {
		return Stats{}, err
	}
	karma, err := s.store.CountRideOrDie(ctx, u.Name)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Username:   u.Name,
		Mana:       u.Mana,
		StreetCred: u.StreetCred,
		CoolPoints: u.CoolPoints,
		Karma:      karma,
		RideOrDie:  u.RideOrDie,
	}, nil
}

// Leaderboard ranks users by kind. Ties keep store insertion order.
func (s *Service) Leaderboard(ctx context.Context, kind LeaderboardKind, topN int) ([]LeaderboardRow, error) {
	if _, err := ParseLeaderboardKind(string(kind)); err != nil {
		return nil, err
	}
	if topN <= 0 {
		topN = DefaultLeaderboardSize
	}
	if topN > MaxLeaderboardSize {
		topN = MaxLeaderboardSize
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	var karma map[string]int64
	if kind == LeaderboardKarma {
		karma = make(map[string]int64, len(users))
		for _, u := range users {
			if u.RideOrDie != "" {
				karma[u.RideOrDie]++
			}
		}
	}

	rows := make([]LeaderboardRow, 0, len(users))
	for _, u := range users {
		row := LeaderboardRow{Username: u.Name}
		switch kind {
		case LeaderboardStreetCred:
			row.Value = u.StreetCred
		case LeaderboardKarma:
			row.Value = karma[u.Name]
		default:
			row.Value = u.CoolPoints
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Value > rows[j].Value })
	if len(rows) > topN {
		rows = rows[:topN]
	}
	for i := range rows {
		rows[i].Rank = int64(i + 1)
	}
	return rows, nil
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return Summary{}, err
	}
	out := Summary{Users: len(users)}
	for _, u := range users {
		out.TotalCoolPoints += u.CoolPoints
		out.TotalStreetCred += u.StreetCred
	}
	return out, nil
}

func (s *Service) History(ctx context.Context, username string, limit int) ([]LedgerEntry, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.History(ctx, username, limit)
}

func (s *Service) basePrice(command string) (int64, error) {
	price, ok := s.catalog.BasePrice(command)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
	return price, nil
}

func (s *Service) nextIntn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Intn(n)
}

// balanceEntries records one ledger line per currency that moved between
// before and after.
func balanceEntries(group, action, command string, before, after User) []LedgerEntry {
	var out []LedgerEntry
	add := func(cur Currency, delta int64) {
		if delta == 0 {
			return
		}
		out = append(out, LedgerEntry{
			TxGroupID: group,
			Username:  after.Name,
			Command:   command,
			Action:    action,
			Currency:  cur,
			Delta:     delta,
		})
	}
	add(CurrencyCoolPoints, after.CoolPoints-before.CoolPoints)
	add(CurrencyStreetCred, after.StreetCred-before.StreetCred)
	add(CurrencyMana, after.Mana-before.Mana)
	return out
}

func accessEntry(group, action, command, username string, delta int64) LedgerEntry {
	return LedgerEntry{
		TxGroupID: group,
		Username:  username,
		Command:   command,
		Action:    action,
		Currency:  CurrencyAccess,
		Delta:     delta,
	}
}

func newTxGroup() string {
	return uuid.NewString()
}
