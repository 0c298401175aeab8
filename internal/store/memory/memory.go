// Package memory is an in-process economy.Store. It serializes transactions
// per key with mutexes held until commit and is meant for tests and local
// development. Key mutexes are created on first use and never freed, so memory
// grows with the number of distinct users and commands seen.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"chatthief/internal/economy"
)

var (
	_ economy.Store    = (*Store)(nil)
	_ economy.Presence = (*Store)(nil)
)

var errUnlocked = errors.New("memory: record written without being read in this transaction")

type accessKey struct {
	command  string
	username string
}

type Store struct {
	mu       sync.RWMutex
	users    map[string]economy.User
	order    []string
	commands map[string]economy.Command
	access   map[accessKey]struct{}
	ledger   []economy.LedgerEntry
	seen     map[string]time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func New() *Store {
	return &Store{
		users:    make(map[string]economy.User),
		commands: make(map[string]economy.Command),
		access:   make(map[accessKey]struct{}),
		seen:     make(map[string]time.Time),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *Store) keyLock(key string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, tx economy.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{
		s:        s,
		held:     make(map[string]*sync.Mutex),
		users:    make(map[string]economy.User),
		commands: make(map[string]economy.Command),
		grants:   make(map[accessKey]bool),
	}
	defer t.release()
	if err := fn(ctx, t); err != nil {
		return err
	}
	t.commit()
	return nil
}

func (s *Store) LookupUser(_ context.Context, name string) (economy.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[name]
	if !ok {
		return economy.NewUser(name), false, nil
	}
	return u, true, nil
}

func (s *Store) LookupCommand(_ context.Context, name string) (economy.Command, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.commands[name]
	return c, ok, nil
}

func (s *Store) ListUsers(context.Context) ([]economy.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]economy.User, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.users[name])
	}
	return out, nil
}

func (s *Store) CountRideOrDie(_ context.Context, name string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, u := range s.users {
		if u.RideOrDie == name && u.Name != name {
			n++
		}
	}
	return n, nil
}

func (s *Store) CommandsFor(_ context.Context, username string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commandsForLocked(username, nil), nil
}

func (s *Store) commandsForLocked(username string, overlay map[accessKey]bool) []string {
	set := make(map[string]struct{})
	for k := range s.access {
		if k.username == username {
			set[k.command] = struct{}{}
		}
	}
	for k, granted := range overlay {
		if k.username != username {
			continue
		}
		if granted {
			set[k.command] = struct{}{}
		} else {
			delete(set, k.command)
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Store) HasAccess(_ context.Context, command, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.access[accessKey{command, username}]
	return ok, nil
}

func (s *Store) CountOwners(_ context.Context, command string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k := range s.access {
		if k.command == command {
			n++
		}
	}
	return n, nil
}

// History returns the newest entries first.
func (s *Store) History(_ context.Context, username string, limit int) ([]economy.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []economy.LedgerEntry
	for i := len(s.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		if s.ledger[i].Username == username {
			out = append(out, s.ledger[i])
		}
	}
	return out, nil
}

func (s *Store) Seen(_ context.Context, username string, at time.Time) error {
	if username == "" {
		return economy.ErrEmptyUsername
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.seen[username]; !ok || at.After(prev) {
		s.seen[username] = at
	}
	return nil
}

func (s *Store) Recent(_ context.Context, since time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type entry struct {
		name string
		at   time.Time
	}
	var hits []entry
	for name, at := range s.seen {
		if !at.Before(since) {
			hits = append(hits, entry{name, at})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].at.Equal(hits[j].at) {
			return hits[i].name < hits[j].name
		}
		return hits[i].at.After(hits[j].at)
	})
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.name
	}
	return out, nil
}

// tx stages writes and applies them in one step on commit.
type tx struct {
	s        *Store
	held     map[string]*sync.Mutex
	users    map[string]economy.User
	created  []string
	commands map[string]economy.Command
	grants   map[accessKey]bool
	entries  []economy.LedgerEntry
}

func (t *tx) lock(key string) {
	if _, ok := t.held[key]; ok {
		return
	}
	l := t.s.keyLock(key)
	l.Lock()
	t.held[key] = l
}

func (t *tx) release() {
	for _, l := range t.held {
		l.Unlock()
	}
	t.held = nil
}

func (t *tx) User(_ context.Context, name string) (economy.User, error) {
	if name == "" {
		return economy.User{}, economy.ErrEmptyUsername
	}
	t.lock("user:" + name)
	if u, ok := t.users[name]; ok {
		return u, nil
	}
	t.s.mu.RLock()
	u, ok := t.s.users[name]
	t.s.mu.RUnlock()
	if !ok {
		u = economy.NewUser(name)
		t.created = append(t.created, name)
	}
	t.users[name] = u
	return u, nil
}

func (t *tx) PutUser(_ context.Context, u economy.User) error {
	if _, ok := t.held["user:"+u.Name]; !ok {
		return errUnlocked
	}
	if u.CoolPoints < 0 || u.StreetCred < 0 || u.Mana < 0 {
		return economy.ErrNegativeBalance
	}
	if prev := t.users[u.Name].RideOrDie; prev != u.RideOrDie {
		targets := []string{prev, u.RideOrDie}
		sort.Strings(targets)
		for _, target := range targets {
			if target != "" {
				t.lock("karma:" + target)
			}
		}
	}
	t.users[u.Name] = u
	return nil
}

func (t *tx) Command(_ context.Context, name string, basePrice int64) (economy.Command, error) {
	t.lock("command:" + name)
	if c, ok := t.commands[name]; ok {
		return c, nil
	}
	t.s.mu.RLock()
	c, ok := t.s.commands[name]
	t.s.mu.RUnlock()
	if !ok {
		c = economy.NewCommand(name, basePrice)
	}
	t.commands[name] = c
	return c, nil
}

func (t *tx) PutCommand(_ context.Context, c economy.Command) error {
	if _, ok := t.held["command:"+c.Name]; !ok {
		return errUnlocked
	}
	if c.Cost < 1 {
		return fmt.Errorf("memory: command %s cost %d below 1", c.Name, c.Cost)
	}
	t.commands[c.Name] = c
	return nil
}

func (t *tx) HasAccess(_ context.Context, command, username string) (bool, error) {
	k := accessKey{command, username}
	if granted, ok := t.grants[k]; ok {
		return granted, nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	_, ok := t.s.access[k]
	return ok, nil
}

func (t *tx) Grant(ctx context.Context, command, username string) (bool, error) {
	has, err := t.HasAccess(ctx, command, username)
	if err != nil || has {
		return false, err
	}
	t.grants[accessKey{command, username}] = true
	return true, nil
}

func (t *tx) Revoke(ctx context.Context, command, username string) (bool, error) {
	has, err := t.HasAccess(ctx, command, username)
	if err != nil || !has {
		return false, err
	}
	t.grants[accessKey{command, username}] = false
	return true, nil
}

func (t *tx) CommandsFor(_ context.Context, username string) ([]string, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.s.commandsForLocked(username, t.grants), nil
}

// CountRideOrDie holds the karma key for name, which PutUser also takes when
// a ride-or-die changes, so a payout and a new pick cannot interleave.
func (t *tx) CountRideOrDie(_ context.Context, name string) (int64, error) {
	t.lock("karma:" + name)
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var n int64
	for _, name2 := range t.s.order {
		u := t.s.users[name2]
		if staged, ok := t.users[name2]; ok {
			u = staged
		}
		if u.RideOrDie == name && u.Name != name {
			n++
		}
	}
	for _, created := range t.created {
		u := t.users[created]
		if u.RideOrDie == name && u.Name != name {
			n++
		}
	}
	return n, nil
}

func (t *tx) Append(_ context.Context, entries ...economy.LedgerEntry) error {
	t.entries = append(t.entries, entries...)
	return nil
}

func (t *tx) commit() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range t.created {
		if _, ok := s.users[name]; !ok {
			s.order = append(s.order, name)
		}
	}
	for name, u := range t.users {
		s.users[name] = u
	}
	for name, c := range t.commands {
		s.commands[name] = c
	}
	for k, granted := range t.grants {
		if granted {
			s.access[k] = struct{}{}
		} else {
			delete(s.access, k)
		}
	}
	s.ledger = append(s.ledger, t.entries...)
}
