// Package storetest holds the behaviour every economy.Store backend must
// share. Backends run it from their own tests with a fresh store per test.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatthief/internal/economy"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"
)

// Backend is a store that also tracks chat presence.
type Backend interface {
	economy.Store
	economy.Presence
}

type Suite struct {
	suite.Suite
	New   func(t *testing.T) Backend
	store Backend
	ctx   context.Context
}

func Run(t *testing.T, newBackend func(t *testing.T) Backend) {
	suite.Run(t, &Suite{New: newBackend})
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.New(s.T())
}

func (s *Suite) atomically(fn func(ctx context.Context, tx economy.Tx) error) {
	s.Require().NoError(s.store.Atomically(s.ctx, fn))
}

func (s *Suite) TestUserCreatedWithDefaults() {
	_, ok, err := s.store.LookupUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.False(ok)

	s.atomically(func(ctx context.Context, tx economy.Tx) error {
		u, err := tx.User(ctx, "alice")
		if err != nil {
			return err
		}
		s.Equal(economy.NewUser("alice"), u)
		return nil
	})

	u, ok, err := s.store.LookupUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(economy.DefaultMana, u.Mana)
	s.Zero(u.CoolPoints)
	s.Zero(u.StreetCred)
}

func (s *Suite) TestCommandCreatedAtBasePrice() {
	s.atomically(func(ctx context.Context, tx economy.Tx) error {
		c, err := tx.Command(ctx, "clap", 4)
		if err != nil {
			return err
		}
		s.Equal(int64(4), c.Cost)
		return nil
	})
	c, ok, err := s.store.LookupCommand(s.ctx, "clap")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(economy.Command{Name: "clap", Cost: 4}, c)
}

func (s *Suite) TestPutRoundTrips() {
	s.atomically(func(ctx context.Context, tx economy.Tx) error {
		u, err := tx.User(ctx, "bob")
		if err != nil {
			return err
		}
		u.CoolPoints, u.StreetCred, u.Mana, u.RideOrDie = 7, 2, 0, "alice"
		if err := tx.PutUser(ctx, u); err != nil {
			return err
		}
		c, err := tx.Command(ctx, "airhorn", 1)
		if err != nil {
			return err
		}
		c.Cost, c.Health, c.Likes, c.Dislikes = 9, 3, 2, 1
		return tx.PutCommand(ctx, c)
	})

	u, _, err := s.store.LookupUser(s.ctx, "bob")
	s.Require().NoError(err)
	s.Equal(economy.User{Name: "bob", CoolPoints: 7, StreetCred: 2, Mana: 0, RideOrDie: "alice"}, u)

	c, _, err := s.store.LookupCommand(s.ctx, "airhorn")
	s.Require().NoError(err)
	s.Equal(economy.Command{Name: "airhorn", Cost: 9, Health: 3, Likes: 2, Dislikes: 1}, c)
}

func (s *Suite) TestGrantAndRevokeReportChange() {
	s.atomically(func(ctx context.Context, tx economy.Tx) error {
		if _, err := tx.Command(ctx, "clap", 1); err != nil {
			return err
		}
		changed, err := tx.Grant(ctx, "clap", "carol")
		s.Require().NoError(err)
		s.True(changed)

		changed, err = tx.Grant(ctx, "clap", "carol")
		s.Require().NoError(err)
		s.False(changed)

		has, err := tx.HasAccess(ctx, "clap", "carol")
		s.Require().NoError(err)
		s.True(has)
		return nil
	})

	owners, err := s.store.CountOwners(s.ctx, "clap")
	s.Require().NoError(err)
	s.Equal(1, owners)

	s.atomically(func(ctx context.Context, tx economy.Tx) error {
		if _, err := tx.Command(ctx, "clap", 1); err != nil {
			return err
		}
		changed, err := tx.Revoke(ctx, "clap", "carol")
		s.Require().NoError(err)
		s.True(changed)
		changed, err = tx.Revoke(ctx, "clap", "carol")
		s.Require().NoError(err)
		s.False(changed)
		return nil
	})

	has, err := s.store.HasAccess(s.ctx, "clap", "carol")
	s.Require().NoError(err)
	s.False(has)
}

func (s *Suite) TestErrorRollsBack() {
	boom := errors.New("boom")
	err := s.store.Atomically(s.ctx, func(ctx context.Context, tx economy.Tx) error {
		u, err := tx.User(ctx, "dave")
		if err != nil {
			return err
		}
		u.CoolPoints = 50
		if err := tx.PutUser(ctx, u); err != nil {
			return err
		}
		if _, err := tx.Command(ctx, "clap", 1); err != nil {
			return err
		}
		if _, err := tx.Grant(ctx, "clap", "dave"); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	_, ok, err := s.store.LookupUser(s.ctx, "dave")
	s.Require().NoError(err)
	s.False(ok)
	has, err := s.store.HasAccess(s.ctx, "clap", "dave")
	s.Require().NoError(err)
	s.False(has)
}

func (s *Suite) TestListUsersKeepsInsertionOrder() {
	for _, name := range []string{"zed", "amy", "mo"} {
		s.atomically(func(ctx context.Context, tx economy.Tx) error {
			_, err := tx.User(ctx, name)
			return err
		})
	}
	users, err := s.store.ListUsers(s.ctx)
	s.Require().NoError(err)
	var names []string
	for _, u := range users {
		names = append(names, u.Name)
	}
	s.Equal([]string{"zed", "amy", "mo"}, names)
}

func (s *Suite) TestCountRideOrDie() {
	for _, name := range []string{"a", "b", "c"} {
		s.atomically(func(ctx context.Context, tx economy.Tx) error {
			u, err := tx.User(ctx, name)
			if err != nil {
				return err
			}
			if name != "c" {
				u.RideOrDie = "c"
			}
			return tx.PutUser(ctx, u)
		})
	}
	n, err := s.store.CountRideOrDie(s.ctx, "c")
	s.Require().NoError(err)
	s.Equal(int64(2), n)
}

func (s *Suite) TestTxCountRideOrDieSeesOwnWrites() {
	s.atomically(func(ctx context.Context, tx economy.Tx) error {
		_, err := tx.User(ctx, "c")
		return err
	})
	s.atomically(func(ctx context.Context, tx economy.Tx) error {
		for _, name := range []string{"a", "b"} {
			u, err := tx.User(ctx, name)
			if err != nil {
				return err
			}
			u.RideOrDie = "c"
			if err := tx.PutUser(ctx, u); err != nil {
				return err
			}
		}
		n, err := tx.CountRideOrDie(ctx, "c")
		if err != nil {
			return err
		}
		s.Equal(int64(2), n)
		return nil
	})
	n, err := s.store.CountRideOrDie(s.ctx, "c")
	s.Require().NoError(err)
	s.Equal(int64(2), n)
}

func (s *Suite) TestCommandsForIsSorted() {
	s.atomically(func(ctx context.Context, tx economy.Tx) error {
		for _, name := range []string{"wow", "airhorn", "clap"} {
			if _, err := tx.Command(ctx, name, 1); err != nil {
				return err
			}
			if _, err := tx.Grant(ctx, name, "erin"); err != nil {
				return err
			}
		}
		names, err := tx.CommandsFor(ctx, "erin")
		s.Require().NoError(err)
		s.Equal([]string{"airhorn", "clap", "wow"}, names)
		return nil
	})
	names, err := s.store.CommandsFor(s.ctx, "erin")
	s.Require().NoError(err)
	s.Equal([]string{"airhorn", "clap", "wow"}, names)
}

func (s *Suite) TestLedgerHistoryNewestFirst() {
	s.atomically(func(ctx context.Context, tx economy.Tx) error {
		if _, err := tx.User(ctx, "fay"); err != nil {
			return err
		}
		return tx.Append(ctx,
			economy.LedgerEntry{TxGroupID: "7f6c1c2e-1a51-4f44-9d3a-000000000001", Username: "fay", Action: "paperup", Currency: economy.CurrencyCoolPoints, Delta: 100},
			economy.LedgerEntry{TxGroupID: "7f6c1c2e-1a51-4f44-9d3a-000000000002", Username: "fay", Command: "clap", Action: "purchase", Currency: economy.CurrencyCoolPoints, Delta: -1},
		)
	})
	entries, err := s.store.History(s.ctx, "fay", 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal("purchase", entries[0].Action)
	s.Equal("clap", entries[0].Command)
	s.Equal(int64(100), entries[1].Delta)

	entries, err = s.store.History(s.ctx, "fay", 1)
	s.Require().NoError(err)
	s.Len(entries, 1)
}

// TestConcurrentDebitsSerialize checks that read-modify-write through a Tx
// never loses an update.
func (s *Suite) TestConcurrentDebitsSerialize() {
	s.atomically(func(ctx context.Context, tx economy.Tx) error {
		u, err := tx.User(ctx, "gus")
		if err != nil {
			return err
		}
		u.CoolPoints = 8
		return tx.PutUser(ctx, u)
	})

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			return s.store.Atomically(s.ctx, func(ctx context.Context, tx economy.Tx) error {
				u, err := tx.User(ctx, "gus")
				if err != nil {
					return err
				}
				u.CoolPoints--
				return tx.PutUser(ctx, u)
			})
		})
	}
	s.Require().NoError(g.Wait())

	u, _, err := s.store.LookupUser(s.ctx, "gus")
	s.Require().NoError(err)
	s.Zero(u.CoolPoints)
}

func (s *Suite) TestPresenceRecent() {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(s.T(), s.store.Seen(s.ctx, "old", base.Add(-time.Hour)))
	require.NoError(s.T(), s.store.Seen(s.ctx, "amy", base.Add(time.Minute)))
	require.NoError(s.T(), s.store.Seen(s.ctx, "bo", base.Add(2*time.Minute)))
	// An older sighting must not move last_seen backwards.
	require.NoError(s.T(), s.store.Seen(s.ctx, "bo", base))

	names, err := s.store.Recent(s.ctx, base)
	s.Require().NoError(err)
	s.Equal([]string{"bo", "amy"}, names)
}
