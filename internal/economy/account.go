package economy

import (
	"context"
)

// updateUser is the single read-modify-write primitive for one account key.
func (s *Service) updateUser(ctx context.Context, username, action string, mutate func(u *User) error) (User, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return User{}, ErrEmptyUsername
	}
	var out User
	err := s.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		before, err := tx.User(ctx, username)
		if err != nil {
			return err
		}
		after := before
		if err := mutate(&after); err != nil {
			return err
		}
		out = after
		if after == before {
			return nil
		}
		if err := tx.PutUser(ctx, after); err != nil {
			return err
		}
		return tx.Append(ctx, balanceEntries(newTxGroup(), action, "", before, after)...)
	})
	if err != nil {
		return User{}, err
	}
	return out, nil
}

// EnsureUser is find-or-create; a new record is persisted once.
func (s *Service) EnsureUser(ctx context.Context, username string) (User, error) {
	return s.updateUser(ctx, username, "create", func(*User) error { return nil })
}

func (s *Service) AdjustCoolPoints(ctx context.Context, username string, delta int64) (User, error) {
	return s.updateUser(ctx, username, "adjust", func(u *User) error {
		return adjust(&u.CoolPoints, delta)
	})
}

func (s *Service) AdjustStreetCred(ctx context.Context, username string, delta int64) (User, error) {
	return s.updateUser(ctx, username, "adjust", func(u *User) error {
		return adjust(&u.StreetCred, delta)
	})
}

func (s *Service) SetMana(ctx context.Context, username string, mana int64) (User, error) {
	return s.updateUser(ctx, username, "set_mana", func(u *User) error {
		u.Mana = max(mana, 0)
		return nil
	})
}

// AdjustMana clamps at zero rather than failing.
func (s *Service) AdjustMana(ctx context.Context, username string, delta int64) (User, error) {
	return s.updateUser(ctx, username, "adjust_mana", func(u *User) error {
		u.Mana = max(u.Mana+delta, 0)
		return nil
	})
}

func (s *Service) Kill(ctx context.Context, username string) (User, error) {
	return s.updateUser(ctx, username, "kill", func(u *User) error {
		u.Mana = 0
		return nil
	})
}

func (s *Service) Revive(ctx context.Context, username string, mana int64) (User, error) {
	return s.updateUser(ctx, username, "revive", func(u *User) error {
		u.Mana = max(mana, 0)
		return nil
	})
}

// Bankrupt zeroes both currencies in one write.
func (s *Service) Bankrupt(ctx context.Context, username string) (User, error) {
	u, err := s.updateUser(ctx, username, "bankrupt", func(u *User) error {
		u.CoolPoints = 0
		u.StreetCred = 0
		return nil
	})
	if err == nil {
		s.log.Info("bankrupt", "user", u.Name)
	}
	return u, err
}

func (s *Service) PaperUp(ctx context.Context, username string, amount int64) (User, error) {
	if amount <= 0 {
		amount = DefaultPaperUp
	}
	u, err := s.updateUser(ctx, username, "paperup", func(u *User) error {
		u.CoolPoints += amount
		u.StreetCred += amount
		return nil
	})
	if err == nil {
		s.log.Info("paperup", "user", u.Name, "amount", amount)
	}
	return u, err
}

// SetRideOrDie reports false without touching the store when a user names
// themselves.
func (s *Service) SetRideOrDie(ctx context.Context, username, other string) (bool, error) {
	username = NormalizeUsername(username)
	other = NormalizeUsername(other)
	if username == "" || other == "" {
		return false, ErrEmptyUsername
	}
	if username == other {
		return false, nil
	}
	_, err := s.updateUser(ctx, username, "ride_or_die", func(u *User) error {
		u.RideOrDie = other
		return nil
	})
	return err == nil, err
}

// Karma counts the other accounts that name this one as their ride or die.
func (s *Service) Karma(ctx context.Context, username string) (int64, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return 0, ErrEmptyUsername
	}
	return s.store.CountRideOrDie(ctx, username)
}

// Reward pays the periodic chatter bonus: street cred 1+karma, mana reset
// to DefaultMana+karma.
// Karma is counted inside the same transaction as the payout.
func (s *Service) Reward(ctx context.Context, username string) (Reward, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return Reward{}, ErrEmptyUsername
	}
	var out Reward
	err := s.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		before, err := tx.User(ctx, username)
		if err != nil {
			return err
		}
		karma, err := tx.CountRideOrDie(ctx, username)
		if err != nil {
			return err
		}
		after := before
		after.StreetCred += 1 + karma
		after.Mana = DefaultMana + karma
		if err := tx.PutUser(ctx, after); err != nil {
			return err
		}
		out = Reward{Username: after.Name, Karma: karma, StreetCred: after.StreetCred, Mana: after.Mana}
		return tx.Append(ctx, balanceEntries(newTxGroup(), "reward", "", before, after)...)
	})
	if err != nil {
		return Reward{}, err
	}
	return out, nil
}

func (s *Service) Commands(ctx context.Context, username string) ([]string, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}
	return s.store.CommandsFor(ctx, username)
}

// RemoveAllCommands revokes every entitlement the user holds. Costs are left
// alone. Commands are locked in sorted order after the user.
func (s *Service) RemoveAllCommands(ctx context.Context, username string) ([]string, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}
	var removed []string
	err := s.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		removed = removed[:0]
		if _, err := tx.User(ctx, username); err != nil {
			return err
		}
		names, err := tx.CommandsFor(ctx, username)
		if err != nil {
			return err
		}
		group := newTxGroup()
		for _, name := range names {
			base, ok := s.catalog.BasePrice(name)
			if !ok {
				base = DefaultBasePrice
			}
			c, err := tx.Command(ctx, name, base)
			if err != nil {
				return err
			}
			changed, err := unallowUser(ctx, tx, &c, username)
			if err != nil {
				return err
			}
			if !changed {
				continue
			}
			if err := tx.PutCommand(ctx, c); err != nil {
				return err
			}
			if err := tx.Append(ctx, accessEntry(group, "remove_all", name, username, -1)); err != nil {
				return err
			}
			removed = append(removed, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("remove all commands", "user", username, "count", len(removed))
	return removed, nil
}

func adjust(balance *int64, delta int64) error {
	if *balance+delta < 0 {
		return ErrNegativeBalance
	}
	*balance += delta
	return nil
}

func debit(balance *int64, amount int64) error {
	if amount < 0 {
		return ErrNegativeBalance
	}
	return adjust(balance, -amount)
}
