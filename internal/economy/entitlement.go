package economy

import (
	"context"
	"fmt"
	"math"
)

// Both escalations saturate at math.MaxInt64 so cost never wraps.
func escalateAfterPurchase(c *Command) {
	if c.Cost > math.MaxInt64-PurchaseIncrement {
		c.Cost = math.MaxInt64
		return
	}
	c.Cost += PurchaseIncrement
}

// escalateAfterShare doubles the pre-share cost, so sharing always inflates
// faster than buying.
func escalateAfterShare(c *Command) {
	if c.Cost > math.MaxInt64/ShareMultiplier {
		c.Cost = math.MaxInt64
		return
	}
	c.Cost *= ShareMultiplier
}

// allowUser adds username to the access set and bumps health when the set
// changed. Callers wanting to tell a fresh grant from a no-op must check
// ownership first.
func allowUser(ctx context.Context, tx Tx, c *Command, username string) (bool, error) {
	changed, err := tx.Grant(ctx, c.Name, username)
	if err != nil {
		return false, err
	}
	if changed {
		c.Health++
	}
	return changed, nil
}

func unallowUser(ctx context.Context, tx Tx, c *Command, username string) (bool, error) {
	changed, err := tx.Revoke(ctx, c.Name, username)
	if err != nil {
		return false, err
	}
	if changed {
		c.Health++
	}
	return changed, nil
}

// CommandInfo reports price and telemetry without creating the record.
func (s *Service) CommandInfo(ctx context.Context, command string) (CommandInfo, error) {
	command = NormalizeCommand(command)
	base, err := s.basePrice(command)
	if err != nil {
		return CommandInfo{}, err
	}
	c, ok, err := s.store.LookupCommand(ctx, command)
	if err != nil {
		return CommandInfo{}, err
	}
	if !ok {
		c = NewCommand(command, base)
	}
	owners, err := s.store.CountOwners(ctx, command)
	if err != nil {
		return CommandInfo{}, err
	}
	return CommandInfo{
		Name:      c.Name,
		Cost:      c.Cost,
		Health:    c.Health,
		LikeRatio: c.LikeRatio(),
		Owners:    owners,
	}, nil
}

func (s *Service) AllowedToPlay(ctx context.Context, username, command string) (bool, error) {
	command = NormalizeCommand(command)
	if _, err := s.basePrice(command); err != nil {
		return false, err
	}
	return s.store.HasAccess(ctx, command, NormalizeUsername(username))
}

// Play reports whether username may trigger the effect; a permitted play
// counts toward the command's health.
func (s *Service) Play(ctx context.Context, username, command string) (bool, error) {
	username = NormalizeUsername(username)
	command = NormalizeCommand(command)
	if username == "" {
		return false, ErrEmptyUsername
	}
	base, err := s.basePrice(command)
	if err != nil {
		return false, err
	}
	allowed, err := s.store.HasAccess(ctx, command, username)
	if err != nil || !allowed {
		return false, err
	}
	err = s.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		c, err := tx.Command(ctx, command, base)
		if err != nil {
			return err
		}
		allowed, err = tx.HasAccess(ctx, command, username)
		if err != nil || !allowed {
			return err
		}
		c.Health++
		return tx.PutCommand(ctx, c)
	})
	if err != nil {
		return false, err
	}
	return allowed, nil
}

// Vote records a like or dislike for the command.
func (s *Service) Vote(ctx context.Context, username, command string, positive bool) (CommandInfo, error) {
	username = NormalizeUsername(username)
	command = NormalizeCommand(command)
	if username == "" {
		return CommandInfo{}, ErrEmptyUsername
	}
	base, err := s.basePrice(command)
	if err != nil {
		return CommandInfo{}, err
	}
	err = s.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.User(ctx, username); err != nil {
			return err
		}
		c, err := tx.Command(ctx, command, base)
		if err != nil {
			return err
		}
		if positive {
			c.Likes++
		} else {
			c.Dislikes++
		}
		return tx.PutCommand(ctx, c)
	})
	if err != nil {
		return CommandInfo{}, err
	}
	return s.CommandInfo(ctx, command)
}

// DropRandom grants a random unowned effect for free, without escalation.
func (s *Service) DropRandom(ctx context.Context, username string) (Drop, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return Drop{}, ErrEmptyUsername
	}
	out := Drop{Username: username}

	const maxAttempts = 3
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidates, err := s.unownedCommands(ctx, username)
		if err != nil {
			return out, err
		}
		if len(candidates) == 0 {
			return out, nil
		}
		pick := candidates[s.nextIntn(len(candidates))]
		base, ok := s.catalog.BasePrice(pick)
		if !ok {
			continue
		}

		granted := false
		err = s.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
			if _, err := tx.User(ctx, username); err != nil {
				return err
			}
			c, err := tx.Command(ctx, pick, base)
			if err != nil {
				return err
			}
			granted, err = allowUser(ctx, tx, &c, username)
			if err != nil || !granted {
				return err
			}
			if err := tx.PutCommand(ctx, c); err != nil {
				return err
			}
			return tx.Append(ctx, accessEntry(newTxGroup(), "drop", pick, username, 1))
		})
		if err != nil {
			return out, fmt.Errorf("drop %s: %w", pick, err)
		}
		if granted {
			out.Command = pick
			out.Granted = true
			s.log.Info("drop", "user", username, "command", pick)
			return out, nil
		}
	}
	return out, nil
}

func (s *Service) unownedCommands(ctx context.Context, username string) ([]string, error) {
	owned, err := s.store.CommandsFor(ctx, username)
	if err != nil {
		return nil, err
	}
	ownedSet := make(map[string]struct{}, len(owned))
	for _, name := range owned {
		ownedSet[name] = struct{}{}
	}
	var out []string
	for _, name := range s.catalog.Names() {
		if _, ok := ownedSet[name]; !ok {
			out = append(out, name)
		}
	}
	return out, nil
}
