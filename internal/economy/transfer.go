package economy

import (
	"context"
)

// Share grants beneficiary access to command. Privileged actors grant for
// free; everyone else pays one street cred and doubles the command's cost.
// An unknown command is an error, not a Denied outcome.
func (s *Service) Share(ctx context.Context, actor, command, beneficiary string) (TransferOutcome, error) {
	actor = NormalizeUsername(actor)
	beneficiary = NormalizeUsername(beneficiary)
	command = NormalizeCommand(command)
	if actor == "" || beneficiary == "" {
		return TransferOutcome{}, ErrEmptyUsername
	}
	base, err := s.basePrice(command)
	if err != nil {
		return TransferOutcome{}, err
	}

	out := TransferOutcome{
		Mode:        TransferShare,
		Privileged:  s.roles.IsPrivileged(actor),
		Actor:       actor,
		Beneficiary: beneficiary,
		Command:     command,
	}
	if out.Privileged {
		return s.privilegedShare(ctx, out, base)
	}

	// A denied share writes nothing, not even the actor's record.
	current, _, err := s.store.LookupUser(ctx, actor)
	if err != nil {
		return TransferOutcome{}, err
	}
	if current.StreetCred <= 0 {
		out.Result = TransferDenied
		out.Reason = DenyInsufficientSocialCapital
		out.StreetCred = current.StreetCred
		return out, nil
	}

	err = s.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		before, err := tx.User(ctx, actor)
		if err != nil {
			return err
		}
		out.StreetCred = before.StreetCred
		if before.StreetCred <= 0 {
			out.Result = TransferDenied
			out.Reason = DenyInsufficientSocialCapital
			return nil
		}

		c, err := tx.Command(ctx, command, base)
		if err != nil {
			return err
		}
		out.Cost = c.Cost
		granted, err := allowUser(ctx, tx, &c, beneficiary)
		if err != nil {
			return err
		}
		if !granted {
			out.Result = TransferDenied
			out.Reason = DenyAlreadyAllowed
			return nil
		}

		after := before
		if err := debit(&after.StreetCred, 1); err != nil {
			return err
		}
		escalateAfterShare(&c)
		if err := tx.PutUser(ctx, after); err != nil {
			return err
		}
		if err := tx.PutCommand(ctx, c); err != nil {
			return err
		}
		group := newTxGroup()
		entries := balanceEntries(group, "share", command, before, after)
		entries = append(entries, accessEntry(group, "share", command, beneficiary, 1))
		if err := tx.Append(ctx, entries...); err != nil {
			return err
		}

		out.Result = TransferGranted
		out.Reason = DenyNone
		out.StreetCred = after.StreetCred
		out.Cost = c.Cost
		return nil
	})
	if err != nil {
		return TransferOutcome{}, err
	}
	if out.Granted() {
		s.log.Info("share", "actor", actor, "beneficiary", beneficiary, "command", command, "cost", out.Cost)
	}
	return out, nil
}

// privilegedShare is the administrative grant: no balance check and no
// escalation. It reports Granted even when the beneficiary already had access.
func (s *Service) privilegedShare(ctx context.Context, out TransferOutcome, base int64) (TransferOutcome, error) {
	err := s.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		actor, err := tx.User(ctx, out.Actor)
		if err != nil {
			return err
		}
		out.StreetCred = actor.StreetCred
		c, err := tx.Command(ctx, out.Command, base)
		if err != nil {
			return err
		}
		out.Cost = c.Cost
		granted, err := allowUser(ctx, tx, &c, out.Beneficiary)
		if err != nil || !granted {
			return err
		}
		if err := tx.PutCommand(ctx, c); err != nil {
			return err
		}
		return tx.Append(ctx, accessEntry(newTxGroup(), "grant", out.Command, out.Beneficiary, 1))
	})
	if err != nil {
		return TransferOutcome{}, err
	}
	out.Result = TransferGranted
	s.log.Info("privileged grant", "actor", out.Actor, "beneficiary", out.Beneficiary, "command", out.Command)
	return out, nil
}

// Give swaps the actor's own access to beneficiary at the price of one street
// cred. The command cost is unchanged.
func (s *Service) Give(ctx context.Context, actor, command, beneficiary string) (TransferOutcome, error) {
	actor = NormalizeUsername(actor)
	beneficiary = NormalizeUsername(beneficiary)
	command = NormalizeCommand(command)
	if actor == "" || beneficiary == "" {
		return TransferOutcome{}, ErrEmptyUsername
	}
	base, err := s.basePrice(command)
	if err != nil {
		return TransferOutcome{}, err
	}

	out := TransferOutcome{
		Mode:        TransferGive,
		Privileged:  s.roles.IsPrivileged(actor),
		Actor:       actor,
		Beneficiary: beneficiary,
		Command:     command,
		Result:      TransferDenied,
	}
	err = s.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		before, err := tx.User(ctx, actor)
		if err != nil {
			return err
		}
		out.StreetCred = before.StreetCred
		c, err := tx.Command(ctx, command, base)
		if err != nil {
			return err
		}
		out.Cost = c.Cost

		owns, err := tx.HasAccess(ctx, command, actor)
		if err != nil {
			return err
		}
		if !owns {
			out.Reason = DenyNotOwned
			return nil
		}
		has, err := tx.HasAccess(ctx, command, beneficiary)
		if err != nil {
			return err
		}
		if has || actor == beneficiary {
			out.Reason = DenyAlreadyAllowed
			return nil
		}
		if before.StreetCred <= 0 {
			out.Reason = DenyInsufficientSocialCapital
			return nil
		}

		if _, err := unallowUser(ctx, tx, &c, actor); err != nil {
			return err
		}
		if _, err := allowUser(ctx, tx, &c, beneficiary); err != nil {
			return err
		}
		after := before
		if err := debit(&after.StreetCred, 1); err != nil {
			return err
		}
		if err := tx.PutUser(ctx, after); err != nil {
			return err
		}
		if err := tx.PutCommand(ctx, c); err != nil {
			return err
		}
		group := newTxGroup()
		entries := balanceEntries(group, "give", command, before, after)
		entries = append(entries,
			accessEntry(group, "give", command, actor, -1),
			accessEntry(group, "give", command, beneficiary, 1),
		)
		if err := tx.Append(ctx, entries...); err != nil {
			return err
		}

		out.Result = TransferGranted
		out.Reason = DenyNone
		out.StreetCred = after.StreetCred
		return nil
	})
	if err != nil {
		return TransferOutcome{}, err
	}
	if out.Granted() {
		s.log.Info("give", "actor", actor, "beneficiary", beneficiary, "command", command)
	}
	return out, nil
}
