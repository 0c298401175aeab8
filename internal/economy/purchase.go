package economy

import (
	"context"
)

// Purchase evaluates a buy request. Economic denials come back as outcomes;
// only store failures are errors. The debit, grant and escalation commit
// together or not at all.
func (s *Service) Purchase(ctx context.Context, buyer, command string) (PurchaseOutcome, error) {
	buyer = NormalizeUsername(buyer)
	command = NormalizeCommand(command)
	if buyer == "" {
		return PurchaseOutcome{}, ErrEmptyUsername
	}
	if command == RandomCommand {
		return s.purchaseRandom(ctx, buyer)
	}

	base, ok := s.catalog.BasePrice(command)
	if !ok {
		return s.invalidPurchase(ctx, buyer, command)
	}

	var out PurchaseOutcome
	err := s.store.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		before, err := tx.User(ctx, buyer)
		if err != nil {
			return err
		}
		c, err := tx.Command(ctx, command, base)
		if err != nil {
			return err
		}
		out = PurchaseOutcome{
			Username:   buyer,
			Command:    command,
			CoolPoints: before.CoolPoints,
			Cost:       c.Cost,
		}

		owned, err := tx.HasAccess(ctx, command, buyer)
		if err != nil {
			return err
		}
		if owned {
			out.Result = PurchaseAlreadyOwned
			return nil
		}
		if before.CoolPoints < c.Cost {
			out.Result = PurchaseInsufficientFunds
			return nil
		}

		price := c.Cost
		after := before
		if err := debit(&after.CoolPoints, price); err != nil {
			return err
		}
		if _, err := allowUser(ctx, tx, &c, buyer); err != nil {
			return err
		}
		escalateAfterPurchase(&c)

		if err := tx.PutUser(ctx, after); err != nil {
			return err
		}
		if err := tx.PutCommand(ctx, c); err != nil {
			return err
		}
		group := newTxGroup()
		entries := balanceEntries(group, "purchase", command, before, after)
		entries = append(entries, accessEntry(group, "purchase", command, buyer, 1))
		if err := tx.Append(ctx, entries...); err != nil {
			return err
		}

		out.Result = PurchaseSuccess
		out.CoolPoints = after.CoolPoints
		out.Cost = price
		return nil
	})
	if err != nil {
		return PurchaseOutcome{}, err
	}
	if out.Result == PurchaseSuccess {
		s.log.Info("purchase", "user", buyer, "command", command, "cost", out.Cost, "cool_points", out.CoolPoints)
	}
	return out, nil
}

// invalidPurchase reads the balance without creating anything.
func (s *Service) invalidPurchase(ctx context.Context, buyer, command string) (PurchaseOutcome, error) {
	u, _, err := s.store.LookupUser(ctx, buyer)
	if err != nil {
		return PurchaseOutcome{}, err
	}
	return PurchaseOutcome{
		Result:     PurchaseInvalidCommand,
		Username:   buyer,
		Command:    command,
		CoolPoints: u.CoolPoints,
	}, nil
}

// purchaseRandom picks uniformly among unowned effects the buyer can afford
// right now, then runs a normal purchase that re-checks everything under lock.
func (s *Service) purchaseRandom(ctx context.Context, buyer string) (PurchaseOutcome, error) {
	u, _, err := s.store.LookupUser(ctx, buyer)
	if err != nil {
		return PurchaseOutcome{}, err
	}
	out := PurchaseOutcome{
		Username:   buyer,
		Command:    RandomCommand,
		CoolPoints: u.CoolPoints,
	}

	unowned, err := s.unownedCommands(ctx, buyer)
	if err != nil {
		return PurchaseOutcome{}, err
	}
	if len(unowned) == 0 {
		out.Result = PurchaseAlreadyOwned
		return out, nil
	}

	var affordable []string
	cheapest := int64(-1)
	for _, name := range unowned {
		cost, err := s.currentCost(ctx, name)
		if err != nil {
			return PurchaseOutcome{}, err
		}
		if cheapest < 0 || cost < cheapest {
			cheapest = cost
		}
		if cost <= u.CoolPoints {
			affordable = append(affordable, name)
		}
	}
	if len(affordable) == 0 {
		out.Result = PurchaseInsufficientFunds
		out.Cost = cheapest
		return out, nil
	}
	return s.Purchase(ctx, buyer, affordable[s.nextIntn(len(affordable))])
}

func (s *Service) currentCost(ctx context.Context, command string) (int64, error) {
	c, ok, err := s.store.LookupCommand(ctx, command)
	if err != nil {
		return 0, err
	}
	if ok {
		return c.Cost, nil
	}
	base, err := s.basePrice(command)
	if err != nil {
		return 0, err
	}
	return base, nil
}
