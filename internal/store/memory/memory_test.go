package memory

import (
	"context"
	"testing"

	"chatthief/internal/economy"
	"chatthief/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) storetest.Backend { return New() })
}

func TestPutUserRequiresLock(t *testing.T) {
	s := New()
	err := s.Atomically(context.Background(), func(ctx context.Context, tx economy.Tx) error {
		return tx.PutUser(ctx, economy.NewUser("ghost"))
	})
	if err != errUnlocked {
		t.Fatalf("expected errUnlocked, got %v", err)
	}
}

func TestPutCommandRejectsCostBelowOne(t *testing.T) {
	s := New()
	err := s.Atomically(context.Background(), func(ctx context.Context, tx economy.Tx) error {
		c, err := tx.Command(ctx, "clap", 1)
		if err != nil {
			return err
		}
		c.Cost = 0
		return tx.PutCommand(ctx, c)
	})
	if err == nil {
		t.Fatal("expected an error for a zero cost")
	}
	c, ok, _ := s.LookupCommand(context.Background(), "clap")
	if ok {
		t.Fatalf("rejected command should not be stored, got %+v", c)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := New().Atomically(ctx, func(context.Context, economy.Tx) error {
		called = true
		return nil
	})
	if err == nil || called {
		t.Fatalf("expected cancellation before fn runs, err=%v called=%v", err, called)
	}
}
