package market

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chatthief/internal/catalog"
	"chatthief/internal/economy"
	"chatthief/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu   sync.Mutex
	msgs []string
	err  error
	sent chan struct{}
}

func (r *recorder) Announce(_ context.Context, msg string) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	if r.sent != nil {
		select {
		case r.sent <- struct{}{}:
		default:
		}
	}
	return r.err
}

func (r *recorder) lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

var t0 = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

func setup(t *testing.T, ann Announcer, blacklist ...string) (*Hand, *economy.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := economy.NewService(store, catalog.FromPrices(map[string]int64{"clap": 1}), nil, nil)
	h := NewHand(svc, store, ann, Config{Window: 10 * time.Minute, Blacklist: blacklist}, nil)
	h.now = func() time.Time { return t0.Add(time.Minute) }
	return h, svc, store
}

func TestRunOncePaysRecentChatters(t *testing.T) {
	ctx := context.Background()
	ann := &recorder{}
	h, svc, store := setup(t, ann, "@nightbot")

	require.NoError(t, store.Seen(ctx, "old", t0.Add(-time.Hour)))
	require.NoError(t, store.Seen(ctx, "a", t0))
	require.NoError(t, store.Seen(ctx, "b", t0.Add(time.Second)))
	require.NoError(t, store.Seen(ctx, "nightbot", t0.Add(2*time.Second)))
	_, err := svc.SetRideOrDie(ctx, "a", "b")
	require.NoError(t, err)

	round, err := h.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"nightbot", "b", "a"}, round.Chatters)
	assert.True(t, round.Drop.Granted)
	assert.Equal(t, "clap", round.Drop.Command)
	assert.Contains(t, round.Chatters, round.Drop.Username)

	assert.Equal(t, []economy.Reward{
		{Username: "b", Karma: 1, StreetCred: 2, Mana: 4},
		{Username: "a", Karma: 0, StreetCred: 1, Mana: 3},
	}, round.Rewards)

	lines := ann.lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "@"+round.Drop.Username+" now has access to !clap", lines[0])
	assert.Equal(t, "Squid1 Enjoy your street cred: @b @a Squid4", lines[1])

	_, ok, err := store.LookupUser(ctx, "nightbot")
	require.NoError(t, err)
	if round.Drop.Username != "nightbot" {
		assert.False(t, ok, "blacklisted chatter should not be paid")
	}
}

func TestRunOnceWithoutChatters(t *testing.T) {
	h, _, _ := setup(t, nil)
	_, err := h.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrNoChatters)
}

func TestRunOnceIgnoresAnnounceFailure(t *testing.T) {
	ctx := context.Background()
	ann := &recorder{err: errors.New("discord down")}
	h, _, store := setup(t, ann)
	require.NoError(t, store.Seen(ctx, "solo", t0))

	round, err := h.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, "solo", round.Drop.Username)
	assert.Len(t, ann.lines(), 2)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ann := &recorder{sent: make(chan struct{}, 1)}
	h, _, store := setup(t, ann)
	require.NoError(t, store.Seen(ctx, "solo", t0))

	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, 5*time.Millisecond) }()

	select {
	case <-ann.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("no round ran")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
