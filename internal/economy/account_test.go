package economy_test

import (
	"context"
	"testing"

	"chatthief/internal/economy"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureUserDefaults(t *testing.T) {
	svc, store := newService(t)
	u, err := svc.EnsureUser(context.Background(), "@nova")
	require.NoError(t, err)
	assert.Equal(t, economy.User{Name: "nova", Mana: 3}, u)
	assert.Equal(t, u, mustUser(t, store, "nova"))

	_, err = svc.EnsureUser(context.Background(), "  ")
	assert.ErrorIs(t, err, economy.ErrEmptyUsername)
}

func TestAdjustRejectsNegative(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	_, err := svc.AdjustCoolPoints(ctx, "ivy", 2)
	require.NoError(t, err)

	_, err = svc.AdjustCoolPoints(ctx, "ivy", -3)
	assert.ErrorIs(t, err, economy.ErrNegativeBalance)
	_, err = svc.AdjustStreetCred(ctx, "ivy", -1)
	assert.ErrorIs(t, err, economy.ErrNegativeBalance)
	assert.Equal(t, int64(2), mustUser(t, store, "ivy").CoolPoints)

	u, err := svc.AdjustMana(ctx, "ivy", -10)
	require.NoError(t, err)
	assert.Zero(t, u.Mana)
}

func TestPunishments(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	u, err := svc.PaperUp(ctx, "jo", 0)
	require.NoError(t, err)
	assert.Equal(t, economy.DefaultPaperUp, u.CoolPoints)
	assert.Equal(t, economy.DefaultPaperUp, u.StreetCred)

	u, err = svc.Bankrupt(ctx, "jo")
	require.NoError(t, err)
	assert.Zero(t, u.CoolPoints)
	assert.Zero(t, u.StreetCred)
	assert.Equal(t, int64(3), u.Mana)

	u, err = svc.Kill(ctx, "jo")
	require.NoError(t, err)
	assert.Zero(t, u.Mana)

	u, err = svc.Revive(ctx, "jo", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.Mana)
}

func TestRideOrDieAndKarma(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	ok, err := svc.SetRideOrDie(ctx, "kai", "kai")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, fan := range []string{"a", "b", "c"} {
		ok, err := svc.SetRideOrDie(ctx, fan, "@kai")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	karma, err := svc.Karma(ctx, "kai")
	require.NoError(t, err)
	assert.Equal(t, int64(3), karma)

	stats, err := svc.Stats(ctx, "kai")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Karma)
	assert.Empty(t, stats.RideOrDie)

	r, err := svc.Reward(ctx, "kai")
	require.NoError(t, err)
	assert.Equal(t, economy.Reward{Username: "kai", Karma: 3, StreetCred: 4, Mana: 6}, r)
}

func TestLeaderboard(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	seed := []struct {
		name string
		cool int64
		cred int64
	}{
		{"ann", 5, 1},
		{"ben", 9, 0},
		{"cat", 5, 4},
		{"dan", 1, 2},
	}
	for _, s := range seed {
		_, err := svc.AdjustCoolPoints(ctx, s.name, s.cool)
		require.NoError(t, err)
		_, err = svc.AdjustStreetCred(ctx, s.name, s.cred)
		require.NoError(t, err)
	}

	rows, err := svc.Leaderboard(ctx, economy.LeaderboardCoolPoints, 0)
	require.NoError(t, err)
	want := []economy.LeaderboardRow{
		{Rank: 1, Username: "ben", Value: 9},
		{Rank: 2, Username: "ann", Value: 5},
		{Rank: 3, Username: "cat", Value: 5},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("cool points leaderboard (-want +got):\n%s", diff)
	}

	rows, err = svc.Leaderboard(ctx, economy.LeaderboardStreetCred, 2)
	require.NoError(t, err)
	want = []economy.LeaderboardRow{
		{Rank: 1, Username: "cat", Value: 4},
		{Rank: 2, Username: "dan", Value: 2},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("street cred leaderboard (-want +got):\n%s", diff)
	}

	_, err = svc.SetRideOrDie(ctx, "ann", "dan")
	require.NoError(t, err)
	rows, err = svc.Leaderboard(ctx, economy.LeaderboardKarma, 1)
	require.NoError(t, err)
	assert.Equal(t, []economy.LeaderboardRow{{Rank: 1, Username: "dan", Value: 1}}, rows)

	_, err = svc.Leaderboard(ctx, "vibes", 3)
	assert.ErrorIs(t, err, economy.ErrUnknownLeaderboard)

	sum, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, economy.Summary{Users: 4, TotalCoolPoints: 20, TotalStreetCred: 7}, sum)
}

func TestRemoveAllCommandsKeepsCost(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	_, err := svc.PaperUp(ctx, "max", 0)
	require.NoError(t, err)
	for _, c := range []string{"wow", "clap"} {
		out, err := svc.Purchase(ctx, "max", c)
		require.NoError(t, err)
		require.Equal(t, economy.PurchaseSuccess, out.Result)
	}
	clapCost := cost(t, svc, "clap")

	removed, err := svc.RemoveAllCommands(ctx, "max")
	require.NoError(t, err)
	assert.Equal(t, []string{"clap", "wow"}, removed)

	cmds, err := store.CommandsFor(ctx, "max")
	require.NoError(t, err)
	assert.Empty(t, cmds)
	assert.Equal(t, clapCost, cost(t, svc, "clap"))
}

func TestPlayAndVote(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	ok, err := svc.Play(ctx, "pia", "clap")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.AdjustCoolPoints(ctx, "pia", 1)
	require.NoError(t, err)
	_, err = svc.Purchase(ctx, "pia", "clap")
	require.NoError(t, err)
	health := func() int64 {
		info, err := svc.CommandInfo(ctx, "clap")
		require.NoError(t, err)
		return info.Health
	}
	before := health()
	ok, err = svc.Play(ctx, "pia", "clap")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, before+1, health())

	info, err := svc.CommandInfo(ctx, "clap")
	require.NoError(t, err)
	assert.Equal(t, int64(100), info.LikeRatio)
	assert.Equal(t, 1, info.Owners)

	_, err = svc.Vote(ctx, "pia", "clap", true)
	require.NoError(t, err)
	_, err = svc.Vote(ctx, "quin", "clap", false)
	require.NoError(t, err)
	info, err = svc.Vote(ctx, "rex", "clap", true)
	require.NoError(t, err)
	assert.Equal(t, int64(66), info.LikeRatio)
}

func TestDropRandom(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		d, err := svc.DropRandom(ctx, "uma")
		require.NoError(t, err)
		require.True(t, d.Granted)
		assert.False(t, seen[d.Command], "dropped %s twice", d.Command)
		seen[d.Command] = true
	}
	d, err := svc.DropRandom(ctx, "uma")
	require.NoError(t, err)
	assert.False(t, d.Granted)

	assert.Equal(t, int64(1), cost(t, svc, "clap"))
	assert.Equal(t, int64(3), cost(t, svc, "airhorn"))
}

func TestHistoryRecordsPurchase(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.AdjustCoolPoints(ctx, "vic", 1)
	require.NoError(t, err)
	_, err = svc.Purchase(ctx, "vic", "clap")
	require.NoError(t, err)

	entries, err := svc.History(ctx, "vic", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, economy.LedgerEntry{
		TxGroupID: entries[0].TxGroupID,
		Username:  "vic",
		Command:   "clap",
		Action:    "purchase",
		Currency:  economy.CurrencyAccess,
		Delta:     1,
	}, entries[0])
	assert.Equal(t, economy.CurrencyCoolPoints, entries[1].Currency)
	assert.Equal(t, int64(-1), entries[1].Delta)
	assert.Equal(t, entries[0].TxGroupID, entries[1].TxGroupID)
	assert.Equal(t, "adjust", entries[2].Action)
	assert.NotEqual(t, entries[0].TxGroupID, entries[2].TxGroupID)
}
