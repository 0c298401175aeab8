package discord

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chatthief/internal/catalog"
	"chatthief/internal/chat"
	"chatthief/internal/economy"
	"chatthief/internal/store/memory"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	channelID string
	content   string
}

type fakeSender struct {
	out []sent
}

func (f *fakeSender) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.out = append(f.out, sent{channelID, content})
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

var now = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

func newBot(t *testing.T, channelID string) (*Bot, *economy.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := economy.NewService(store, catalog.FromPrices(map[string]int64{"clap": 1}), nil, nil)
	return &Bot{
		router:    chat.NewRouter(svc, "!", nil),
		presence:  store,
		channelID: channelID,
		log:       slog.Default(),
		now:       func() time.Time { return now },
	}, svc, store
}

func msg(channel, author, content string, mentions ...*discordgo.User) *discordgo.Message {
	return &discordgo.Message{
		ChannelID: channel,
		Content:   content,
		Author:    &discordgo.User{ID: "id-" + author, Username: author},
		Mentions:  mentions,
	}
}

func TestResolveMentions(t *testing.T) {
	bob := &discordgo.User{ID: "42", Username: "bob"}
	assert.Equal(t, "!share clap @bob", resolveMentions("!share clap <@42>", []*discordgo.User{bob}))
	assert.Equal(t, "!give @bob clap", resolveMentions("!give <@!42> clap", []*discordgo.User{bob}))
	assert.Equal(t, "!me", resolveMentions("!me", nil))
}

func TestDispatchRepliesAndRecordsPresence(t *testing.T) {
	ctx := context.Background()
	b, svc, store := newBot(t, "")
	out := &fakeSender{}

	require.NoError(t, b.dispatch(ctx, out, msg("c1", "amy", "!me")))
	require.Len(t, out.out, 1)
	assert.Equal(t, sent{"c1", "@amy - Mana: 3 | Street Cred: 0 | Cool Points: 0"}, out.out[0])

	recent, err := store.Recent(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"amy"}, recent)

	_, err = svc.AdjustCoolPoints(ctx, "amy", 1)
	require.NoError(t, err)
	require.NoError(t, b.dispatch(ctx, out, msg("c1", "amy", "!buy clap")))
	require.NoError(t, b.dispatch(ctx, out, msg("c1", "amy", "!clap")))
	assert.Equal(t, "🔊 !clap", out.out[2].content)

	bob := &discordgo.User{ID: "7", Username: "bob"}
	require.NoError(t, b.dispatch(ctx, out, msg("c1", "amy", "!share clap <@7>", bob)))
	assert.Equal(t, "@amy Not enough street_cred to share !clap with @bob", out.out[3].content)
}

func TestDispatchIgnores(t *testing.T) {
	ctx := context.Background()
	b, _, store := newBot(t, "stream")
	out := &fakeSender{}

	bot := msg("stream", "nightbot", "!me")
	bot.Author.Bot = true
	require.NoError(t, b.dispatch(ctx, out, bot))
	require.NoError(t, b.dispatch(ctx, out, msg("general", "amy", "!me")))
	require.NoError(t, b.dispatch(ctx, out, msg("stream", "amy", "hello")))
	assert.Empty(t, out.out)

	recent, err := store.Recent(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"amy"}, recent)
}

func TestAnnouncer(t *testing.T) {
	out := &fakeSender{}
	a := &Announcer{send: out, channelID: "stream"}
	require.NoError(t, a.Announce(context.Background(), "hi"))
	assert.Equal(t, []sent{{"stream", "hi"}}, out.out)

	_, err := NewAnnouncer("", "stream")
	assert.ErrorIs(t, err, ErrNoToken)
}
