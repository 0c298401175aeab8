// Package discord connects the chat router to a Discord channel.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatthief/internal/chat"
	"chatthief/internal/economy"

	"github.com/bwmarrin/discordgo"
)

var ErrNoToken = errors.New("discord bot token is required")

// sender is the part of *discordgo.Session used to reply.
type sender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Bot struct {
	session   *discordgo.Session
	router    *chat.Router
	presence  economy.Presence
	channelID string
	log       *slog.Logger
	now       func() time.Time
	timeout   time.Duration
}

// New prepares a gateway session. channelID limits the bot to one channel
// when set.
func New(token, channelID string, router *chat.Router, presence economy.Presence, logger *slog.Logger) (*Bot, error) {
	session, err := newSession(token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		session:   session,
		router:    router,
		presence:  presence,
		channelID: channelID,
		log:       logger,
		now:       time.Now,
		timeout:   10 * time.Second,
	}, nil
}

func newSession(token string) (*discordgo.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNoToken
	}
	token = strings.TrimPrefix(token, "Bot ")
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return session, nil
}

// Run opens the gateway and serves messages until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	remove := b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		hctx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		if err := b.dispatch(hctx, s, m.Message); err != nil {
			b.log.Error("chat message failed", "err", err, "channel_id", m.ChannelID)
		}
	})
	defer remove()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	b.log.Info("discord bot connected", "channel_id", b.channelID)
	<-ctx.Done()
	if err := b.session.Close(); err != nil {
		b.log.Warn("discord close", "err", err)
	}
	return nil
}

// Announcer returns a channel announcer sharing the bot's session.
func (b *Bot) Announcer() *Announcer {
	return &Announcer{send: b.session, channelID: b.channelID}
}

func (b *Bot) dispatch(ctx context.Context, send sender, m *discordgo.Message) error {
	if m == nil || m.Author == nil || m.Author.Bot {
		return nil
	}
	if b.channelID != "" && m.ChannelID != b.channelID {
		return nil
	}
	user := m.Author.Username
	if b.presence != nil {
		if err := b.presence.Seen(ctx, user, b.now()); err != nil {
			b.log.Warn("presence update failed", "user", user, "err", err)
		}
	}

	resp, err := b.router.Route(ctx, user, resolveMentions(m.Content, m.Mentions))
	if err != nil {
		return fmt.Errorf("route %q: %w", m.Content, err)
	}
	text := reply(resp, b.router.Prefix())
	if text == "" {
		return nil
	}
	if _, err := send.ChannelMessageSend(m.ChannelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	return nil
}

// reply renders a router response as one Discord line. An effect is echoed
// so overlays listening on the channel can play it.
func reply(resp chat.Response, prefix string) string {
	switch {
	case resp.Text != "":
		return resp.Text
	case resp.Effect != "":
		return "🔊 " + prefix + resp.Effect
	default:
		return ""
	}
}

// resolveMentions rewrites <@id> and <@!id> tokens to @username so the
// router sees the same shape as a plain chat mention.
func resolveMentions(content string, mentions []*discordgo.User) string {
	for _, u := range mentions {
		if u == nil {
			continue
		}
		at := "@" + u.Username
		content = strings.ReplaceAll(content, "<@"+u.ID+">", at)
		content = strings.ReplaceAll(content, "<@!"+u.ID+">", at)
	}
	return content
}

// Announcer posts market announcements to a channel over the REST API. It
// does not need an open gateway.
type Announcer struct {
	send      sender
	channelID string
}

func NewAnnouncer(token, channelID string) (*Announcer, error) {
	if strings.TrimSpace(channelID) == "" {
		return nil, errors.New("discord channel id is required")
	}
	session, err := newSession(token)
	if err != nil {
		return nil, err
	}
	return &Announcer{send: session, channelID: channelID}, nil
}

func (a *Announcer) Announce(ctx context.Context, msg string) error {
	if _, err := a.send.ChannelMessageSend(a.channelID, msg, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("announce: %w", err)
	}
	return nil
}
