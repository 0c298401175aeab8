// Package market runs the periodic reward round that keeps chatters paid.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"sync"
	"time"

	"chatthief/internal/chat"
	"chatthief/internal/economy"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultEvery  = 5 * time.Minute
	DefaultWindow = 10 * time.Minute

	rewardWorkers = 4
)

var ErrNoChatters = errors.New("no recent chatters")

type Economy interface {
	DropRandom(ctx context.Context, username string) (economy.Drop, error)
	Reward(ctx context.Context, username string) (economy.Reward, error)
}

// Announcer posts a line to the stream chat.
type Announcer interface {
	Announce(ctx context.Context, msg string) error
}

type Config struct {
	Window    time.Duration
	Blacklist []string
}

// Round is what one RunOnce did.
type Round struct {
	Chatters []string         `json:"chatters"`
	Drop     economy.Drop     `json:"drop"`
	Rewards  []economy.Reward `json:"rewards"`
}

type Hand struct {
	econ      Economy
	presence  economy.Presence
	announcer Announcer
	window    time.Duration
	blacklist map[string]struct{}
	log       *slog.Logger
	now       func() time.Time

	mu   sync.Mutex
	rand *mathrand.Rand
}

// NewHand builds a reward round runner. announcer may be nil, in which case
// results are only logged.
func NewHand(econ Economy, presence economy.Presence, announcer Announcer, cfg Config, logger *slog.Logger) *Hand {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	blacklist := make(map[string]struct{}, len(cfg.Blacklist))
	for _, name := range cfg.Blacklist {
		if name = economy.NormalizeUsername(name); name != "" {
			blacklist[name] = struct{}{}
		}
	}
	return &Hand{
		econ:      econ,
		presence:  presence,
		announcer: announcer,
		window:    cfg.Window,
		blacklist: blacklist,
		log:       logger,
		now:       time.Now,
		rand:      mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
}

// RunOnce drops a random effect to one recent chatter and pays every
// non-blacklisted recent chatter street cred and mana scaled by karma.
func (h *Hand) RunOnce(ctx context.Context) (Round, error) {
	chatters, err := h.presence.Recent(ctx, h.now().Add(-h.window))
	if err != nil {
		return Round{}, fmt.Errorf("recent chatters: %w", err)
	}
	if len(chatters) == 0 {
		return Round{}, ErrNoChatters
	}
	round := Round{Chatters: chatters}

	lucky := chatters[h.intn(len(chatters))]
	round.Drop, err = h.econ.DropRandom(ctx, lucky)
	if err != nil {
		return round, fmt.Errorf("drop to %s: %w", lucky, err)
	}
	h.announce(ctx, chat.FormatDrop(round.Drop))

	var eligible []string
	for _, name := range chatters {
		if _, skip := h.blacklist[name]; !skip {
			eligible = append(eligible, name)
		}
	}
	rewards := make([]economy.Reward, len(eligible))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rewardWorkers)
	for i, name := range eligible {
		g.Go(func() error {
			r, err := h.econ.Reward(gctx, name)
			if err != nil {
				return fmt.Errorf("reward %s: %w", name, err)
			}
			rewards[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return round, err
	}
	round.Rewards = rewards

	if len(eligible) > 0 {
		h.announce(ctx, chat.FormatRewards(eligible))
	}
	h.log.Info("market round", "chatters", len(chatters), "rewarded", len(eligible), "drop", round.Drop.Command, "lucky", lucky)
	return round, nil
}

// Run calls RunOnce every tick until ctx is done. Failed rounds are logged
// and the next tick proceeds.
func (h *Hand) Run(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		every = DefaultEvery
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	h.log.Info("market started", "every", every.String(), "window", h.window.String())
	for {
		select {
		case <-ctx.Done():
			h.log.Info("market shutdown")
			return ctx.Err()
		case <-ticker.C:
			if _, err := h.RunOnce(ctx); err != nil {
				if errors.Is(err, ErrNoChatters) {
					h.log.Debug("market round skipped", "reason", err.Error())
					continue
				}
				h.log.Error("market round failed", "err", err)
			}
		}
	}
}

func (h *Hand) announce(ctx context.Context, msg string) {
	if h.announcer == nil || msg == "" {
		return
	}
	if err := h.announcer.Announce(ctx, msg); err != nil {
		h.log.Warn("announce failed", "err", err)
	}
}

func (h *Hand) intn(n int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rand.Intn(n)
}
