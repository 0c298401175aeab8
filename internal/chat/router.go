package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"chatthief/internal/economy"
)

// Economy is the slice of *economy.Service the router drives.
type Economy interface {
	IsPrivileged(username string) bool
	Stats(ctx context.Context, username string) (economy.Stats, error)
	CommandInfo(ctx context.Context, command string) (economy.CommandInfo, error)
	Commands(ctx context.Context, username string) ([]string, error)
	Purchase(ctx context.Context, buyer, command string) (economy.PurchaseOutcome, error)
	Share(ctx context.Context, actor, command, beneficiary string) (economy.TransferOutcome, error)
	Give(ctx context.Context, actor, command, beneficiary string) (economy.TransferOutcome, error)
	Vote(ctx context.Context, username, command string, positive bool) (economy.CommandInfo, error)
	Play(ctx context.Context, username, command string) (bool, error)
	SetRideOrDie(ctx context.Context, username, other string) (bool, error)
	Karma(ctx context.Context, username string) (int64, error)
	Leaderboard(ctx context.Context, kind economy.LeaderboardKind, topN int) ([]economy.LeaderboardRow, error)
	Summary(ctx context.Context) (economy.Summary, error)
	PaperUp(ctx context.Context, username string, amount int64) (economy.User, error)
	Bankrupt(ctx context.Context, username string) (economy.User, error)
	Kill(ctx context.Context, username string) (economy.User, error)
	Revive(ctx context.Context, username string, mana int64) (economy.User, error)
	RemoveAllCommands(ctx context.Context, username string) ([]string, error)
}

var _ Economy = (*economy.Service)(nil)

// Response is what the transport should do for one message. Effect names a
// sound the sender is allowed to play.
type Response struct {
	Text   string `json:"text,omitempty"`
	Effect string `json:"effect,omitempty"`
}

func (r Response) Empty() bool {
	return r.Text == "" && r.Effect == ""
}

type handler func(ctx context.Context, m Message) (Response, error)

type Router struct {
	econ   Economy
	prefix string
	log    *slog.Logger

	routes     map[string]handler
	privileged map[string]handler
}

func NewRouter(econ Economy, prefix string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	r := &Router{econ: econ, prefix: prefix, log: logger}
	r.routes = map[string]handler{
		"me":          r.me,
		"perms":       r.perms,
		"buy":         r.buy,
		"share":       r.transfer(economy.TransferShare),
		"give":        r.transfer(economy.TransferGive),
		"commands":    r.commands,
		"props":       r.vote(true),
		"dislike":     r.vote(false),
		"rod":         r.rideOrDie,
		"karma":       r.karma,
		"leaderboard": r.leaderboard,
		"economy":     r.summary,
	}
	r.privileged = map[string]handler{
		"paperup":    r.paperUp,
		"bankrupt":   r.bankrupt,
		"kill":       r.kill,
		"revive":     r.revive,
		"remove_all": r.removeAll,
	}
	return r
}

func (r *Router) Prefix() string {
	return r.prefix
}

// Route handles one chat line. Store failures are returned as errors;
// everything the user can cause is rendered as text.
func (r *Router) Route(ctx context.Context, user, text string) (Response, error) {
	m, ok := Parse(user, text, r.prefix)
	if !ok || m.User == "" {
		return Response{}, nil
	}
	if h, ok := r.routes[m.Command]; ok {
		return r.finish(h(ctx, m))
	}
	if h, ok := r.privileged[m.Command]; ok {
		if !r.econ.IsPrivileged(m.User) {
			r.log.Info("privileged command refused", "user", m.User, "command", m.Command)
			return Response{}, nil
		}
		return r.finish(h(ctx, m))
	}
	return r.finish(r.play(ctx, m))
}

// finish turns caller mistakes into chat text and passes real failures up.
func (r *Router) finish(resp Response, err error) (Response, error) {
	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, economy.ErrEmptyUsername):
		return Response{Text: "Who? Tag someone with @"}, nil
	case errors.Is(err, economy.ErrNegativeBalance):
		return Response{Text: "That would leave a negative balance"}, nil
	case errors.Is(err, economy.ErrUnknownLeaderboard):
		return Response{Text: "Leaderboards: cool_points, street_cred, karma"}, nil
	case errors.Is(err, economy.ErrTxConflict):
		return Response{Text: "The market is busy, try again"}, nil
	default:
		return Response{}, err
	}
}

func (r *Router) me(ctx context.Context, m Message) (Response, error) {
	s, err := r.econ.Stats(ctx, m.User)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: FormatStats(s)}, nil
}

func (r *Router) perms(ctx context.Context, m Message) (Response, error) {
	if len(m.Args) == 0 {
		return r.commands(ctx, m)
	}
	info, err := r.econ.CommandInfo(ctx, m.Args[0])
	if errors.Is(err, economy.ErrUnknownCommand) {
		return Response{Text: fmt.Sprintf("Invalid Effect: %s", economy.NormalizeCommand(m.Args[0]))}, nil
	}
	if err != nil {
		return Response{}, err
	}
	return Response{Text: FormatCommandInfo(info)}, nil
}

func (r *Router) buy(ctx context.Context, m Message) (Response, error) {
	if len(m.Args) == 0 {
		return Response{Text: "Usage: " + r.prefix + "buy <effect|random>"}, nil
	}
	out, err := r.econ.Purchase(ctx, m.User, m.Args[0])
	if err != nil {
		return Response{}, err
	}
	return Response{Text: FormatPurchase(out)}, nil
}

func (r *Router) transfer(mode economy.TransferMode) handler {
	return func(ctx context.Context, m Message) (Response, error) {
		target, rest := splitTarget(m.Args, true)
		if target == "" || len(rest) == 0 {
			return Response{Text: fmt.Sprintf("Usage: %s%s <effect> @user", r.prefix, mode)}, nil
		}
		command := rest[0]
		run := r.econ.Share
		if mode == economy.TransferGive {
			run = r.econ.Give
		}
		out, err := run(ctx, m.User, command, target)
		if errors.Is(err, economy.ErrUnknownCommand) {
			return Response{Text: fmt.Sprintf("!%s invalid command", economy.NormalizeCommand(command))}, nil
		}
		if err != nil {
			return Response{}, err
		}
		return Response{Text: FormatTransfer(out)}, nil
	}
}

func (r *Router) commands(ctx context.Context, m Message) (Response, error) {
	names, err := r.econ.Commands(ctx, m.User)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: FormatCommands(m.User, names)}, nil
}

func (r *Router) vote(positive bool) handler {
	return func(ctx context.Context, m Message) (Response, error) {
		if len(m.Args) == 0 {
			return Response{}, nil
		}
		info, err := r.econ.Vote(ctx, m.User, m.Args[0], positive)
		if errors.Is(err, economy.ErrUnknownCommand) {
			return Response{}, nil
		}
		if err != nil {
			return Response{}, err
		}
		return Response{Text: FormatCommandInfo(info)}, nil
	}
}

func (r *Router) rideOrDie(ctx context.Context, m Message) (Response, error) {
	target, _ := splitTarget(m.Args, false)
	if target == "" {
		return Response{Text: "Usage: " + r.prefix + "rod @user"}, nil
	}
	ok, err := r.econ.SetRideOrDie(ctx, m.User, target)
	if err != nil || !ok {
		return Response{}, err
	}
	return Response{Text: FormatRideOrDie(m.User, economy.NormalizeUsername(target))}, nil
}

func (r *Router) karma(ctx context.Context, m Message) (Response, error) {
	who := m.User
	if target, _ := splitTarget(m.Args, false); target != "" {
		who = economy.NormalizeUsername(target)
	}
	k, err := r.econ.Karma(ctx, who)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: FormatKarma(who, k)}, nil
}

func (r *Router) leaderboard(ctx context.Context, m Message) (Response, error) {
	raw := ""
	if len(m.Args) > 0 {
		raw = m.Args[0]
	}
	kind, err := economy.ParseLeaderboardKind(raw)
	if err != nil {
		return Response{}, err
	}
	rows, err := r.econ.Leaderboard(ctx, kind, economy.DefaultLeaderboardSize)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: FormatLeaderboard(kind, rows)}, nil
}

func (r *Router) summary(ctx context.Context, _ Message) (Response, error) {
	s, err := r.econ.Summary(ctx)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: FormatSummary(s)}, nil
}

func (r *Router) play(ctx context.Context, m Message) (Response, error) {
	ok, err := r.econ.Play(ctx, m.User, m.Command)
	if errors.Is(err, economy.ErrUnknownCommand) {
		return Response{}, nil
	}
	if err != nil || !ok {
		return Response{}, err
	}
	return Response{Effect: economy.NormalizeCommand(m.Command)}, nil
}

func (r *Router) paperUp(ctx context.Context, m Message) (Response, error) {
	target, rest := splitTarget(m.Args, false)
	u, err := r.econ.PaperUp(ctx, target, optionalAmount(rest))
	if err != nil {
		return Response{}, err
	}
	return Response{Text: FormatPaperUp(u.Name)}, nil
}

func (r *Router) bankrupt(ctx context.Context, m Message) (Response, error) {
	target, _ := splitTarget(m.Args, false)
	u, err := r.econ.Bankrupt(ctx, target)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: FormatBankrupt(u.Name)}, nil
}

func (r *Router) kill(ctx context.Context, m Message) (Response, error) {
	target, _ := splitTarget(m.Args, false)
	u, err := r.econ.Kill(ctx, target)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: FormatKill(u.Name)}, nil
}

func (r *Router) revive(ctx context.Context, m Message) (Response, error) {
	target, rest := splitTarget(m.Args, false)
	mana := optionalAmount(rest)
	if mana <= 0 {
		mana = economy.DefaultMana
	}
	u, err := r.econ.Revive(ctx, target, mana)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: FormatRevive(u)}, nil
}

func (r *Router) removeAll(ctx context.Context, m Message) (Response, error) {
	target, _ := splitTarget(m.Args, false)
	removed, err := r.econ.RemoveAllCommands(ctx, target)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: FormatRemoveAll(economy.NormalizeUsername(target), removed)}, nil
}

func optionalAmount(args []string) int64 {
	if len(args) == 0 {
		return 0
	}
	n, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
