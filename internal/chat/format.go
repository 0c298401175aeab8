package chat

import (
	"fmt"
	"strings"

	"chatthief/internal/economy"
)

// The Format functions are pure renderings of economy values into chat lines.

func FormatPurchase(o economy.PurchaseOutcome) string {
	switch o.Result {
	case economy.PurchaseAlreadyOwned:
		return fmt.Sprintf("@%s already has access to !%s", o.Username, o.Command)
	case economy.PurchaseInvalidCommand:
		return fmt.Sprintf("Invalid Effect: %s", o.Command)
	case economy.PurchaseInsufficientFunds:
		return fmt.Sprintf("@%s not enough Cool Points to buy !%s - %d/%d", o.Username, o.Command, o.CoolPoints, o.Cost)
	case economy.PurchaseSuccess:
		return fmt.Sprintf("@%s bought !%s for %d Cool Points", o.Username, o.Command, o.Cost)
	default:
		return ""
	}
}

func FormatTransfer(o economy.TransferOutcome) string {
	if o.Granted() {
		if o.Mode == economy.TransferGive {
			return fmt.Sprintf("@%s gave !%s to @%s", o.Actor, o.Command, o.Beneficiary)
		}
		return fmt.Sprintf("@%s shared !%s with @%s", o.Actor, o.Command, o.Beneficiary)
	}
	switch o.Reason {
	case economy.DenyInsufficientSocialCapital:
		if o.Mode == economy.TransferGive {
			return fmt.Sprintf("@%s Not enough street_cred to give !%s to @%s", o.Actor, o.Command, o.Beneficiary)
		}
		return fmt.Sprintf("@%s Not enough street_cred to share !%s with @%s", o.Actor, o.Command, o.Beneficiary)
	default:
		return fmt.Sprintf("%s cannot add permissions", o.Actor)
	}
}

func FormatStats(s economy.Stats) string {
	return fmt.Sprintf("@%s - Mana: %d | Street Cred: %d | Cool Points: %d", s.Username, s.Mana, s.StreetCred, s.CoolPoints)
}

func FormatCommandInfo(i economy.CommandInfo) string {
	return fmt.Sprintf("!%s | Cost: %d | Health: %d | Like Ratio %d%%", i.Name, i.Cost, i.Health, i.LikeRatio)
}

func FormatCommands(username string, names []string) string {
	if len(names) == 0 {
		return fmt.Sprintf("@%s has no commands", username)
	}
	bangs := make([]string, len(names))
	for i, n := range names {
		bangs[i] = "!" + n
	}
	return fmt.Sprintf("@%s commands: %s", username, strings.Join(bangs, " "))
}

var leaderboardTitles = map[economy.LeaderboardKind]string{
	economy.LeaderboardCoolPoints: "Cool Points",
	economy.LeaderboardStreetCred: "Street Cred",
	economy.LeaderboardKarma:      "Karma",
}

func FormatLeaderboard(kind economy.LeaderboardKind, rows []economy.LeaderboardRow) string {
	title := leaderboardTitles[kind]
	if len(rows) == 0 {
		return fmt.Sprintf("No %s leaders yet", title)
	}
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = fmt.Sprintf("%d. @%s (%d)", r.Rank, r.Username, r.Value)
	}
	return fmt.Sprintf("Top %s: %s", title, strings.Join(parts, " | "))
}

func FormatSummary(s economy.Summary) string {
	return fmt.Sprintf("Users: %d | Total Street Cred: %d | Total Cool Points: %d", s.Users, s.TotalStreetCred, s.TotalCoolPoints)
}

func FormatKarma(username string, karma int64) string {
	return fmt.Sprintf("@%s Karma: %d", username, karma)
}

func FormatRideOrDie(username, other string) string {
	return fmt.Sprintf("@%s is now riding or dying with @%s", username, other)
}

func FormatBankrupt(username string) string {
	return fmt.Sprintf("@%s is now Bankrupt", username)
}

func FormatPaperUp(username string) string {
	return fmt.Sprintf("@%s has been Papered Up", username)
}

func FormatKill(username string) string {
	return fmt.Sprintf("@%s has been killed", username)
}

func FormatRevive(u economy.User) string {
	return fmt.Sprintf("@%s has been revived with %d Mana", u.Name, u.Mana)
}

func FormatRemoveAll(username string, removed []string) string {
	return fmt.Sprintf("@%s lost access to %d commands", username, len(removed))
}

func FormatDrop(d economy.Drop) string {
	if !d.Granted {
		return fmt.Sprintf("@%s already has every sound effect", d.Username)
	}
	return fmt.Sprintf("@%s now has access to !%s", d.Username, d.Command)
}

// FormatRewards is the market announcement for one reward round.
func FormatRewards(usernames []string) string {
	tagged := make([]string, len(usernames))
	for i, u := range usernames {
		tagged[i] = "@" + u
	}
	return fmt.Sprintf("Squid1 Enjoy your street cred: %s Squid4", strings.Join(tagged, " "))
}
