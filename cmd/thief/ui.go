package main

import (
	"fmt"
	"strconv"
	"strings"

	"chatthief/internal/api"
	"chatthief/internal/chat"
	"chatthief/internal/economy"

	"github.com/fatih/color"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func renderPurchase(out api.PurchaseResponse) {
	switch out.Outcome.Result {
	case economy.PurchaseSuccess:
		printSuccess(out.Message)
	case economy.PurchaseInvalidCommand:
		printError(out.Message)
	default:
		printWarn(out.Message)
	}
	printInfo(fmt.Sprintf("Cool Points left: %s", comma(out.Outcome.CoolPoints)))
}

func renderTransfer(out api.TransferResponse) {
	if !out.Outcome.Granted() {
		printWarn(out.Message)
		return
	}
	printSuccess(out.Message)
	if out.Outcome.Privileged {
		printInfo("Granted by a stream lord, nothing charged.")
		return
	}
	printInfo(fmt.Sprintf("Street Cred left: %s | !%s now costs %s",
		comma(out.Outcome.StreetCred), out.Outcome.Command, comma(out.Outcome.Cost)))
}

func renderStats(s economy.Stats, commands []string) {
	accent.Printf("\n== @%s ==\n", s.Username)
	fmt.Printf("%-12s %10s\n", "Cool Points", comma(s.CoolPoints))
	fmt.Printf("%-12s %10s\n", "Street Cred", comma(s.StreetCred))
	fmt.Printf("%-12s %10s\n", "Mana", comma(s.Mana))
	fmt.Printf("%-12s %10s\n", "Karma", comma(s.Karma))
	if s.RideOrDie != "" {
		fmt.Printf("%-12s %10s\n", "Ride or die", "@"+truncate(s.RideOrDie, 9))
	}
	if len(commands) == 0 {
		printInfo("No sound effects unlocked yet.")
	} else {
		bangs := make([]string, len(commands))
		for i, c := range commands {
			bangs[i] = "!" + c
		}
		printInfo(strings.Join(bangs, " "))
	}
	fmt.Println()
}

func renderCommandInfo(info economy.CommandInfo) {
	accent.Printf("\n== !%s ==\n", info.Name)
	fmt.Printf("%-10s %8s\n", "Cost", comma(info.Cost))
	fmt.Printf("%-10s %8s\n", "Health", comma(info.Health))
	fmt.Printf("%-10s %7d%%\n", "Likes", info.LikeRatio)
	fmt.Printf("%-10s %8d\n", "Owners", info.Owners)
	fmt.Println()
}

func renderHistory(user string, entries []economy.LedgerEntry) {
	accent.Printf("\n== @%s history ==\n", strings.TrimPrefix(user, "@"))
	if len(entries) == 0 {
		printInfo("No ledger entries yet.")
		return
	}
	fmt.Printf("%-10s %-12s %-12s %8s  %s\n", "ACTION", "CURRENCY", "EFFECT", "DELTA", "GROUP")
	for _, e := range entries {
		fmt.Printf("%-10s %-12s %-12s %8s  %s\n",
			truncate(e.Action, 10),
			e.Currency,
			truncate(e.Command, 12),
			signed(e.Delta),
			truncate(e.TxGroupID, 8),
		)
	}
	fmt.Println()
}

func renderLeaderboard(kind string, rows []economy.LeaderboardRow) {
	accent.Printf("\n== %s ==\n", strings.ToUpper(strings.ReplaceAll(kind, "_", " ")))
	if len(rows) == 0 {
		printInfo("No leaderboard rows yet.")
		return
	}
	fmt.Printf("%-6s %-24s %12s\n", "RANK", "USER", "VALUE")
	for _, row := range rows {
		fmt.Printf("%-6d %-24s %12s\n", row.Rank, truncate(row.Username, 24), comma(row.Value))
	}
	fmt.Println()
}

func renderSummary(s economy.Summary) {
	accent.Println("\n== ECONOMY ==")
	fmt.Printf("%-18s %12s\n", "Users", comma(int64(s.Users)))
	fmt.Printf("%-18s %12s\n", "Total Street Cred", comma(s.TotalStreetCred))
	fmt.Printf("%-18s %12s\n", "Total Cool Points", comma(s.TotalCoolPoints))
	fmt.Println()
}

func renderChat(resp chat.Response) {
	switch {
	case resp.Text != "":
		printInfo(resp.Text)
	case resp.Effect != "":
		printSuccess("🔊 !" + resp.Effect)
	default:
		printWarn("(no reply)")
	}
}

func signed(v int64) string {
	if v > 0 {
		return "+" + comma(v)
	}
	return comma(v)
}

func comma(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	if len(s) > 3 {
		var b strings.Builder
		pre := len(s) % 3
		if pre > 0 {
			b.WriteString(s[:pre])
			b.WriteByte(',')
		}
		for i := pre; i < len(s); i += 3 {
			b.WriteString(s[i : i+3])
			if i+3 < len(s) {
				b.WriteByte(',')
			}
		}
		s = b.String()
	}
	if neg {
		return "-" + s
	}
	return s
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
