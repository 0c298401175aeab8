package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	cl "chatthief/internal/cli"
	"chatthief/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadCLI()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "thief",
		Short:        "Chat thief economy client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")

	root.AddCommand(
		newBuyCmd(&apiBase),
		newTransferCmd(&apiBase, "share"),
		newTransferCmd(&apiBase, "give"),
		newStatsCmd(&apiBase),
		newPermsCmd(&apiBase),
		newHistoryCmd(&apiBase),
		newLeaderboardCmd(&apiBase),
		newEconomyCmd(&apiBase),
		newSayCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func newBuyCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "buy <user> <effect|random>",
		Short: "Buy a sound effect with cool points",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).Purchase(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			renderPurchase(out)
			return nil
		},
	}
}

func newTransferCmd(apiBase *string, mode string) *cobra.Command {
	short := "Share an effect, paying one street cred"
	if mode == "give" {
		short = "Hand over your own access to an effect"
	}
	return &cobra.Command{
		Use:   mode + " <actor> <effect> <beneficiary>",
		Short: short,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			client := newClient(apiBase)
			run := client.Share
			if mode == "give" {
				run = client.Give
			}
			out, err := run(ctx, args[0], args[1], args[2])
			if err != nil {
				return err
			}
			renderTransfer(out)
			return nil
		},
	}
}

func newStatsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <user>",
		Short: "Show balances and unlocked effects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			client := newClient(apiBase)
			stats, err := client.Stats(ctx, args[0])
			if err != nil {
				return err
			}
			cmds, err := client.Commands(ctx, args[0])
			if err != nil {
				return err
			}
			renderStats(stats, cmds)
			return nil
		},
	}
}

func newPermsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "perms <effect>",
		Short: "Show an effect's cost, health and like ratio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			info, err := newClient(apiBase).CommandInfo(ctx, args[0])
			if err != nil {
				return err
			}
			renderCommandInfo(info)
			return nil
		},
	}
}

func newHistoryCmd(apiBase *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <user>",
		Short: "Show recent ledger entries for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			entries, err := newClient(apiBase).History(ctx, args[0], limit)
			if err != nil {
				return err
			}
			renderHistory(args[0], entries)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	return cmd
}

func newLeaderboardCmd(apiBase *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:       "leaderboard [cool_points|street_cred|karma]",
		Short:     "Show the top users",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"cool_points", "street_cred", "karma"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := "cool_points"
			if len(args) == 1 {
				kind = args[0]
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()
			rows, err := newClient(apiBase).Leaderboard(ctx, kind, limit)
			if err != nil {
				return err
			}
			renderLeaderboard(kind, rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of rows")
	return cmd
}

func newEconomyCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "economy",
		Short: "Show totals across every user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			sum, err := newClient(apiBase).Economy(ctx)
			if err != nil {
				return err
			}
			renderSummary(sum)
			return nil
		},
	}
}

func newSayCmd(apiBase *string) *cobra.Command {
	var user, message string
	cmd := &cobra.Command{
		Use:   "say",
		Short: "Send a chat line through the bot router",
		Example: `  thief say -u beginbot -m "!share clap @stupac62"
  thief say -u stupac62 -m "!buy random"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()
			resp, err := newClient(apiBase).Say(ctx, user, message)
			if err != nil {
				return err
			}
			renderChat(resp)
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "chat username")
	cmd.Flags().StringVarP(&message, "message", "m", "", "chat line, e.g. \"!me\"")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}
