package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wfunc/rpsarena/auth"
	"github.com/wfunc/rpsarena/rpc"
)

func newTokenCmd(opts *options) *cobra.Command {
	var (
		userID string
		name   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.secret == "" {
				return errors.New("--secret is required")
			}
			if userID == "" {
				return errors.New("--user is required")
			}
			token, err := auth.IssueToken(opts.secret, opts.issuer, auth.Identity{UserID: userID, DisplayName: name}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (token subject)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func newLeaderboardCmd() *cobra.Command {
	var (
		addr  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the leaderboard via the RPC service",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rpc.Dial(addr)
			if err != nil {
				return fmt.Errorf("dial %s: %w", addr, err)
			}
			defer client.Close()

			entries, err := client.Top(limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tUSER\tNAME\tWINS\tLOSSES")
			for i, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\n", i+1, e.UserID, e.DisplayName, e.Wins, e.Losses)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&addr, "rpc", "localhost:8081", "RPC address")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries")
	return cmd
}

func newRoundsCmd() *cobra.Command {
	var (
		addr  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "rounds",
		Short: "Print the most recent rounds via the RPC service",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rpc.Dial(addr)
			if err != nil {
				return fmt.Errorf("dial %s: %w", addr, err)
			}
			defer client.Close()

			records, err := client.Recent(limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ROOM\tROUND\tPLAYERS")
			for _, rec := range records {
				players := make([]string, 0, len(rec.Players))
				for _, p := range rec.Players {
					players = append(players, fmt.Sprintf("%s(%s,%s)", p.DisplayName, p.Move, p.Outcome))
				}
				fmt.Fprintf(w, "%s\t%d\t%s\n", rec.RoomID, rec.Round, strings.Join(players, " vs "))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&addr, "rpc", "localhost:8081", "RPC address")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of rounds")
	return cmd
}
