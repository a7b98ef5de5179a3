// rpsctl is a developer client for the arena: it mints tokens, plays from
// the terminal and reads the leaderboard and recent rounds over RPC.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

type options struct {
	server string
	secret string
	issuer string
}

func newRootCmd() *cobra.Command {
	opts := &options{
		server: envOr("RPS_SERVER", "ws://localhost:8080/ws"),
		secret: os.Getenv("RPS_AUTH_JWT_SECRET"),
		issuer: os.Getenv("RPS_AUTH_JWT_ISSUER"),
	}

	rootCmd := &cobra.Command{
		Use:          "rpsctl",
		Short:        "CLI for the rock-paper-scissors arena",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.server, "server", opts.server, "WebSocket URL (env: RPS_SERVER)")
	rootCmd.PersistentFlags().StringVar(&opts.secret, "secret", opts.secret, "JWT signing secret (env: RPS_AUTH_JWT_SECRET)")
	rootCmd.PersistentFlags().StringVar(&opts.issuer, "issuer", opts.issuer, "JWT issuer (env: RPS_AUTH_JWT_ISSUER)")

	rootCmd.AddCommand(newTokenCmd(opts))
	rootCmd.AddCommand(newPlayCmd(opts))
	rootCmd.AddCommand(newLeaderboardCmd())
	rootCmd.AddCommand(newRoundsCmd())
	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
