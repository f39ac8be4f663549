package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/ashureev/askd/internal/config"
	"github.com/ashureev/askd/internal/identity"
	"github.com/spf13/cobra"
)

var userPassword string

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage registered identities",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Register an identity against the configured storage",
	Long: `Register an identity without running the server.

The password comes from --password or, when the flag is omitted, ASKD_PASSWORD.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := userPassword
		if password == "" {
			password = os.Getenv("ASKD_PASSWORD")
		}
		if password == "" {
			return errors.New("password is required (--password or ASKD_PASSWORD)")
		}

		st, err := openOffline(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.users.Register(cmd.Context(), args[0], password); err != nil {
			if errors.Is(err, identity.ErrDuplicateUser) {
				return fmt.Errorf("user %q already exists", args[0])
			}
			return fmt.Errorf("failed to register %q: %w", args[0], err)
		}
		if !st.users.Save(cmd.Context()) {
			return errors.New("user registered but could not be saved")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", args[0])
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List persisted sessions with turn counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openOffline(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		ids := st.ledger.SessionIDs()
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tTURNS\tLAST ACTIVITY")
		for _, id := range ids {
			turns := st.ledger.Get(id)
			last := "-"
			if len(turns) > 0 {
				last = turns[len(turns)-1].Timestamp
			}
			fmt.Fprintf(w, "%s\t%d\t%s\n", id, len(turns), last)
		}
		return w.Flush()
	},
}

func init() {
	userAddCmd.Flags().StringVar(&userPassword, "password", "", "Password for the new identity")
	userCmd.AddCommand(userAddCmd)
}

// openOffline loads persisted state without requiring model credentials.
func openOffline(ctx context.Context) (*state, error) {
	cfg := config.LoadStorage()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	slog.SetDefault(newLogger(max(cfg.LogLevel, slog.LevelWarn)))
	return openState(ctx, cfg)
}
