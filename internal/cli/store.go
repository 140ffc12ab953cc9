package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"invite-service/internal/app"
	"invite-service/internal/config"
	"invite-service/internal/db"
	"invite-service/internal/health"
)

// NewPingCmd creates a new ping command
func NewPingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the configured session store answers",
		Long:  `Connect to the store selected by STORE_BACKEND and report connected, error or disabled.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPing(cmd.Context(), cmd)
		},
	}
	return cmd
}

func runPing(ctx context.Context, cmd *cobra.Command) error {
	s, err := config.LoadStore()
	if err != nil {
		return err
	}

	st, ping, err := app.OpenStore(ctx, s)
	if err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), health.StoreError)
		return err
	}
	defer st.Close()

	status := health.NewHandler(config.Config{Store: s}, ping).StoreStatus(ctx)
	fmt.Fprintln(cmd.OutOrStdout(), status)
	if status == health.StoreError {
		return errors.New("store did not answer")
	}
	return nil
}

// NewMigrateCmd creates a new migrate command
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres key-value table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := config.LoadStore()
			if err != nil {
				return err
			}
			if s.DatabaseDSN == "" {
				return errors.New("DATABASE_DSN is required")
			}

			sqlDB, err := db.Open(ctx, s.DatabaseDSN)
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			if err := db.RunMigration(ctx, sqlDB); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrated")

			if sweep, _ := cmd.Flags().GetBool("sweep"); sweep {
				n, err := db.NewStore(sqlDB).Sweep(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "swept %d expired entries\n", n)
			}
			return nil
		},
	}

	cmd.Flags().Bool("sweep", false, "Also delete expired entries")
	return cmd
}
