// Package cli implements invitectl, the operator tool for signed invite
// payloads and the session store.
package cli

import (
	"github.com/spf13/cobra"

	"invite-service/internal/logger"
)

// NewRootCmd creates a new root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "invitectl",
		Short:         "Operate the invite service",
		Long:          `invitectl signs and verifies bot invite payloads and checks the session store.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logger.Init("debug")
			}
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	cmd.AddCommand(
		NewSignCmd(),
		NewVerifyCmd(),
		NewPingCmd(),
		NewMigrateCmd(),
	)

	return cmd
}
