package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"invite-service/internal/invite"
)

const secretEnv = "MATRIX_AUTH_SECRET"

func signerFromFlags(cmd *cobra.Command) (*invite.Signer, error) {
	secret, _ := cmd.Flags().GetString("secret")
	if secret == "" {
		secret = os.Getenv(secretEnv)
	}
	if secret == "" {
		return nil, errors.New("--secret or " + secretEnv + " is required")
	}
	window, _ := cmd.Flags().GetDuration("window")
	return invite.NewSigner(secret, window)
}

func addSignerFlags(cmd *cobra.Command) {
	cmd.Flags().String("secret", "", "Shared HMAC secret (defaults to $"+secretEnv+")")
	cmd.Flags().Duration("window", invite.DefaultSignedWindow, "How long a payload stays valid")
}

// NewSignCmd creates a new sign command
func NewSignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print a signed invite payload",
		Long:  `Print a signed invite payload for a Matrix user in a room, as a bot would issue it.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := signerFromFlags(cmd)
			if err != nil {
				return err
			}
			user, _ := cmd.Flags().GetString("user")
			room, _ := cmd.Flags().GetString("room")

			p := signer.Sign(invite.SignedPayload{
				MatrixUserID: user,
				RoomID:       room,
				IssuedAt:     time.Now().UnixMilli(),
				Nonce:        uuid.NewString(),
			})

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}

	addSignerFlags(cmd)
	cmd.Flags().String("user", "", "Matrix user id, e.g. @alice:example.org (required)")
	cmd.Flags().String("room", "", "Matrix room id, e.g. !abc:example.org (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("room")

	return cmd
}

// NewVerifyCmd creates a new verify command
func NewVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a signed invite payload read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := signerFromFlags(cmd)
			if err != nil {
				return err
			}

			var p invite.SignedPayload
			if err := json.NewDecoder(cmd.InOrStdin()).Decode(&p); err != nil {
				return fmt.Errorf("invalid payload: %w", err)
			}
			if err := signer.Verify(p, time.Now()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "valid: %s in %s\n", p.MatrixUserID, p.RoomID)
			return nil
		},
	}

	addSignerFlags(cmd)
	return cmd
}
