package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func revokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <credential-id>",
		Short: "Revoke a credential so it is rejected on every door's next allowlist sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := c.Revoke(ctx, args[0]); err != nil {
				return fmt.Errorf("revoke credential: %w", err)
			}
			fmt.Printf("Credential %s revoked.\n", args[0])
			return nil
		},
	}
}
