package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func allowlistCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "allowlist <door-id>",
		Short: "Print the backend's current credential allowlist for a door",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			records, err := c.FetchAllowlist(ctx, args[0])
			if err != nil {
				return fmt.Errorf("fetch allowlist: %w", err)
			}
			if len(records) == 0 {
				fmt.Println("No credentials on file for this door.")
				return nil
			}
			for _, rec := range records {
				fmt.Printf("%-24s device=%s not_after=%d revocation_ref=%s\n",
					rec.CredentialID, rec.DevicePubKey[:16]+"...", rec.NotAfter, rec.RevocationRef)
			}
			return nil
		},
	}
}
