package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/doorlink/pkg/doorcentral"
)

func scanCmd() *cobra.Command {
	var timeoutFlagUnused bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for nearby door-unlock peripherals",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			adapter := newLoopbackAdapter()
			if err := adapter.Enable(); err != nil {
				return fmt.Errorf("enable adapter: %w", err)
			}
			devices, err := adapter.Scan(context.Background(), doorcentral.ServiceUUID)
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			if len(devices) == 0 {
				fmt.Println("No devices found.")
				return nil
			}
			for _, d := range devices {
				fmt.Printf("%-20s %-20s rssi=%d\n", d.Name, d.MAC, d.RSSI)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&timeoutFlagUnused, "loopback", true, "use the in-process loopback adapter (the only adapter this build supports)")
	return cmd
}
