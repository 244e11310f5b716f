package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/doorlink/internal/config"
)

func aliasesCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "aliases",
		Short: "Print the door id and its configured aliases from an intercomd config file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithMode(configPath, config.ValidationEmulator)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			fmt.Printf("door_id: %s\n", cfg.Door.ID)
			if len(cfg.Door.Aliases) == 0 {
				fmt.Println("aliases: (none)")
				return nil
			}
			fmt.Println("aliases:")
			for _, a := range cfg.Door.Aliases {
				fmt.Printf("  - %s\n", a)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to intercomd's config.yaml")
	return cmd
}
