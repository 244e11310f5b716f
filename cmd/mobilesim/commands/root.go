package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/doorlink/pkg/keystore"
)

var keysDir string

var rootCmd = &cobra.Command{
	Use:   "mobilesim",
	Short: "Simulated mobile central for the door-unlock protocol",
	Long:  "mobilesim exercises the mobile (central) side of the door-unlock handshake without a physical BLE radio, for integration testing against an in-process peripheral engine.",

	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&keysDir, "keys-dir", defaultKeysDir(), "directory for this simulated device's persisted key material")

	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(pairCmd())
	rootCmd.AddCommand(unlockCmd())
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func defaultKeysDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mobilesim-keys"
	}
	return home + "/.mobilesim/keys"
}

func openKeyStore() (*keystore.FileStore, error) {
	fs, err := keystore.NewFileStore(keysDir)
	if err != nil {
		return nil, fmt.Errorf("open key store: %w", err)
	}
	return fs, nil
}
