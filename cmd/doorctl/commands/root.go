package commands

import (
	"github.com/spf13/cobra"

	"github.com/barnettlynn/doorlink/internal/backendclient"
)

var (
	endpoint       string
	cfClientID     string
	cfClientSecret string
)

var rootCmd = &cobra.Command{
	Use:   "doorctl",
	Short: "Backend-facing admin CLI for the door-unlock system",

	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "backend API endpoint (required)")
	rootCmd.PersistentFlags().StringVar(&cfClientID, "cf-client-id", "", "Cloudflare Access client ID")
	rootCmd.PersistentFlags().StringVar(&cfClientSecret, "cf-client-secret", "", "Cloudflare Access client secret")

	rootCmd.AddCommand(revokeCmd())
	rootCmd.AddCommand(allowlistCmd())
	rootCmd.AddCommand(aliasesCmd())
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func client() (*backendclient.Client, error) {
	if endpoint == "" {
		return nil, errRequiredFlag("--endpoint")
	}
	return backendclient.New(endpoint, cfClientID, cfClientSecret), nil
}

type errRequiredFlag string

func (e errRequiredFlag) Error() string { return string(e) + " is required" }
