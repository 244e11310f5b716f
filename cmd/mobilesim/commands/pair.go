package commands

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

func pairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pair",
		Short: "Generate and persist this simulated device's ECDH P-256 key pair",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			priv, err := ecdh.P256().GenerateKey(rand.Reader)
			if err != nil {
				return fmt.Errorf("generate device key: %w", err)
			}
			fs, err := openKeyStore()
			if err != nil {
				return err
			}
			if err := fs.Store("device-priv", priv.Bytes()); err != nil {
				return fmt.Errorf("persist device key: %w", err)
			}
			fmt.Printf("Device key pair generated and saved under %s\n", keysDir)
			fmt.Printf("Device public key (register this with the backend): %s\n", hex.EncodeToString(priv.PublicKey().Bytes()))
			return nil
		},
	}
}
