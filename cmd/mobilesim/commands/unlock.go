package commands

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/barnettlynn/doorlink/pkg/doorcentral"
)

func unlockCmd() *cobra.Command {
	var doorID string
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Run the ECDH+GCM unlock handshake against a door",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			fs, err := openKeyStore()
			if err != nil {
				return err
			}
			devicePriv, err := loadOrCreateDeviceKey(fs)
			if err != nil {
				return fmt.Errorf("load device key: %w", err)
			}

			adapter := newLoopbackAdapterFor(doorID)
			credential := adapter.mintCredential(devicePriv, time.Hour)

			driver := doorcentral.New(adapter, doorcentral.VariantConfig{
				EcdhGcm: &doorcentral.EcdhGcmParams{
					DevicePriv:  devicePriv,
					IntercomPub: adapter.intercomPub,
					Credential:  credential,
				},
			})

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			result, err := driver.Run(ctx, doorID)
			if err != nil {
				return fmt.Errorf("unlock attempt failed: %w", err)
			}
			fmt.Printf("status=%v door_state=%v\n", result.Status, result.DoorState)
			return nil
		},
	}
	cmd.Flags().StringVar(&doorID, "door", "front-door", "target door id to unlock")
	return cmd
}

func loadOrCreateDeviceKey(fs interface {
	Load(label string) ([]byte, error)
	Store(label string, secret []byte) error
}) (*ecdh.PrivateKey, error) {
	raw, err := fs.Load("device-priv")
	if err == nil {
		return ecdh.P256().NewPrivateKey(raw)
	}
	priv, genErr := ecdh.P256().GenerateKey(rand.Reader)
	if genErr != nil {
		return nil, genErr
	}
	if storeErr := fs.Store("device-priv", priv.Bytes()); storeErr != nil {
		return nil, storeErr
	}
	return priv, nil
}
