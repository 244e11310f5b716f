// Command provisionctl registers a mobile device's public key with the
// backend authority and stores the issued credential to a file, the
// door-unlock analogue of minter's tag-registration flow.
package main

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/barnettlynn/doorlink/internal/backendclient"
)

func main() {
	endpoint := flag.String("endpoint", "", "backend API endpoint (required)")
	doorID := flag.String("door-id", "", "door id to register this device against (required)")
	cfClientID := flag.String("cf-client-id", "", "Cloudflare Access client ID")
	keyFile := flag.String("device-key-file", "", "hex-encoded P-256 private key file; generated if missing")
	outFile := flag.String("out", "credential.json", "path to write the issued credential record")
	refresh := flag.String("refresh", "", "credential ID to refresh instead of registering a new device")
	verbose := flag.Bool("v", false, "enable debug logging")
	logFormat := flag.String("log-format", "text", "log format: text or json")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if *logFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	}

	if strings.TrimSpace(*endpoint) == "" {
		log.Fatal("-endpoint is required")
	}

	fmt.Print("Cloudflare Access client secret: ")
	secretBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		log.Fatalf("read secret: %v", err)
	}
	cfClientSecret := strings.TrimSpace(string(secretBytes))

	client := backendclient.New(*endpoint, *cfClientID, cfClientSecret)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var cred backendclient.CredentialRecord
	if strings.TrimSpace(*refresh) != "" {
		slog.Debug("refreshing credential", "credential_id", *refresh)
		cred, err = client.Refresh(ctx, *refresh)
		if err != nil {
			log.Fatalf("refresh credential: %v", err)
		}
	} else {
		if strings.TrimSpace(*doorID) == "" {
			log.Fatal("-door-id is required when registering a new device")
		}
		priv, keyErr := loadOrGenerateDeviceKey(*keyFile)
		if keyErr != nil {
			log.Fatalf("device key: %v", keyErr)
		}
		reg := backendclient.DeviceRegistration{
			DeviceID:     hex.EncodeToString(priv.PublicKey().Bytes())[:16],
			DevicePubKey: hex.EncodeToString(priv.PublicKey().Bytes()),
			DoorID:       *doorID,
		}
		slog.Debug("registering device", "door_id", *doorID)
		cred, err = client.Register(ctx, reg)
		if err != nil {
			log.Fatalf("register device: %v", err)
		}
	}

	out, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		log.Fatalf("marshal credential: %v", err)
	}
	if err := os.WriteFile(*outFile, out, 0o600); err != nil {
		log.Fatalf("write credential: %v", err)
	}
	fmt.Printf("Credential %q written to %s (expires %s)\n", cred.CredentialID, *outFile, time.Unix(cred.NotAfter, 0).Format(time.RFC3339))
}

func loadOrGenerateDeviceKey(path string) (*ecdh.PrivateKey, error) {
	if path != "" {
		if content, err := os.ReadFile(path); err == nil {
			raw, err := hex.DecodeString(strings.TrimSpace(string(content)))
			if err != nil {
				return nil, fmt.Errorf("parse device key file: %w", err)
			}
			return ecdh.P256().NewPrivateKey(raw)
		}
	}
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := os.WriteFile(path, []byte(hex.EncodeToString(priv.Bytes())+"\n"), 0o600); err != nil {
			return nil, fmt.Errorf("persist device key: %w", err)
		}
	}
	return priv, nil
}
