// Command intercomd runs the peripheral-side door-unlock protocol engine:
// it loads a door's configuration, builds the configured protocol variant,
// wires up rate limiting, credential caching, the backend allowlist fetch, and
// Prometheus metrics, and serves whatever BLE GATT transport binding the
// host platform provides on top of pkg/doorproto's transport-agnostic
// engine.
package main

import (
	"context"
	"crypto/ecdh"
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/barnettlynn/doorlink/internal/backendclient"
	"github.com/barnettlynn/doorlink/internal/cacherefresh"
	"github.com/barnettlynn/doorlink/internal/config"
	"github.com/barnettlynn/doorlink/internal/metrics"
	"github.com/barnettlynn/doorlink/pkg/doorproto"
	"github.com/barnettlynn/doorlink/pkg/doorproto/simactuator"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to intercomd config file")
	verbose := flag.Bool("v", false, "enable debug logging")
	logFormat := flag.String("log-format", "text", "log format: text or json")
	emulator := flag.Bool("emulator", false, "run against simactuator instead of a real door strike")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if *logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	mode := config.ValidationFull
	if *emulator {
		mode = config.ValidationEmulator
	}
	cfg, err := config.LoadWithMode(*configPath, mode)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	logger.Info("config loaded", "path", *configPath, "door_id", cfg.Door.ID, "variant", cfg.Variant.Kind)

	variant, err := buildVariant(cfg.Variant)
	if err != nil {
		log.Fatalf("build variant failed: %v", err)
	}

	m := metrics.New()
	go serveMetrics(logger, cfg.Metrics.ListenAddr)

	var rl *doorproto.RateLimiter
	if cfg.Limits.PerPeerAttempts != nil && cfg.Limits.GlobalAttempts != nil {
		rl = doorproto.NewRateLimiter(
			*cfg.Limits.PerPeerAttempts, valueOr(cfg.Limits.PerPeerWindowSec, 60),
			*cfg.Limits.GlobalAttempts, valueOr(cfg.Limits.GlobalWindowSec, 60),
		)
	}

	doorAliases := map[string]bool{cfg.Door.ID: true}
	for _, a := range cfg.Door.Aliases {
		doorAliases[a] = true
	}

	var bc *backendclient.Client
	if cfg.Backend.Endpoint != "" {
		bc = backendclient.New(cfg.Backend.Endpoint, cfg.Backend.CFClientID, cfg.Backend.CFClientSecret)
	}

	credStore := doorproto.NewCredentialStore()
	defer credStore.Close()

	engine := doorproto.NewPeripheralEngine(doorproto.EngineConfig{
		Variant:     variant,
		RateLimiter: rl,
		Actuator:    simactuator.New(),
		CredentialVerifier: &doorproto.CredentialVerifier{
			DoorAliases: doorAliases,
			Allowlist:   credStore,
			Revocation:  credStore,
		},
		CredentialStore: credStore,
		Metrics:         m,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Backend.CacheRefreshURL != "" {
		listener := cacherefresh.New(cfg.Backend.CacheRefreshURL, reloadHandler{engine: engine, logger: logger})
		go func() {
			if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("cache refresh listener stopped", "error", err)
			}
		}()
	}

	if bc != nil {
		go bootstrapAllowlist(ctx, logger, bc, engine, cfg.Door.ID)
	}

	logger.Info("intercomd ready", "door_id", cfg.Door.ID)
	<-ctx.Done()
	logger.Info("intercomd shutting down")
}

func bootstrapAllowlist(ctx context.Context, logger *slog.Logger, bc *backendclient.Client, engine *doorproto.PeripheralEngine, doorID string) {
	records, err := bc.FetchAllowlist(ctx, doorID)
	if err != nil {
		logger.Error("initial allowlist fetch failed", "error", err)
		return
	}
	creds := make([]doorproto.CredentialA, 0, len(records))
	for _, rec := range records {
		c, err := credentialAFromRecord(rec)
		if err != nil {
			logger.Warn("skipping malformed allowlist record", "credential_id", rec.CredentialID, "error", err)
			continue
		}
		creds = append(creds, c)
	}
	engine.ReloadAllowlist(creds, time.Now())
	logger.Info("initial allowlist loaded", "count", len(creds))
}

func credentialAFromRecord(rec backendclient.CredentialRecord) (doorproto.CredentialA, error) {
	var c doorproto.CredentialA
	idBytes, err := hex.DecodeString(rec.CredentialID)
	if err != nil || len(idBytes) != 16 {
		return c, fmt.Errorf("credential_id: invalid hex")
	}
	pubBytes, err := hex.DecodeString(rec.DevicePubKey)
	if err != nil || len(pubBytes) != 65 {
		return c, fmt.Errorf("device_pub_key: invalid hex")
	}
	refBytes, err := hex.DecodeString(rec.RevocationRef)
	if err != nil || len(refBytes) != 16 {
		return c, fmt.Errorf("revocation_ref: invalid hex")
	}
	sigBytes, err := hex.DecodeString(rec.Signature)
	if err != nil || len(sigBytes) != 64 {
		return c, fmt.Errorf("signature: invalid hex")
	}
	copy(c.CredentialID[:], idBytes)
	copy(c.DevicePubKey[:], pubBytes)
	copy(c.RevocationRef[:], refBytes)
	copy(c.Signature[:], sigBytes)
	c.DoorID = rec.DoorID
	c.NotBefore = time.Unix(rec.NotBefore, 0).UTC()
	c.NotAfter = time.Unix(rec.NotAfter, 0).UTC()
	c.GracePeriod = time.Duration(rec.GracePeriod) * time.Second
	return c, nil
}

type reloadHandler struct {
	engine *doorproto.PeripheralEngine
	logger *slog.Logger
}

func (h reloadHandler) OnReload(n cacherefresh.Notification) {
	h.logger.Info("cache refresh notification received", "type", n.Type, "credential_id", n.CredentialID)
	switch n.Type {
	case "reload":
		creds := make([]doorproto.CredentialA, 0, len(n.AllowlistEntries))
		for _, rec := range n.AllowlistEntries {
			c, err := credentialAFromRecord(rec)
			if err != nil {
				h.logger.Warn("skipping malformed allowlist entry", "credential_id", rec.CredentialID, "error", err)
				continue
			}
			creds = append(creds, c)
		}
		h.engine.ReloadAllowlist(creds, time.Now())
		h.logger.Info("allowlist reloaded", "count", len(creds))
	case "revoke":
		idBytes, err := hex.DecodeString(n.CredentialID)
		if err != nil || len(idBytes) != 16 {
			h.logger.Warn("revoke notification: invalid credential_id", "credential_id", n.CredentialID)
			return
		}
		var id [16]byte
		copy(id[:], idBytes)
		h.engine.RevokeCredential(id, n.Revoked)
	default:
		h.logger.Warn("unrecognized cache refresh notification type", "type", n.Type)
	}
}

func buildVariant(vc config.VariantConfig) (doorproto.Variant, error) {
	switch vc.Kind {
	case "ecdh_gcm":
		privBytes, err := loadHexFile(vc.IntercomPrivFile)
		if err != nil {
			return nil, fmt.Errorf("intercom priv key: %w", err)
		}
		priv, err := ecdh.P256().NewPrivateKey(privBytes)
		if err != nil {
			return nil, fmt.Errorf("parse intercom priv key: %w", err)
		}
		signerBytes, err := loadHexFile(vc.SignerPubFile)
		if err != nil {
			return nil, fmt.Errorf("signer pub key: %w", err)
		}
		if len(signerBytes) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("signer pub key: expected %d bytes, got %d", ed25519.PublicKeySize, len(signerBytes))
		}
		return doorproto.EcdhGcm{PrivI: priv, PubI: priv.PublicKey(), SignerPub: ed25519.PublicKey(signerBytes)}, nil

	case "diversified_cbc":
		masterBytes, err := loadHexFile(vc.MasterKeyFile)
		if err != nil {
			return nil, fmt.Errorf("master key: %w", err)
		}
		var master [16]byte
		if len(masterBytes) != 16 {
			return nil, fmt.Errorf("master key: expected 16 bytes, got %d", len(masterBytes))
		}
		copy(master[:], masterBytes)
		return doorproto.DiversifiedCbc{Keys: staticMasterKeyProvider{master: master}}, nil

	case "symmetric_demo":
		masterBytes, err := loadHexFile(vc.MasterKeyFile)
		if err != nil {
			return nil, fmt.Errorf("master key: %w", err)
		}
		var master [16]byte
		if len(masterBytes) != 16 {
			return nil, fmt.Errorf("master key: expected 16 bytes, got %d", len(masterBytes))
		}
		copy(master[:], masterBytes)
		return doorproto.SymmetricDemo{Master: master}, nil

	default:
		return nil, fmt.Errorf("unsupported variant kind %q", vc.Kind)
	}
}

// staticMasterKeyProvider diversifies device keys on demand from one root
// master key, the AN10922 convention this codebase's DiversifiedCbc variant
// follows.
type staticMasterKeyProvider struct {
	master [16]byte
}

func (p staticMasterKeyProvider) DeviceKey(duid []byte) ([16]byte, error) {
	return doorproto.DiversifyDeviceKey(p.master, duid)
}

func loadHexFile(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	line := strings.TrimSpace(string(content))
	return hex.DecodeString(line)
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func serveMetrics(logger *slog.Logger, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	logger.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}
