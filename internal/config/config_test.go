package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadValidFullConfigAndResolveRelativePaths(t *testing.T) {
	tmp := t.TempDir()
	privPath := filepath.Join(tmp, "intercom.key")
	signerPath := filepath.Join(tmp, "signer.pub")
	if err := os.WriteFile(privPath, []byte("deadbeef"), 0o600); err != nil {
		t.Fatalf("write priv key: %v", err)
	}
	if err := os.WriteFile(signerPath, []byte("cafebabe"), 0o600); err != nil {
		t.Fatalf("write signer key: %v", err)
	}

	cfgPath := filepath.Join(tmp, "config.yaml")
	cfgYAML := `
door:
  id: "front-door"
  aliases: ["lobby"]
variant:
  kind: "ecdh_gcm"
  intercom_priv_key_file: "intercom.key"
  signer_pub_key_file: "signer.pub"
backend:
  endpoint: "https://backend.example.com/api"
limits:
  per_peer_attempts: 5
  per_peer_window_seconds: 60
  global_attempts: 50
  global_window_seconds: 60
`
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Variant.IntercomPrivFile != privPath {
		t.Fatalf("expected resolved priv key path %q, got %q", privPath, cfg.Variant.IntercomPrivFile)
	}
	if cfg.Door.ID != "front-door" {
		t.Fatalf("expected door id front-door, got %q", cfg.Door.ID)
	}
}

func TestLoadWithModeEmulatorAllowsMinimalConfig(t *testing.T) {
	cfgPath := writeConfig(t, `
door:
  id: "front-door"
variant:
  kind: "symmetric_demo"
`)
	cfg, err := LoadWithMode(cfgPath, ValidationEmulator)
	if err != nil {
		t.Fatalf("LoadWithMode returned error: %v", err)
	}
	if cfg.Variant.Kind != "symmetric_demo" {
		t.Fatalf("expected symmetric_demo, got %q", cfg.Variant.Kind)
	}
}

func TestLoadFullFailsOnUnknownVariantKind(t *testing.T) {
	cfgPath := writeConfig(t, `
door:
  id: "front-door"
variant:
  kind: "rfid-legacy"
`)
	_, err := Load(cfgPath)
	if err == nil || !strings.Contains(err.Error(), "must be one of") {
		t.Fatalf("expected unknown variant kind error, got %v", err)
	}
}

func TestLoadFullFailsWhenBackendEndpointMissing(t *testing.T) {
	tmp := t.TempDir()
	priv := filepath.Join(tmp, "intercom.key")
	signer := filepath.Join(tmp, "signer.pub")
	os.WriteFile(priv, []byte("k"), 0o600)
	os.WriteFile(signer, []byte("k"), 0o600)

	cfgPath := filepath.Join(tmp, "config.yaml")
	cfgYAML := `
door:
  id: "front-door"
variant:
  kind: "ecdh_gcm"
  intercom_priv_key_file: "intercom.key"
  signer_pub_key_file: "signer.pub"
`
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(cfgPath)
	if err == nil || !strings.Contains(err.Error(), "config.backend.endpoint is required") {
		t.Fatalf("expected missing backend endpoint error, got %v", err)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	cfgPath := writeConfig(t, `
door:
  id: "front-door"
  bogus_field: true
variant:
  kind: "symmetric_demo"
`)
	_, err := LoadWithMode(cfgPath, ValidationEmulator)
	if err == nil {
		t.Fatalf("expected strict decode to reject unknown field")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}
