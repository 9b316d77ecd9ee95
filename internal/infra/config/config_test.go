package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, ":8080")
	}
	if cfg.Selection.Strategy != "balanced" {
		t.Errorf("Selection.Strategy = %q, want %q", cfg.Selection.Strategy, "balanced")
	}
	if cfg.Memory.TTL != 30*time.Minute {
		t.Errorf("Memory.TTL = %v, want 30m", cfg.Memory.TTL)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("Retry.MaxRetries = %d, want 3", cfg.Retry.MaxRetries)
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "info")
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load("/tmp/nonexistent-config-12345.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Limits.RequestsPerMinute != 50 {
		t.Errorf("expected defaults, got RequestsPerMinute=%d", cfg.Limits.RequestsPerMinute)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  addr: ":9090"
provider:
  api_key: "test-key"
selection:
  strategy: "cost-biased"
memory:
  ttl: 10m
  max_entries: 50
logger:
  level: "debug"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, ":9090")
	}
	if cfg.Provider.APIKey != "test-key" {
		t.Errorf("Provider.APIKey = %q, want %q", cfg.Provider.APIKey, "test-key")
	}
	if cfg.Selection.Strategy != "cost-biased" {
		t.Errorf("Selection.Strategy = %q, want %q", cfg.Selection.Strategy, "cost-biased")
	}
	if cfg.Memory.TTL != 10*time.Minute {
		t.Errorf("Memory.TTL = %v, want 10m", cfg.Memory.TTL)
	}
	// Unset fields keep their defaults.
	if cfg.Memory.MaxMessages != 20 {
		t.Errorf("Memory.MaxMessages = %d, want default 20", cfg.Memory.MaxMessages)
	}
}

func TestLoadRejectsInsecurePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":8080\"\n"), 0666); err != nil {
		t.Fatal(err)
	}
	// WriteFile's mode is masked by the process umask; force the
	// world-writable bits the test relies on.
	if err := os.Chmod(path, 0666); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for world-writable config")
	}
}

func TestLoadRejectsInvalidStrategy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("selection:\n  strategy: \"fastest\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected validation error for unknown strategy")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MINDHUB_SELECTION_STRATEGY", "cheapest")
	t.Setenv("MINDHUB_LOGGER_LEVEL", "debug")
	t.Setenv("MINDHUB_MEMORY_TTL", "5m")
	t.Setenv("MINDHUB_LIMITS_DAILY_COST_USD", "25.5")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Selection.Strategy != "cheapest" {
		t.Errorf("Selection.Strategy = %q, want %q", cfg.Selection.Strategy, "cheapest")
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "debug")
	}
	if cfg.Memory.TTL != 5*time.Minute {
		t.Errorf("Memory.TTL = %v, want 5m", cfg.Memory.TTL)
	}
	if cfg.Limits.DailyCostUSD != 25.5 {
		t.Errorf("Limits.DailyCostUSD = %v, want 25.5", cfg.Limits.DailyCostUSD)
	}
}

func TestEnvOverridesAPIKeyPrecedence(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sdk-key")
	t.Setenv("MINDHUB_PROVIDER_API_KEY", "mindhub-key")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Provider.APIKey != "mindhub-key" {
		t.Errorf("APIKey = %q, want MINDHUB-prefixed var to win", cfg.Provider.APIKey)
	}
}

func TestEnvOverridesAPIKeyFallback(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sdk-key")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Provider.APIKey != "sdk-key" {
		t.Errorf("APIKey = %q, want %q", cfg.Provider.APIKey, "sdk-key")
	}
}

func TestEnvOverridesTracerEnabled(t *testing.T) {
	t.Setenv("MINDHUB_TRACER_ENABLED", "true")
	t.Setenv("MINDHUB_TRACER_EXPORTER", "stdout")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if !cfg.Tracer.Enabled {
		t.Error("Tracer.Enabled should be true")
	}
	if cfg.Tracer.Exporter != "stdout" {
		t.Errorf("Tracer.Exporter = %q, want %q", cfg.Tracer.Exporter, "stdout")
	}
}

func TestEnvOverridesIgnoresInvalidDuration(t *testing.T) {
	t.Setenv("MINDHUB_MEMORY_TTL", "not-a-duration")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Memory.TTL != 30*time.Minute {
		t.Errorf("Memory.TTL = %v, want default 30m", cfg.Memory.TTL)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	passphrase := "test-passphrase-123"
	plaintext := "sk-abcdef123456"

	encrypted, err := EncryptValue(plaintext, passphrase)
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}

	decrypted, err := DecryptValue(encrypted, passphrase)
	if err != nil {
		t.Fatalf("DecryptValue: %v", err)
	}

	if decrypted != plaintext {
		t.Errorf("got %q, want %q", decrypted, plaintext)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	encrypted, err := EncryptValue("secret", "correct-pass")
	if err != nil {
		t.Fatal(err)
	}

	_, err = DecryptValue(encrypted, "wrong-pass")
	if err == nil {
		t.Error("expected error with wrong passphrase")
	}
}

func TestDecryptSecretsEnabled(t *testing.T) {
	passphrase := "test-config-key"
	plainAPIKey := "sk-secret123456"

	encrypted, err := EncryptValue(plainAPIKey, passphrase)
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}

	cfg := Defaults()
	cfg.Provider.APIKey = "enc:" + encrypted

	if err := decryptSecrets(cfg, passphrase); err != nil {
		t.Fatalf("decryptSecrets: %v", err)
	}

	if cfg.Provider.APIKey != plainAPIKey {
		t.Errorf("APIKey = %q, want %q", cfg.Provider.APIKey, plainAPIKey)
	}
}

func TestDecryptSecretsNoEncPrefix(t *testing.T) {
	cfg := Defaults()
	cfg.Provider.APIKey = "sk-plain-key"

	if err := decryptSecrets(cfg, "any-passphrase"); err != nil {
		t.Fatalf("decryptSecrets: %v", err)
	}

	if cfg.Provider.APIKey != "sk-plain-key" {
		t.Errorf("APIKey should remain unchanged")
	}
}

func TestDecryptSecretsInvalidCiphertext(t *testing.T) {
	cfg := Defaults()
	cfg.Provider.APIKey = "enc:notvalidhex"

	err := decryptSecrets(cfg, "passphrase")
	if err == nil {
		t.Error("expected error for invalid ciphertext")
	}
}
