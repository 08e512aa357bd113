package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"basketarb/pkg/crypto"
)

// validTestConfig возвращает заполненную валидную конфигурацию
func validTestConfig() *Config {
	cfg := Default()
	cfg.Broker.AppKey = "test-app-key"
	cfg.Broker.AppSecret = "test-app-secret"
	cfg.Broker.AccountNo = "12345678-01"
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Trading.EnterThreshold != -5 ||
		cfg.Trading.ExitThreshold != -9 ||
		cfg.Trading.HedgeThreshold != -13 {
		t.Errorf("default thresholds = %v / %v / %v",
			cfg.Trading.EnterThreshold, cfg.Trading.ExitThreshold, cfg.Trading.HedgeThreshold)
	}
	if cfg.Trading.TickInterval != time.Second {
		t.Errorf("default tick interval = %v", cfg.Trading.TickInterval)
	}
	if cfg.Schedule.OpenAt != "09:00" || cfg.Schedule.CutoffAt != "15:15" {
		t.Errorf("default schedule = %s-%s", cfg.Schedule.OpenAt, cfg.Schedule.CutoffAt)
	}
	if !cfg.Broker.IsSandbox() {
		t.Error("default broker URL must point to sandbox")
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
broker:
  base_url: https://openapi.koreainvestment.com:9443
  app_key: file-key
  app_secret: file-secret
  account_no: "87654321-02"
  requests_per_second: 20
trading:
  enter_threshold: -4
  exit_threshold: -8
  hedge_threshold: -12
  tick_interval: 2s
schedule:
  cutoff_at: "15:10"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Broker.AppKey != "file-key" || cfg.Broker.AccountNo != "87654321-02" {
		t.Errorf("broker not loaded: %+v", cfg.Broker)
	}
	if cfg.Broker.IsSandbox() {
		t.Error("live URL detected as sandbox")
	}
	if cfg.Trading.EnterThreshold != -4 || cfg.Trading.TickInterval != 2*time.Second {
		t.Errorf("trading not loaded: %+v", cfg.Trading)
	}
	if cfg.Schedule.CutoffAt != "15:10" {
		t.Errorf("cutoff = %s", cfg.Schedule.CutoffAt)
	}

	// Не указанное в файле остается по умолчанию
	if cfg.Trading.ConfirmAttempts != 60 {
		t.Errorf("confirm attempts = %d, want default 60", cfg.Trading.ConfirmAttempts)
	}
	if cfg.Schedule.OpenAt != "09:00" {
		t.Errorf("open = %s, want default", cfg.Schedule.OpenAt)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	content := `
broker:
  app_key: file-key
  app_secret: file-secret
  account_no: "87654321-02"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	t.Setenv("BROKER_APP_KEY", "env-key")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Broker.AppKey != "env-key" {
		t.Errorf("app key = %s, want env override", cfg.Broker.AppKey)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("db host = %s", cfg.Database.Host)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %s", cfg.Logging.Level)
	}
	// Окружение не трогает то, что задано файлом и не переопределено
	if cfg.Broker.AppSecret != "file-secret" {
		t.Errorf("app secret = %s", cfg.Broker.AppSecret)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() with missing file must fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
		ok     bool
	}{
		{name: "valid", mutate: func(cfg *Config) {}, ok: true},
		{
			name:   "missing app key",
			mutate: func(cfg *Config) { cfg.Broker.AppKey = "" },
		},
		{
			name:   "bad account format",
			mutate: func(cfg *Config) { cfg.Broker.AccountNo = "12345678" },
		},
		{
			name:   "zero rate limit",
			mutate: func(cfg *Config) { cfg.Broker.RequestsPerSecond = 0 },
		},
		{
			name:   "thresholds unordered",
			mutate: func(cfg *Config) { cfg.Trading.ExitThreshold = -3 },
		},
		{
			name: "hedge equals exit",
			mutate: func(cfg *Config) {
				cfg.Trading.HedgeThreshold = cfg.Trading.ExitThreshold
			},
		},
		{
			name:   "bad server port",
			mutate: func(cfg *Config) { cfg.Server.Port = 0 },
		},
		{
			name:   "bad db port",
			mutate: func(cfg *Config) { cfg.Database.Port = 99999 },
		},
		{
			name:   "zero tick interval",
			mutate: func(cfg *Config) { cfg.Trading.TickInterval = 0 },
		},
		{
			name:   "zero plan interval",
			mutate: func(cfg *Config) { cfg.Trading.PlanEvery = 0 },
		},
		{
			name:   "zero confirm attempts",
			mutate: func(cfg *Config) { cfg.Trading.ConfirmAttempts = 0 },
		},
		{
			name:   "bad open time",
			mutate: func(cfg *Config) { cfg.Schedule.OpenAt = "25:00" },
		},
		{
			name:   "http webhook",
			mutate: func(cfg *Config) { cfg.Notify.DiscordWebhookURL = "http://insecure.example" },
		},
		{
			name: "https webhook ok",
			mutate: func(cfg *Config) {
				cfg.Notify.DiscordWebhookURL = "https://discord.com/api/webhooks/1/abc"
			},
			ok: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() error = %v, ok = %v", err, tt.ok)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{
		Host: "localhost", Port: 5432,
		User: "trader", Password: "secret",
		Name: "basketarb", SSLMode: "disable",
	}

	dsn := db.DSN()
	want := "host=localhost port=5432 user=trader password=secret dbname=basketarb sslmode=disable"
	if dsn != want {
		t.Errorf("DSN() = %q", dsn)
	}

	if safe := db.DSNWithoutPassword(); strings.Contains(safe, "secret") {
		t.Errorf("DSNWithoutPassword() leaks password: %q", safe)
	}
}

func TestLoadEncryptedSecret(t *testing.T) {
	key := strings.Repeat("k", 32)

	encrypted, err := crypto.Encrypt("decrypted-app-secret", []byte(key))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	t.Setenv("BROKER_APP_KEY", "test-app-key")
	t.Setenv("BROKER_APP_SECRET_ENC", encrypted)
	t.Setenv("BROKER_ACCOUNT_NO", "12345678-01")
	t.Setenv("CONFIG_ENCRYPTION_KEY", key)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Broker.AppSecret != "decrypted-app-secret" {
		t.Errorf("AppSecret = %q, want decrypted value", cfg.Broker.AppSecret)
	}
}

func TestLoadEncryptedSecretWithoutKey(t *testing.T) {
	t.Setenv("BROKER_APP_KEY", "test-app-key")
	t.Setenv("BROKER_APP_SECRET_ENC", "AAAA")
	t.Setenv("BROKER_ACCOUNT_NO", "12345678-01")

	if _, err := Load(""); err == nil {
		t.Error("Load() must fail when the encryption key is missing")
	}
}

func TestLoadPlainSecretWinsOverEncrypted(t *testing.T) {
	t.Setenv("BROKER_APP_KEY", "test-app-key")
	t.Setenv("BROKER_APP_SECRET", "plain-secret")
	t.Setenv("BROKER_APP_SECRET_ENC", "garbage-that-would-fail-to-decrypt")
	t.Setenv("BROKER_ACCOUNT_NO", "12345678-01")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Broker.AppSecret != "plain-secret" {
		t.Errorf("AppSecret = %q, want plain value", cfg.Broker.AppSecret)
	}
}
