package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"basketarb/pkg/crypto"
	"basketarb/pkg/utils"
)

// Config содержит всю конфигурацию приложения
//
// Источники в порядке приоритета: переменные окружения, YAML файл,
// значения по умолчанию. Секреты (ключи брокера, пароль БД) удобнее
// держать в окружении, расписание и пороги - в файле
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Broker   BrokerConfig   `yaml:"broker"`
	Trading  TradingConfig  `yaml:"trading"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Notify   NotifyConfig   `yaml:"notify"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig - настройки HTTP сервера мониторинга
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// BasicAuthUser/PasswordHash защищают API, пустой user отключает auth
	BasicAuthUser         string `yaml:"basic_auth_user"`
	BasicAuthPasswordHash string `yaml:"basic_auth_password_hash"`
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
}

// BrokerConfig - доступ к брокерскому API
type BrokerConfig struct {
	BaseURL      string `yaml:"base_url"`
	WebsocketURL string `yaml:"websocket_url"`
	AppKey       string `yaml:"app_key"`
	AppSecret    string `yaml:"app_secret"`
	// AppSecretEncrypted - альтернатива AppSecret: секрет, зашифрованный
	// AES-256-GCM (base64). Ключ берётся из CONFIG_ENCRYPTION_KEY
	AppSecretEncrypted string `yaml:"app_secret_encrypted"`
	// AccountNo в формате "XXXXXXXX-XX"
	AccountNo string `yaml:"account_no"`
	// RequestsPerSecond - лимит запросов (боевой контур 20, песочница 2)
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// TradingConfig - параметры стратегии
type TradingConfig struct {
	// Пороги дивергенции (цена ETF минус NAV), должны убывать:
	// EnterThreshold > ExitThreshold > HedgeThreshold
	EnterThreshold float64 `yaml:"enter_threshold"`
	ExitThreshold  float64 `yaml:"exit_threshold"`
	HedgeThreshold float64 `yaml:"hedge_threshold"`

	TickInterval time.Duration `yaml:"tick_interval"`
	PlanEvery    int           `yaml:"plan_every"`

	QuoteMaxAge   time.Duration `yaml:"quote_max_age"`
	HedgeQuantity int           `yaml:"hedge_quantity"`

	SubmitAttempts             int           `yaml:"submit_attempts"`
	SubmitBackoff              time.Duration `yaml:"submit_backoff"`
	ConfirmInterval            time.Duration `yaml:"confirm_interval"`
	ConfirmAttempts            int           `yaml:"confirm_attempts"`
	LiquidationConfirmAttempts int           `yaml:"liquidation_confirm_attempts"`
	PriceAttempts              int           `yaml:"price_attempts"`
	PriceInterval              time.Duration `yaml:"price_interval"`
}

// ScheduleConfig - расписание торговой сессии
type ScheduleConfig struct {
	OpenAt   string `yaml:"open_at"`
	CutoffAt string `yaml:"cutoff_at"`
	Timezone string `yaml:"timezone"`
}

// NotifyConfig - внешние уведомления
type NotifyConfig struct {
	DiscordWebhookURL string `yaml:"discord_webhook_url"`
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     5432,
			Name:     "basketarb",
			User:     "user",
			Password: "password",
			SSLMode:  "disable",
		},
		Broker: BrokerConfig{
			BaseURL:           "https://openapivts.koreainvestment.com:29443",
			WebsocketURL:      "ws://ops.koreainvestment.com:31000",
			RequestsPerSecond: 2,
		},
		Trading: TradingConfig{
			EnterThreshold:             -5,
			ExitThreshold:              -9,
			HedgeThreshold:             -13,
			TickInterval:               time.Second,
			PlanEvery:                  5,
			QuoteMaxAge:                30 * time.Second,
			HedgeQuantity:              1,
			SubmitAttempts:             5,
			SubmitBackoff:              500 * time.Millisecond,
			ConfirmInterval:            time.Second,
			ConfirmAttempts:            60,
			LiquidationConfirmAttempts: 180,
			PriceAttempts:              5,
			PriceInterval:              2200 * time.Millisecond,
		},
		Schedule: ScheduleConfig{
			OpenAt:   "09:00",
			CutoffAt: "15:15",
			Timezone: "Asia/Seoul",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load загружает конфигурацию: умолчания, затем YAML файл (если путь
// не пуст), затем переменные окружения
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.decryptSecrets(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// decryptSecrets расшифровывает секрет брокера, если он задан
// в зашифрованном виде. Открытый AppSecret имеет приоритет
func (c *Config) decryptSecrets() error {
	if c.Broker.AppSecret != "" || c.Broker.AppSecretEncrypted == "" {
		return nil
	}

	key := os.Getenv("CONFIG_ENCRYPTION_KEY")
	if key == "" {
		return fmt.Errorf("broker app secret is encrypted but CONFIG_ENCRYPTION_KEY is not set")
	}

	secret, err := crypto.Decrypt(c.Broker.AppSecretEncrypted, []byte(key))
	if err != nil {
		return fmt.Errorf("decrypt broker app secret: %w", err)
	}

	c.Broker.AppSecret = secret
	return nil
}

// applyEnv накладывает переменные окружения поверх файла
func (c *Config) applyEnv() {
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsInt("SERVER_PORT", c.Server.Port)
	c.Server.BasicAuthUser = getEnv("BASIC_AUTH_USER", c.Server.BasicAuthUser)
	c.Server.BasicAuthPasswordHash = getEnv("BASIC_AUTH_PASSWORD_HASH", c.Server.BasicAuthPasswordHash)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("DB_PORT", c.Database.Port)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.SSLMode = getEnv("DB_SSL_MODE", c.Database.SSLMode)

	c.Broker.BaseURL = getEnv("BROKER_BASE_URL", c.Broker.BaseURL)
	c.Broker.WebsocketURL = getEnv("BROKER_WS_URL", c.Broker.WebsocketURL)
	c.Broker.AppKey = getEnv("BROKER_APP_KEY", c.Broker.AppKey)
	c.Broker.AppSecret = getEnv("BROKER_APP_SECRET", c.Broker.AppSecret)
	c.Broker.AppSecretEncrypted = getEnv("BROKER_APP_SECRET_ENC", c.Broker.AppSecretEncrypted)
	c.Broker.AccountNo = getEnv("BROKER_ACCOUNT_NO", c.Broker.AccountNo)
	c.Broker.RequestsPerSecond = getEnvAsFloat("BROKER_RPS", c.Broker.RequestsPerSecond)

	c.Notify.DiscordWebhookURL = getEnv("DISCORD_WEBHOOK_URL", c.Notify.DiscordWebhookURL)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
}

// Validate проверяет конфигурацию целиком
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("database port must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Broker.AppKey == "" || c.Broker.AppSecret == "" {
		return fmt.Errorf("broker app key and secret are required")
	}
	if err := utils.ValidateAccountNumber(c.Broker.AccountNo); err != nil {
		return fmt.Errorf("broker account: %w", err)
	}
	if c.Broker.RequestsPerSecond <= 0 {
		return fmt.Errorf("broker rate limit must be positive, got %v", c.Broker.RequestsPerSecond)
	}

	t := c.Trading
	// Пороги стоят лесенкой: хедж глубже выхода, выход глубже входа
	if !(t.HedgeThreshold < t.ExitThreshold && t.ExitThreshold < t.EnterThreshold) {
		return fmt.Errorf("thresholds must satisfy hedge < exit < enter, got %v / %v / %v",
			t.HedgeThreshold, t.ExitThreshold, t.EnterThreshold)
	}
	if t.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %v", t.TickInterval)
	}
	if t.PlanEvery < 1 {
		return fmt.Errorf("plan interval must be at least 1 tick, got %d", t.PlanEvery)
	}
	if t.HedgeQuantity < 1 {
		return fmt.Errorf("hedge quantity must be at least 1, got %d", t.HedgeQuantity)
	}
	for name, v := range map[string]int{
		"submit attempts":              t.SubmitAttempts,
		"confirm attempts":             t.ConfirmAttempts,
		"liquidation confirm attempts": t.LiquidationConfirmAttempts,
		"price attempts":               t.PriceAttempts,
	} {
		if v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, v)
		}
	}
	if t.ConfirmInterval <= 0 || t.PriceInterval <= 0 || t.SubmitBackoff <= 0 {
		return fmt.Errorf("retry intervals must be positive")
	}

	if _, _, err := utils.ParseClock(c.Schedule.OpenAt); err != nil {
		return fmt.Errorf("schedule open: %w", err)
	}
	if _, _, err := utils.ParseClock(c.Schedule.CutoffAt); err != nil {
		return fmt.Errorf("schedule cutoff: %w", err)
	}

	if err := utils.ValidateWebhookURL(c.Notify.DiscordWebhookURL); err != nil {
		return fmt.Errorf("notify webhook: %w", err)
	}

	return nil
}

// IsSandbox возвращает true для контура песочницы
// Адреса песочницы содержат "vts" (virtual trading system)
func (b BrokerConfig) IsSandbox() bool {
	return strings.Contains(b.BaseURL, "vts")
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
