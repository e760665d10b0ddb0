package config

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config is the full process configuration, loaded once at startup.
type Config struct {
	AppName    string
	AppVersion string
	Port       string

	QuickBooks QuickBooksConfig
	Records    RecordsConfig
	Worker     WorkerConfig
	Token      TokenConfig
}

// QuickBooksConfig covers the Intuit OAuth app and API endpoints.
type QuickBooksConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Environment  string
	MinorVersion string
}

// RecordsConfig covers the external billing-record store.
type RecordsConfig struct {
	APIBase string
	Token   string
	BaseID  string
	Table   string
}

// WorkerConfig tunes the sync job pool and retry policy.
type WorkerConfig struct {
	Concurrency int
	MaxAttempts int
	RetryDelay  time.Duration
}

// TokenConfig tunes the token lifecycle manager.
type TokenConfig struct {
	CipherSecret string
	CipherSalt   string
	SafetyWindow time.Duration
	LockTTL      time.Duration
	LockWait     time.Duration
	LockPoll     time.Duration
}

// Load reads .env plus environment overrides and validates required secrets.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		log.Printf("[CONFIG] Config file not found, using environment: %v", err)
	}

	viper.BindEnv("qbo.client_id", "QUICKBOOKS_CLIENT_ID")
	viper.BindEnv("qbo.client_secret", "QUICKBOOKS_CLIENT_SECRET")
	viper.BindEnv("qbo.redirect_uri", "QUICKBOOKS_REDIRECT_URI")
	viper.BindEnv("qbo.environment", "QUICKBOOKS_ENVIRONMENT")
	viper.BindEnv("records.api_base", "RECORDS_API_BASE")
	viper.BindEnv("records.token", "RECORDS_TOKEN")
	viper.BindEnv("records.base_id", "RECORDS_BASE_ID")
	viper.BindEnv("records.table", "RECORDS_TABLE")
	viper.BindEnv("token.cipher_secret", "TOKEN_CIPHER_SECRET")
	viper.BindEnv("token.cipher_salt", "TOKEN_CIPHER_SALT")
	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")

	viper.SetDefault("app.name", "billrelay")
	viper.SetDefault("app.version", "1.0")
	viper.SetDefault("port", "8080")
	viper.SetDefault("qbo.environment", "sandbox")
	viper.SetDefault("qbo.minor_version", "65")
	viper.SetDefault("records.table", "Bills")
	viper.SetDefault("worker.concurrency", 4)
	viper.SetDefault("worker.max_attempts", 3)
	viper.SetDefault("worker.retry_delay", 180*time.Second)
	viper.SetDefault("token.safety_window", 300*time.Second)
	viper.SetDefault("token.lock_ttl", 10*time.Second)
	viper.SetDefault("token.lock_wait", 5*time.Second)
	viper.SetDefault("token.lock_poll", 500*time.Millisecond)

	cfg := &Config{
		AppName:    viper.GetString("app.name"),
		AppVersion: viper.GetString("app.version"),
		Port:       viper.GetString("port"),
		QuickBooks: QuickBooksConfig{
			ClientID:     viper.GetString("qbo.client_id"),
			ClientSecret: viper.GetString("qbo.client_secret"),
			RedirectURI:  viper.GetString("qbo.redirect_uri"),
			Environment:  viper.GetString("qbo.environment"),
			MinorVersion: viper.GetString("qbo.minor_version"),
		},
		Records: RecordsConfig{
			APIBase: viper.GetString("records.api_base"),
			Token:   viper.GetString("records.token"),
			BaseID:  viper.GetString("records.base_id"),
			Table:   viper.GetString("records.table"),
		},
		Worker: WorkerConfig{
			Concurrency: viper.GetInt("worker.concurrency"),
			MaxAttempts: viper.GetInt("worker.max_attempts"),
			RetryDelay:  viper.GetDuration("worker.retry_delay"),
		},
		Token: TokenConfig{
			CipherSecret: viper.GetString("token.cipher_secret"),
			CipherSalt:   viper.GetString("token.cipher_salt"),
			SafetyWindow: viper.GetDuration("token.safety_window"),
			LockTTL:      viper.GetDuration("token.lock_ttl"),
			LockWait:     viper.GetDuration("token.lock_wait"),
			LockPoll:     viper.GetDuration("token.lock_poll"),
		},
	}

	if cfg.Token.CipherSecret == "" {
		return nil, errors.New("TOKEN_CIPHER_SECRET is required")
	}
	if cfg.QuickBooks.ClientID == "" || cfg.QuickBooks.ClientSecret == "" {
		return nil, errors.New("QUICKBOOKS_CLIENT_ID and QUICKBOOKS_CLIENT_SECRET are required")
	}

	return cfg, nil
}
