package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/passvault/internal/flagx"
	"github.com/dmitrijs2005/passvault/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk form of Config. Duration fields use
// timex.Duration so files may say "15m" or give integer nanoseconds.
// Keys missing from the file keep whatever value the Config already had.
type FileConfig struct {
	HTTPAddr        string         `json:"http_addr" yaml:"http_addr"`
	GRPCHealthAddr  string         `json:"grpc_health_addr" yaml:"grpc_health_addr"`
	DatabaseDSN     string         `json:"database_dsn" yaml:"database_dsn"`
	LogLevel        string         `json:"log_level" yaml:"log_level"`
	RequestTimeout  timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`

	SecretKey                string         `json:"secret_key" yaml:"secret_key"`
	EncryptionKey            string         `json:"encryption_key" yaml:"encryption_key"`
	SessionValidity          timex.Duration `json:"session_validity" yaml:"session_validity"`
	VerificationCodeValidity timex.Duration `json:"verification_code_validity" yaml:"verification_code_validity"`
	PasswordResetValidity    timex.Duration `json:"password_reset_validity" yaml:"password_reset_validity"`
	ClientURL                string         `json:"client_url" yaml:"client_url"`
	CookieSecure             bool           `json:"cookie_secure" yaml:"cookie_secure"`

	SMTPHost     string `json:"smtp_host" yaml:"smtp_host"`
	SMTPPort     int    `json:"smtp_port" yaml:"smtp_port"`
	SMTPUser     string `json:"smtp_user" yaml:"smtp_user"`
	SMTPPassword string `json:"smtp_password" yaml:"smtp_password"`
	MailFrom     string `json:"mail_from" yaml:"mail_from"`

	RateLimitEnabled       bool   `json:"rate_limit_enabled" yaml:"rate_limit_enabled"`
	RateLimitPerMinute     int    `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	AuthRateLimitPerMinute int    `json:"auth_rate_limit_per_minute" yaml:"auth_rate_limit_per_minute"`
	RateLimitStore         string `json:"rate_limit_store" yaml:"rate_limit_store"`
	RedisAddr              string `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword          string `json:"redis_password" yaml:"redis_password"`
	RedisDB                int    `json:"redis_db" yaml:"redis_db"`

	S3RootUser      string         `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword  string         `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket        string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region        string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint  string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	PresignValidity timex.Duration `json:"presign_validity" yaml:"presign_validity"`
}

func newFileConfig(c *Config) *FileConfig {
	return &FileConfig{
		HTTPAddr:        c.HTTPAddr,
		GRPCHealthAddr:  c.GRPCHealthAddr,
		DatabaseDSN:     c.DatabaseDSN,
		LogLevel:        c.LogLevel,
		RequestTimeout:  timex.Duration{Duration: c.RequestTimeout},
		ShutdownTimeout: timex.Duration{Duration: c.ShutdownTimeout},

		SecretKey:                c.SecretKey,
		EncryptionKey:            c.EncryptionKey,
		SessionValidity:          timex.Duration{Duration: c.SessionValidity},
		VerificationCodeValidity: timex.Duration{Duration: c.VerificationCodeValidity},
		PasswordResetValidity:    timex.Duration{Duration: c.PasswordResetValidity},
		ClientURL:                c.ClientURL,
		CookieSecure:             c.CookieSecure,

		SMTPHost:     c.SMTPHost,
		SMTPPort:     c.SMTPPort,
		SMTPUser:     c.SMTPUser,
		SMTPPassword: c.SMTPPassword,
		MailFrom:     c.MailFrom,

		RateLimitEnabled:       c.RateLimitEnabled,
		RateLimitPerMinute:     c.RateLimitPerMinute,
		AuthRateLimitPerMinute: c.AuthRateLimitPerMinute,
		RateLimitStore:         c.RateLimitStore,
		RedisAddr:              c.RedisAddr,
		RedisPassword:          c.RedisPassword,
		RedisDB:                c.RedisDB,

		S3RootUser:      c.S3RootUser,
		S3RootPassword:  c.S3RootPassword,
		S3Bucket:        c.S3Bucket,
		S3Region:        c.S3Region,
		S3BaseEndpoint:  c.S3BaseEndpoint,
		PresignValidity: timex.Duration{Duration: c.PresignValidity},
	}
}

func (f *FileConfig) apply(c *Config) {
	c.HTTPAddr = f.HTTPAddr
	c.GRPCHealthAddr = f.GRPCHealthAddr
	c.DatabaseDSN = f.DatabaseDSN
	c.LogLevel = f.LogLevel
	c.RequestTimeout = f.RequestTimeout.Duration
	c.ShutdownTimeout = f.ShutdownTimeout.Duration

	c.SecretKey = f.SecretKey
	c.EncryptionKey = f.EncryptionKey
	c.SessionValidity = f.SessionValidity.Duration
	c.VerificationCodeValidity = f.VerificationCodeValidity.Duration
	c.PasswordResetValidity = f.PasswordResetValidity.Duration
	c.ClientURL = f.ClientURL
	c.CookieSecure = f.CookieSecure

	c.SMTPHost = f.SMTPHost
	c.SMTPPort = f.SMTPPort
	c.SMTPUser = f.SMTPUser
	c.SMTPPassword = f.SMTPPassword
	c.MailFrom = f.MailFrom

	c.RateLimitEnabled = f.RateLimitEnabled
	c.RateLimitPerMinute = f.RateLimitPerMinute
	c.AuthRateLimitPerMinute = f.AuthRateLimitPerMinute
	c.RateLimitStore = f.RateLimitStore
	c.RedisAddr = f.RedisAddr
	c.RedisPassword = f.RedisPassword
	c.RedisDB = f.RedisDB

	c.S3RootUser = f.S3RootUser
	c.S3RootPassword = f.S3RootPassword
	c.S3Bucket = f.S3Bucket
	c.S3Region = f.S3Region
	c.S3BaseEndpoint = f.S3BaseEndpoint
	c.PresignValidity = f.PresignValidity.Duration
}

// parseFile overlays the file named by -c/-config onto config. Files ending
// in .yaml or .yml are decoded as YAML, everything else as JSON. Without
// the flag nothing is loaded.
func parseFile(config *Config) error {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return nil
	}
	return loadFile(config, path)
}

func loadFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := newFileConfig(config)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	fc.apply(config)
	return nil
}
