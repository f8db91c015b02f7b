package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvPrefix is prepended to every environment variable the server reads.
const EnvPrefix = "PASSVAULT_"

var lookupEnv = os.LookupEnv

// parseEnv overlays PASSVAULT_* variables onto config. Unset variables are
// ignored; a set but unparsable value is an error.
func parseEnv(config *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"HTTP_ADDR":        &config.HTTPAddr,
		"GRPC_HEALTH_ADDR": &config.GRPCHealthAddr,
		"DATABASE_DSN":     &config.DatabaseDSN,
		"LOG_LEVEL":        &config.LogLevel,
		"SECRET_KEY":       &config.SecretKey,
		"ENCRYPTION_KEY":   &config.EncryptionKey,
		"CLIENT_URL":       &config.ClientURL,
		"SMTP_HOST":        &config.SMTPHost,
		"SMTP_USER":        &config.SMTPUser,
		"SMTP_PASSWORD":    &config.SMTPPassword,
		"MAIL_FROM":        &config.MailFrom,
		"RATE_LIMIT_STORE": &config.RateLimitStore,
		"REDIS_ADDR":       &config.RedisAddr,
		"REDIS_PASSWORD":   &config.RedisPassword,
		"S3_ROOT_USER":     &config.S3RootUser,
		"S3_ROOT_PASSWORD": &config.S3RootPassword,
		"S3_BUCKET":        &config.S3Bucket,
		"S3_REGION":        &config.S3Region,
		"S3_BASE_ENDPOINT": &config.S3BaseEndpoint,
	}
	ints := map[string]*int{
		"SMTP_PORT":                  &config.SMTPPort,
		"RATE_LIMIT_PER_MINUTE":      &config.RateLimitPerMinute,
		"AUTH_RATE_LIMIT_PER_MINUTE": &config.AuthRateLimitPerMinute,
		"REDIS_DB":                   &config.RedisDB,
	}
	bools := map[string]*bool{
		"COOKIE_SECURE":      &config.CookieSecure,
		"RATE_LIMIT_ENABLED": &config.RateLimitEnabled,
	}
	durations := map[string]*time.Duration{
		"REQUEST_TIMEOUT":            &config.RequestTimeout,
		"SHUTDOWN_TIMEOUT":           &config.ShutdownTimeout,
		"SESSION_VALIDITY":           &config.SessionValidity,
		"VERIFICATION_CODE_VALIDITY": &config.VerificationCodeValidity,
		"PASSWORD_RESET_VALIDITY":    &config.PasswordResetValidity,
		"PRESIGN_VALIDITY":           &config.PresignValidity,
	}

	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	for name, dst := range ints {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
	}
	for name, dst := range bools {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
	}
	for name, dst := range durations {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}
	return nil
}
