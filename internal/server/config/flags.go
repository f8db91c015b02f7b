package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/passvault/internal/flagx"
)

var serverFlags = []string{
	"-a", "-g", "-d", "-s", "-k", "-t", "-l",
	"-client-url", "-rate-store", "-redis",
	"-u", "-p", "-b", "-region", "-e",
	"-prompt-key",
}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string          HTTP bind address (e.g. ":8080")
//	-g string          gRPC health bind address (e.g. ":50051")
//	-d string          PostgreSQL DSN
//	-s string          session token HMAC secret
//	-k string          vault encryption key
//	-t int             session validity, minutes
//	-l string          log level (debug, info, warn, error)
//	-client-url string base URL used in password reset links
//	-rate-store string rate limiter store (memory, redis)
//	-redis string      Redis address for the redis rate limiter
//	-u string          S3 root user
//	-p string          S3 root password
//	-b string          S3 bucket name
//	-region string     S3 region
//	-e string          S3 base endpoint (e.g. "http://127.0.0.1:9000/")
//	-prompt-key        read the encryption key from the terminal
//
// os.Args is first filtered with flagx.FilterArgs so -c/-config and flags
// meant for other components do not make parsing fail.
func parseFlags(config *Config) error {
	return parseArgs(config, os.Args[1:])
}

func parseArgs(config *Config, osArgs []string) error {
	args := flagx.FilterArgs(osArgs, serverFlags, "-prompt-key")

	fs := flag.NewFlagSet("passvault", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCHealthAddr, "g", config.GRPCHealthAddr, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "session token secret")
	fs.StringVar(&config.EncryptionKey, "k", config.EncryptionKey, "vault encryption key")
	sessionMinutes := fs.Int("t", int(config.SessionValidity.Minutes()), "session validity (in minutes)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.ClientURL, "client-url", config.ClientURL, "client base URL")
	fs.StringVar(&config.RateLimitStore, "rate-store", config.RateLimitStore, "rate limiter store")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "Redis address")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "region", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.BoolVar(&config.PromptKey, "prompt-key", config.PromptKey, "prompt for the encryption key")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.SessionValidity = time.Duration(*sessionMinutes) * time.Minute
	return nil
}
