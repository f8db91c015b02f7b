package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Test seams for the terminal.
var (
	isTerminal   = term.IsTerminal
	readPassword = term.ReadPassword
)

// ErrNoTerminal is returned when -prompt-key is set but stdin is not a terminal.
var ErrNoTerminal = errors.New("encryption key prompt requires a terminal")

// PromptEncryptionKey reads the encryption key from in without echo when
// PromptKey is set. It is a no-op otherwise.
func (c *Config) PromptEncryptionKey(in *os.File, out io.Writer) error {
	if !c.PromptKey {
		return nil
	}

	fd := int(in.Fd())
	if !isTerminal(fd) {
		return ErrNoTerminal
	}

	if _, err := fmt.Fprint(out, "Encryption key: "); err != nil {
		return err
	}
	key, err := readPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("read encryption key: %w", err)
	}
	if len(key) == 0 {
		return errors.New("encryption key must not be empty")
	}

	c.EncryptionKey = string(key)
	return nil
}
