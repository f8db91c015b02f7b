package models

import (
	"time"

	"github.com/dmitrijs2005/passvault/internal/cryptox"
)

// Entry is a stored vault credential. Secret always holds the
// "hex(iv):hex(ciphertext)" envelope, both in the database and in memory;
// the plaintext only exists in the return value of DecryptedSecret.
type Entry struct {
	ID        string
	UserID    string
	Name      string
	Website   string
	Username  string
	Secret    string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SealSecret encrypts plaintext under key with a fresh nonce and stores the
// resulting envelope in Secret. Callers run it before every write that
// carries a new secret; the previous envelope is discarded.
func (e *Entry) SealSecret(plaintext string, key []byte) error {
	envelope, err := cryptox.EncryptField(plaintext, key)
	if err != nil {
		return err
	}
	e.Secret = envelope
	return nil
}

// DecryptedSecret returns the plaintext of the stored envelope. The entry
// itself is left untouched.
func (e *Entry) DecryptedSecret(key []byte) (string, error) {
	return cryptox.DecryptField(e.Secret, key)
}

// Summary returns the secret-free view of the entry.
func (e *Entry) Summary() *EntrySummary {
	return &EntrySummary{
		ID:        e.ID,
		Name:      e.Name,
		Website:   e.Website,
		Username:  e.Username,
		Notes:     e.Notes,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// EntrySummary is what create, list and update return. It has no secret
// field at all.
type EntrySummary struct {
	ID        string
	Name      string
	Website   string
	Username  string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RevealedEntry is the single-entry view that carries the decrypted secret.
type RevealedEntry struct {
	EntrySummary
	Secret string
}

// EntryInput holds the fields of a new entry.
type EntryInput struct {
	Name     string
	Website  string
	Username string
	Secret   string
	Notes    string
}

// EntryPatch is a partial update. A nil field is left unchanged.
//
// Name, Username and Secret treat an empty string as "no change";
// Website and Notes treat it as "clear".
type EntryPatch struct {
	Name     *string
	Website  *string
	Username *string
	Secret   *string
	Notes    *string
}
