package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/logging"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// EntryService is the vault: owner-scoped CRUD over encrypted entries.
//
// Secrets are sealed explicitly before every write that carries one, and
// only Reveal ever decrypts. Everything else returns EntrySummary values,
// which have no secret field.
type EntryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	key         []byte
	log         logging.Logger
}

// NewEntryService builds the vault service. key must be the 32-byte output
// of cryptox.DeriveKey.
func NewEntryService(db *sql.DB, m repomanager.RepositoryManager, key []byte, log logging.Logger) *EntryService {
	return &EntryService{
		db:          db,
		repomanager: m,
		key:         key,
		log:         log.With("module", "entries"),
	}
}

// Create validates input, seals the secret and stores a new entry for ownerID.
func (s *EntryService) Create(ctx context.Context, ownerID string, in models.EntryInput) (*models.EntrySummary, error) {
	entry := &models.Entry{
		UserID:   ownerID,
		Name:     strings.TrimSpace(in.Name),
		Website:  strings.TrimSpace(in.Website),
		Username: strings.TrimSpace(in.Username),
		Notes:    strings.TrimSpace(in.Notes),
	}

	var missing []string
	if entry.Name == "" {
		missing = append(missing, "name")
	}
	if entry.Username == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(in.Secret) == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, common.NewValidationError("Name, username, and password are required", missing...)
	}

	if err := entry.SealSecret(in.Secret, s.key); err != nil {
		return nil, fmt.Errorf("%w: seal secret: %v", common.ErrorInternal, err)
	}

	if err := s.repomanager.Entries(s.db).Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("%w: create entry: %v", common.ErrPersistence, err)
	}

	s.log.Info(ctx, "entry created", "entry_id", entry.ID, "owner_id", ownerID)
	return entry.Summary(), nil
}

// List returns the owner's entries, newest first, without secrets.
func (s *EntryService) List(ctx context.Context, ownerID string) ([]*models.EntrySummary, error) {
	items, err := s.repomanager.Entries(s.db).ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list entries: %v", common.ErrPersistence, err)
	}

	result := make([]*models.EntrySummary, 0, len(items))
	for _, e := range items {
		result = append(result, e.Summary())
	}
	return result, nil
}

// Reveal returns one entry with its decrypted secret. A missing entry and
// one owned by someone else both yield common.ErrorNotFound.
func (s *EntryService) Reveal(ctx context.Context, ownerID, id string) (*models.RevealedEntry, error) {
	entry, err := s.get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	secret, err := entry.DecryptedSecret(s.key)
	if err != nil {
		s.log.Error(ctx, "failed to decrypt entry secret", "entry_id", entry.ID, "error", err)
		return nil, common.ErrDecryptionUnavailable
	}

	return &models.RevealedEntry{EntrySummary: *entry.Summary(), Secret: secret}, nil
}

// Update applies patch to the owner's entry. See models.EntryPatch for the
// meaning of empty values. A non-empty secret is re-sealed with a fresh nonce;
// otherwise the stored envelope is written back untouched.
func (s *EntryService) Update(ctx context.Context, ownerID, id string, patch models.EntryPatch) (*models.EntrySummary, error) {
	entry, err := s.get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		if v := strings.TrimSpace(*patch.Name); v != "" {
			entry.Name = v
		}
	}
	if patch.Username != nil {
		if v := strings.TrimSpace(*patch.Username); v != "" {
			entry.Username = v
		}
	}
	if patch.Website != nil {
		entry.Website = strings.TrimSpace(*patch.Website)
	}
	if patch.Notes != nil {
		entry.Notes = strings.TrimSpace(*patch.Notes)
	}
	if patch.Secret != nil && *patch.Secret != "" {
		if err := entry.SealSecret(*patch.Secret, s.key); err != nil {
			return nil, fmt.Errorf("%w: seal secret: %v", common.ErrorInternal, err)
		}
	}

	if err := s.repomanager.Entries(s.db).Update(ctx, entry); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: update entry: %v", common.ErrPersistence, err)
	}

	s.log.Info(ctx, "entry updated", "entry_id", entry.ID, "owner_id", ownerID)
	return entry.Summary(), nil
}

// Delete removes the owner's entry.
func (s *EntryService) Delete(ctx context.Context, ownerID, id string) error {
	if !validID(id) {
		return common.ErrorNotFound
	}
	if err := s.repomanager.Entries(s.db).DeleteByOwner(ctx, ownerID, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("%w: delete entry: %v", common.ErrPersistence, err)
	}

	s.log.Info(ctx, "entry deleted", "entry_id", id, "owner_id", ownerID)
	return nil
}

func (s *EntryService) get(ctx context.Context, ownerID, id string) (*models.Entry, error) {
	if !validID(id) {
		return nil, common.ErrorNotFound
	}
	entry, err := s.repomanager.Entries(s.db).GetByOwner(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: get entry: %v", common.ErrPersistence, err)
	}
	return entry, nil
}

// validID filters out ids the uuid column would reject, so malformed ids
// read as "not found" instead of a database error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
