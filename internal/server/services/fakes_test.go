package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/dbx"
	"github.com/dmitrijs2005/passvault/internal/server/mail"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/entries"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/exports"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/tokens"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/users"
	"github.com/google/uuid"
)

// fakeStore is an in-memory stand-in for the database behind every
// repository. fail maps a method name ("Entries.Create") to the error it
// should return.
type fakeStore struct {
	mu      sync.Mutex
	clock   time.Time
	users   map[string]*models.User
	tokens  []*models.UserToken
	entries map[string]*models.Entry
	exports map[string]*models.Export
	fail    map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		users:   map[string]*models.User{},
		entries: map[string]*models.Entry{},
		exports: map[string]*models.Export{},
		fail:    map[string]error{},
	}
}

// tick returns strictly increasing timestamps so ordering is deterministic.
func (s *fakeStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *fakeStore) RunMigrations(context.Context, *sql.DB) error { return nil }
func (s *fakeStore) Users(dbx.DBTX) users.Repository              { return fakeUsers{s} }
func (s *fakeStore) Tokens(dbx.DBTX) tokens.Repository            { return fakeTokens{s} }
func (s *fakeStore) Entries(dbx.DBTX) entries.Repository          { return fakeEntries{s} }
func (s *fakeStore) Exports(dbx.DBTX) exports.Repository          { return fakeExports{s} }

// --- users ---

type fakeUsers struct{ s *fakeStore }

func (f fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail["Users.Create"]; err != nil {
		return nil, err
	}
	for _, existing := range f.s.users {
		if existing.Email == u.Email {
			return nil, common.ErrAlreadyExists
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = f.s.tick()
	u.UpdatedAt = u.CreatedAt
	u.LastLogin = u.CreatedAt
	cp := *u
	f.s.users[u.ID] = &cp
	return u, nil
}

func (f fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail["Users.GetByEmail"]; err != nil {
		return nil, err
	}
	for _, u := range f.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail["Users.GetByID"]; err != nil {
		return nil, err
	}
	u, ok := f.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f fakeUsers) update(name, id string, fn func(*models.User)) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail["Users."+name]; err != nil {
		return err
	}
	u, ok := f.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(u)
	u.UpdatedAt = f.s.tick()
	return nil
}

func (f fakeUsers) UpdateLastLogin(_ context.Context, id string) error {
	return f.update("UpdateLastLogin", id, func(u *models.User) { u.LastLogin = f.s.clock })
}

func (f fakeUsers) MarkVerified(_ context.Context, id string) error {
	return f.update("MarkVerified", id, func(u *models.User) { u.IsVerified = true })
}

func (f fakeUsers) UpdatePassword(_ context.Context, id string, hash []byte) error {
	return f.update("UpdatePassword", id, func(u *models.User) { u.PasswordHash = hash })
}

// --- tokens ---

type fakeTokens struct{ s *fakeStore }

func (f fakeTokens) Create(_ context.Context, userID string, kind models.TokenKind, token string, validity time.Duration) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail["Tokens.Create"]; err != nil {
		return err
	}
	f.s.tokens = append(f.s.tokens, &models.UserToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Token:     token,
		Expires:   time.Now().Add(validity),
		CreatedAt: f.s.tick(),
	})
	return nil
}

func (f fakeTokens) Find(_ context.Context, kind models.TokenKind, token string) (*models.UserToken, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail["Tokens.Find"]; err != nil {
		return nil, err
	}
	for _, t := range f.s.tokens {
		if t.Kind == kind && t.Token == token {
			cp := *t
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f fakeTokens) Delete(_ context.Context, kind models.TokenKind, token string) error {
	return f.remove(func(t *models.UserToken) bool { return t.Kind == kind && t.Token == token })
}

func (f fakeTokens) DeleteByUser(_ context.Context, userID string, kind models.TokenKind) error {
	return f.remove(func(t *models.UserToken) bool { return t.Kind == kind && t.UserID == userID })
}

func (f fakeTokens) remove(match func(*models.UserToken) bool) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail["Tokens.Delete"]; err != nil {
		return err
	}
	kept := f.s.tokens[:0]
	for _, t := range f.s.tokens {
		if !match(t) {
			kept = append(kept, t)
		}
	}
	f.s.tokens = kept
	return nil
}

// tokensOf returns the stored tokens of a kind for a user.
func (s *fakeStore) tokensOf(userID string, kind models.TokenKind) []*models.UserToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.UserToken
	for _, t := range s.tokens {
		if t.UserID == userID && t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// --- entries ---

type fakeEntries struct{ s *fakeStore }

func (f fakeEntries) Create(_ context.Context, e *models.Entry) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail["Entries.Create"]; err != nil {
		return err
	}
	e.ID = uuid.NewString()
	e.CreatedAt = f.s.tick()
	e.UpdatedAt = e.CreatedAt
	cp := *e
	f.s.entries[e.ID] = &cp
	return nil
}

func (f fakeEntries) list(userID string, withSecret bool) []*models.Entry {
	var out []*models.Entry
	for _, e := range f.s.entries {
		if e.UserID != userID {
			continue
		}
		cp := *e
		if !withSecret {
			cp.Secret = ""
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f fakeEntries) ListByOwner(_ context.Context, userID string) ([]*models.Entry, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail["Entries.ListByOwner"]; err != nil {
		return nil, err
	}
	return f.list(userID, false), nil
}

func (f fakeEntries) ListSealedByOwner(_ context.Context, userID string) ([]*models.Entry, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail["Entries.ListSealedByOwner"]; err != nil {
		return nil, err
	}
	return f.list(userID, true), nil
}

func (f fakeEntries) GetByOwner(_ context.Context, userID, id string) (*models.Entry, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail["Entries.GetByOwner"]; err != nil {
		return nil, err
	}
	e, ok := f.s.entries[id]
	if !ok || e.UserID != userID {
		return nil, common.ErrorNotFound
	}
	cp := *e
	return &cp, nil
}

func (f fakeEntries) Update(_ context.Context, e *models.Entry) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail["Entries.Update"]; err != nil {
		return err
	}
	stored, ok := f.s.entries[e.ID]
	if !ok || stored.UserID != e.UserID {
		return common.ErrorNotFound
	}
	e.UpdatedAt = f.s.tick()
	cp := *e
	f.s.entries[e.ID] = &cp
	return nil
}

func (f fakeEntries) DeleteByOwner(_ context.Context, userID, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail["Entries.DeleteByOwner"]; err != nil {
		return err
	}
	e, ok := f.s.entries[id]
	if !ok || e.UserID != userID {
		return common.ErrorNotFound
	}
	delete(f.s.entries, id)
	return nil
}

// stored returns the raw row, envelope included.
func (s *fakeStore) stored(id string) *models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		cp := *e
		return &cp
	}
	return nil
}

// --- exports ---

type fakeExports struct{ s *fakeStore }

func (f fakeExports) Create(_ context.Context, e *models.Export) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail["Exports.Create"]; err != nil {
		return err
	}
	e.ID = uuid.NewString()
	e.Status = models.ExportStatusPending
	e.CreatedAt = f.s.tick()
	cp := *e
	f.s.exports[e.ID] = &cp
	return nil
}

func (f fakeExports) MarkUploaded(_ context.Context, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail["Exports.MarkUploaded"]; err != nil {
		return err
	}
	e, ok := f.s.exports[id]
	if !ok {
		return common.ErrorNotFound
	}
	e.Status = models.ExportStatusCompleted
	return nil
}

func (f fakeExports) ListByUser(_ context.Context, userID string) ([]*models.Export, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail["Exports.ListByUser"]; err != nil {
		return nil, err
	}
	var out []*models.Export
	for _, e := range f.s.exports {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- mail ---

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, msg := range m.sent {
		out = append(out, msg.Subject)
	}
	return out
}
