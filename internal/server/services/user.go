// Package services contains server-side business logic: account
// authentication (UserService), the encrypted vault (EntryService) and
// vault archives in object storage (ExportService).
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/dbx"
	"github.com/dmitrijs2005/passvault/internal/logging"
	"github.com/dmitrijs2005/passvault/internal/server/auth"
	"github.com/dmitrijs2005/passvault/internal/server/config"
	"github.com/dmitrijs2005/passvault/internal/server/mail"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/dmitrijs2005/passvault/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost          = 10
	verificationDigits  = 6
	resetTokenBytes     = 20
	resetPasswordPrefix = "/reset-password/"
)

// Session is a signed-in user together with the session token to hand out.
type Session struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// UserService provides the account flows: signup with email verification,
// login, password reset and session checks.
type UserService struct {
	db                   *sql.DB
	repomanager          repomanager.RepositoryManager
	mailer               mail.Mailer
	log                  logging.Logger
	jwtSecret            []byte
	sessionValidity      time.Duration
	verificationValidity time.Duration
	resetValidity        time.Duration
	clientURL            string
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, mailer mail.Mailer, cfg *config.Config, log logging.Logger) *UserService {
	return &UserService{
		db:                   db,
		repomanager:          m,
		mailer:               mailer,
		log:                  log.With("module", "users"),
		jwtSecret:            []byte(cfg.SecretKey),
		sessionValidity:      cfg.SessionValidity,
		verificationValidity: cfg.VerificationCodeValidity,
		resetValidity:        cfg.PasswordResetValidity,
		clientURL:            strings.TrimRight(cfg.ClientURL, "/"),
	}
}

// Signup creates an unverified account, stores a verification code and
// mails it. The new user is signed in right away.
func (s *UserService) Signup(ctx context.Context, email, password, name string) (*Session, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)

	var missing []string
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if name == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return nil, common.NewValidationError("All fields are required", missing...)
	}
	if !strings.Contains(email, "@") {
		return nil, common.NewValidationError("Please enter a valid email address", "email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %v", common.ErrorInternal, err)
	}
	code, err := common.MakeNumericCode(verificationDigits)
	if err != nil {
		return nil, fmt.Errorf("%w: verification code: %v", common.ErrorInternal, err)
	}

	user := &models.User{Email: email, Name: name, PasswordHash: hash}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Users(tx).Create(ctx, user); err != nil {
			return err
		}
		return s.repomanager.Tokens(tx).Create(ctx, user.ID, models.TokenKindVerification, code, s.verificationValidity)
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("%w: create user: %v", common.ErrPersistence, err)
	}

	s.send(ctx, user.ID, func() (mail.Message, error) { return mail.VerificationEmail(user.Email, code) })
	s.log.Info(ctx, "user signed up", "user_id", user.ID)

	return s.newSession(user)
}

// VerifyEmail marks the owner of a valid, unexpired code as verified and
// consumes the code.
func (s *UserService) VerifyEmail(ctx context.Context, code string) (*models.User, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, common.ErrInvalidToken
	}

	token, err := s.findToken(ctx, models.TokenKindVerification, code)
	if err != nil {
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).MarkVerified(ctx, token.UserID); err != nil {
			return err
		}
		return s.repomanager.Tokens(tx).DeleteByUser(ctx, token.UserID, models.TokenKindVerification)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("%w: verify email: %v", common.ErrPersistence, err)
	}

	user, err := s.CheckAuth(ctx, token.UserID)
	if err != nil {
		return nil, err
	}

	s.send(ctx, user.ID, func() (mail.Message, error) { return mail.WelcomeEmail(user.Email, user.Name) })
	s.log.Info(ctx, "email verified", "user_id", user.ID)
	return user, nil
}

// Login checks credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("%w: find user: %v", common.ErrPersistence, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		s.log.Warn(ctx, "failed login", "user_id", user.ID)
		return nil, common.ErrorUnauthorized
	}

	if err := repo.UpdateLastLogin(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("%w: update last login: %v", common.ErrPersistence, err)
	}
	user.LastLogin = time.Now()

	s.log.Info(ctx, "user logged in", "user_id", user.ID)
	return s.newSession(user)
}

// ForgotPassword issues a reset token for the account and mails the link.
// Earlier reset tokens of the same user are revoked.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return common.NewValidationError("Please enter a valid email address", "email")
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("%w: find user: %v", common.ErrPersistence, err)
	}

	token, err := common.MakeRandHexString(resetTokenBytes)
	if err != nil {
		return fmt.Errorf("%w: reset token: %v", common.ErrorInternal, err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Tokens(tx)
		if err := repo.DeleteByUser(ctx, user.ID, models.TokenKindPasswordReset); err != nil {
			return err
		}
		return repo.Create(ctx, user.ID, models.TokenKindPasswordReset, token, s.resetValidity)
	})
	if err != nil {
		return fmt.Errorf("%w: store reset token: %v", common.ErrPersistence, err)
	}

	msg, err := mail.ResetRequestEmail(user.Email, s.clientURL+resetPasswordPrefix+token)
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		s.log.Error(ctx, "failed to send password reset email", "user_id", user.ID, "error", err)
		return fmt.Errorf("%w: send reset email: %v", common.ErrorInternal, err)
	}

	s.log.Info(ctx, "password reset requested", "user_id", user.ID)
	return nil
}

// ResetPassword sets a new password for the owner of a valid, unexpired
// reset token. All of the user's reset tokens are consumed.
func (s *UserService) ResetPassword(ctx context.Context, token, password string) error {
	if password == "" {
		return common.NewValidationError("Password is required", "password")
	}

	t, err := s.findToken(ctx, models.TokenKindPasswordReset, token)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("%w: hash password: %v", common.ErrorInternal, err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdatePassword(ctx, t.UserID, hash); err != nil {
			return err
		}
		return s.repomanager.Tokens(tx).DeleteByUser(ctx, t.UserID, models.TokenKindPasswordReset)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidToken
		}
		return fmt.Errorf("%w: reset password: %v", common.ErrPersistence, err)
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, t.UserID)
	if err == nil {
		s.send(ctx, user.ID, func() (mail.Message, error) { return mail.ResetSuccessEmail(user.Email) })
	}

	s.log.Info(ctx, "password reset", "user_id", t.UserID)
	return nil
}

// CheckAuth returns the user behind a session.
func (s *UserService) CheckAuth(ctx context.Context, userID string) (*models.User, error) {
	if !validID(userID) {
		return nil, common.ErrorNotFound
	}
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: find user: %v", common.ErrPersistence, err)
	}
	return user, nil
}

// findToken returns the unexpired token of the given kind. Expired tokens
// are removed on sight.
func (s *UserService) findToken(ctx context.Context, kind models.TokenKind, value string) (*models.UserToken, error) {
	if value == "" {
		return nil, common.ErrInvalidToken
	}
	t, err := s.repomanager.Tokens(s.db).Find(ctx, kind, value)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("%w: find token: %v", common.ErrPersistence, err)
	}
	if !t.Expires.After(time.Now()) {
		if err := s.repomanager.Tokens(s.db).Delete(ctx, kind, value); err != nil {
			s.log.Warn(ctx, "failed to delete expired token", "user_id", t.UserID, "error", err)
		}
		return nil, common.ErrInvalidToken
	}
	return t, nil
}

func (s *UserService) newSession(user *models.User) (*Session, error) {
	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.sessionValidity)
	if err != nil {
		return nil, fmt.Errorf("%w: sign session: %v", common.ErrorInternal, err)
	}
	return &Session{User: user, Token: token, ExpiresAt: time.Now().Add(s.sessionValidity)}, nil
}

// send delivers a notification email. Failures are logged, not returned:
// the account change they report has already been committed.
func (s *UserService) send(ctx context.Context, userID string, build func() (mail.Message, error)) {
	msg, err := build()
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		s.log.Error(ctx, "failed to send email", "user_id", userID, "error", err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
