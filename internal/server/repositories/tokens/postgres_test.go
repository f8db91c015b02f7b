package tokens

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const (
	insertQ = `(?s)^\s*INSERT\s+INTO\s+user_tokens\s*\(user_id,\s*kind,\s*token,\s*expires_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*$`
	findQ   = `(?s)^\s*SELECT\s+id,\s*user_id,\s*expires_at,\s*created_at\s+FROM\s+user_tokens\s+WHERE\s+kind\s*=\s*\$1\s+AND\s+token\s*=\s*\$2\s*$`
	deleteQ = `(?s)^\s*DELETE\s+FROM\s+user_tokens\s+WHERE\s+kind\s*=\s*\$1\s+AND\s+token\s*=\s*\$2\s*$`
	byUserQ = `(?s)^\s*DELETE\s+FROM\s+user_tokens\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+kind\s*=\s*\$2\s*$`
)

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertQ).
		WithArgs("u1", "verification", "123456", sqlmock.AnyArg()). // expires_at = time.Now().Add(validity)
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), "u1", models.TokenKindVerification, "123456", 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertQ).
		WithArgs("u1", "password_reset", "abc", sqlmock.AnyArg()).
		WillReturnError(errors.New("insert failed"))

	err := repo.Create(context.Background(), "u1", models.TokenKindPasswordReset, "abc", time.Hour)
	if err == nil || !regexp.MustCompile(`db error: .*insert failed`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFind_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	expires := time.Now().Add(10 * time.Minute)
	created := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "expires_at", "created_at"}).
		AddRow("t1", "u1", expires, created)

	mock.ExpectQuery(findQ).
		WithArgs("password_reset", "tok123").
		WillReturnRows(rows)

	got, err := repo.Find(context.Background(), models.TokenKindPasswordReset, "tok123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "t1" || got.UserID != "u1" || !got.Expires.Equal(expires) {
		t.Fatalf("unexpected row: %+v", got)
	}
	if got.Kind != models.TokenKindPasswordReset || got.Token != "tok123" {
		t.Fatalf("kind/token not carried over: %+v", got)
	}
}

func TestFind_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(findQ).
		WithArgs("verification", "missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), models.TokenKindVerification, "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestFind_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(findQ).
		WithArgs("verification", "123456").
		WillReturnError(errors.New("db err"))

	_, err := repo.Find(context.Background(), models.TokenKindVerification, "123456")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestDelete_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(deleteQ).
		WithArgs("verification", "123456").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), models.TokenKindVerification, "123456"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDelete_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(deleteQ).
		WithArgs("verification", "123456").
		WillReturnError(errors.New("db err"))

	err := repo.Delete(context.Background(), models.TokenKindVerification, "123456")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestDeleteByUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(byUserQ).
		WithArgs("u1", "password_reset").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(byUserQ).
		WithArgs("u2", "password_reset").
		WillReturnError(errors.New("boom"))

	if err := repo.DeleteByUser(context.Background(), "u1", models.TokenKindPasswordReset); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.DeleteByUser(context.Background(), "u2", models.TokenKindPasswordReset); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
