package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	sias "github.com/MrEthical07/sias"
	"github.com/jmoiron/sqlx"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestStoreFailuresWrapUnavailable(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT .* FROM users WHERE email = ?").
		WithArgs("ada@example.edu").
		WillReturnError(errors.New("connection reset by peer"))

	_, err := s.FindIdentityByEmail(ctx, "ada@example.edu")
	if !errors.Is(err, sias.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if sias.PublicMessage(err) != "Internal server error" {
		t.Fatalf("driver detail leaked: %q", sias.PublicMessage(err))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNoRowsMapsToNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT .* FROM users WHERE id = ?").
		WithArgs("u1").
		WillReturnError(sql.ErrNoRows)

	if _, err := s.FindIdentityByID(context.Background(), "u1"); !errors.Is(err, sias.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestConsumeBackupCodeLosesRace(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT backup_codes FROM users WHERE id = ?").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"backup_codes"}).AddRow(`["h1","h2"]`))
	mock.ExpectExec("UPDATE users SET backup_codes = \\? WHERE id = \\? AND backup_codes = \\?").
		WithArgs(`["h2"]`, "u1", `["h1","h2"]`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.ConsumeBackupCode(context.Background(), "u1", "h1")
	if err != nil {
		t.Fatalf("ConsumeBackupCode: %v", err)
	}
	if ok {
		t.Fatal("expected a concurrent consume to lose")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAdvanceMFACounterIsGuarded(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE users SET mfa_last_counter = \\? WHERE id = \\? AND mfa_last_counter < \\?").
		WithArgs(int64(7), "u1", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.AdvanceMFACounter(context.Background(), "u1", 7)
	if err != nil {
		t.Fatalf("AdvanceMFACounter: %v", err)
	}
	if ok {
		t.Fatal("an unchanged row must report a replay")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsertGradeRollsBackOnInsertFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE grades SET grade").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO grades").WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	err := s.UpsertGrade(context.Background(), "e1", "A", "i1", t0)
	if !errors.Is(err, sias.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
