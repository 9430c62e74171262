package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/vyapar-labs/b2b-platform/internal/core/domain"
	"github.com/vyapar-labs/b2b-platform/internal/repository"
)

func TestUserRepository_Create_ReturnsGeneratedID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery(`INSERT INTO users .+ RETURNING id`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := repo.Create(context.Background(), domain.User{
		Username: "mango_traders",
		Email:    "owner@mangotraders.example",
		Phone:    "9876543210",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if id != 7 {
		t.Fatalf("expected id 7, got %d", id)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_GetByEmail_ScansNullableColumns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	now := time.Now()

	rows := pgxmock.NewRows(userColumns).AddRow(
		int64(3),
		"mango_traders",
		"owner@mangotraders.example",
		"9876543210",
		nil,
		nil,
		"Asha",
		"Patel",
		false,
		false,
		nil,
		nil,
		nil,
		now,
		now,
	)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1 LIMIT 1`).
		WithArgs("owner@mangotraders.example").
		WillReturnRows(rows)

	user, err := repo.GetByEmail(context.Background(), "owner@mangotraders.example")
	if err != nil {
		t.Fatalf("GetByEmail returned error: %v", err)
	}
	if user.ID != 3 || user.Username != "mango_traders" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.GSTN != nil || user.PasswordHash != nil || user.EmailOTP != nil {
		t.Fatalf("nullable columns should stay nil: %+v", user)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
		WithArgs("ghost@mangotraders.example").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByEmail(context.Background(), "ghost@mangotraders.example"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_SetOTP_UnknownEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	expiresAt := time.Now().Add(10 * time.Minute)

	mock.ExpectExec(`UPDATE users SET email_otp = \$1, otp_expires_at = \$2, updated_at = now\(\) WHERE email = \$3`).
		WithArgs("123456", expiresAt, "ghost@mangotraders.example").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.SetOTP(context.Background(), "ghost@mangotraders.example", "123456", expiresAt); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_ConsumeOTP_ActivatesMatchingRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	now := time.Now()

	// Equality predicates are rendered in alphabetical column order, with the
	// expiry guard appended after them.
	mock.ExpectQuery(`UPDATE users SET .+ WHERE email = \$5 AND email_otp = \$6 AND otp_expires_at > \$7 RETURNING id`).
		WithArgs(nil, nil, true, true, "owner@mangotraders.example", "123456", now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))

	id, err := repo.ConsumeOTP(context.Background(), "owner@mangotraders.example", "123456", now)
	if err != nil {
		t.Fatalf("ConsumeOTP returned error: %v", err)
	}
	if id != 3 {
		t.Fatalf("expected id 3, got %d", id)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_ConsumeOTP_StaleOrWrongCode(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	now := time.Now()

	mock.ExpectQuery(`UPDATE users SET .+ RETURNING id`).
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.ConsumeOTP(context.Background(), "owner@mangotraders.example", "000000", now); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
