package repository

import (
	"authgate/internal/logger"
	"authgate/internal/models"
	"context"
	"errors"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

func TestUserRepository_CreateUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("не удалось создать mock-пул: %v", err)
	}
	defer mock.Close()

	created := time.Now()
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice", "a@x.com", "$2a$12$hash").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(1, created))

	repo := NewUserRepository(mock)
	user := &models.User{Username: "alice", Email: "a@x.com", PasswordHash: "$2a$12$hash"}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("ошибка создания пользователя: %v", err)
	}
	if user.ID != 1 {
		t.Fatalf("id не присвоен: %d", user.ID)
	}
	if !user.CreatedAt.Equal(created) {
		t.Fatal("created_at не заполнен из базы")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("не все ожидания выполнены: %v", err)
	}
}

func TestUserRepository_IsUsernameTaken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("не удалось создать mock-пул: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM users WHERE username = \$1\)`).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	repo := NewUserRepository(mock)
	taken, err := repo.IsUsernameTaken(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ошибка проверки username: %v", err)
	}
	if !taken {
		t.Fatal("ожидалось taken == true")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("не все ожидания выполнены: %v", err)
	}
}

func TestUserRepository_GetByUsername_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("не удалось создать mock-пул: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, username, email, password_hash, created_at`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	repo := NewUserRepository(mock)
	if _, err := repo.GetByUsername(context.Background(), "ghost"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("ожидался pgx.ErrNoRows, получено: %v", err)
	}
}

func TestUserRepository_UpdatePasswordHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("не удалось создать mock-пул: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET password_hash = $1 WHERE id = $2`)).
		WithArgs("$2a$12$newhash", int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewUserRepository(mock)
	if err := repo.UpdatePasswordHash(context.Background(), 1, "$2a$12$newhash"); err != nil {
		t.Fatalf("ошибка обновления пароля: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("не все ожидания выполнены: %v", err)
	}
}
