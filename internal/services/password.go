package services

import (
	"authgate/internal/logger"
	"authgate/internal/models"
	"authgate/internal/repository"
	"authgate/internal/utils"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooShort = errors.New("password too short")
	// ErrInvalidOrExpiredToken покрывает все три случая — несуществующий,
	// просроченный и уже использованный токен. Клиент не должен их различать.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrEmailDelivery         = errors.New("failed to send email")
	ErrOldPasswordMismatch   = errors.New("old password incorrect")
)

type PasswordService struct {
	repo        repository.PasswordResetRepo
	users       UserDirectory
	emailSender EmailSender
	appURL      string // базовый URL: https://example.com (ссылка вида /reset-password?token=...)
	tokenTTL    time.Duration
}

type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error
}

type EmailSender interface {
	SendPasswordReset(ctx context.Context, to, username, resetLink string) error
	SendPasswordChanged(ctx context.Context, to, username string) error
}

func NewPasswordService(repo repository.PasswordResetRepo, users UserDirectory, emailSender EmailSender, appURL string, tokenTTL time.Duration) *PasswordService {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &PasswordService{
		repo:        repo,
		users:       users,
		emailSender: emailSender,
		appURL:      strings.TrimRight(appURL, "/"),
		tokenTTL:    tokenTTL,
	}
}

// hashToken — sha256 от секрета в hex. Быстрый хеш достаточен: на входе
// уже 256 бит энтропии, в отличие от паролей.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RequestReset генерирует одноразовый токен и отправляет письмо со ссылкой.
// Если e-mail никому не принадлежит — возвращает nil, не трогая остальное:
// ответ клиенту одинаков в обоих случаях (защита от перечисления аккаунтов).
func (s *PasswordService) RequestReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	logger.WithCtx(ctx).Info("Запрос на сброс пароля")

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		// Не раскрываем наличие почты пользователю, но логируем для нас:
		logger.WithCtx(ctx).Warn("Не удалось найти пользователя по email при запросе сброса", zap.Error(err))
		return nil
	}

	// Криптостойкий секрет: 32 байта → 64-символьная hex-строка
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		logger.WithCtx(ctx).Error("Ошибка генерации токена для сброса", zap.Error(err), zap.Int("user_id", user.ID))
		return err
	}
	token := hex.EncodeToString(raw)

	// В базе храним только хеш; сам секрет живёт лишь в письме
	tokenHash := hashToken(token)

	expires := time.Now().Add(s.tokenTTL)
	if err := s.repo.Create(ctx, int64(user.ID), tokenHash, expires); err != nil {
		logger.WithCtx(ctx).Error("Ошибка сохранения токена сброса пароля", zap.Int("user_id", user.ID), zap.Error(err))
		return err
	}

	resetLink := fmt.Sprintf("%s/api/v1/auth/reset-password?token=%s", s.appURL, token)
	if err := s.emailSender.SendPasswordReset(ctx, user.Email, user.Username, resetLink); err != nil {
		logger.WithCtx(ctx).Error("Ошибка отправки письма для сброса пароля",
			zap.Int("user_id", user.ID),
			zap.Error(err),
		)
		return ErrEmailDelivery
	}

	logger.WithCtx(ctx).Info("Письмо со ссылкой на сброс пароля отправлено",
		zap.Int("user_id", user.ID),
		zap.Time("expires_at", expires),
	)
	return nil
}

// ResetPassword гасит токен и устанавливает новый пароль. Гашение и смена
// пароля выполняются репозиторием как одна транзакция.
func (s *PasswordService) ResetPassword(ctx context.Context, token, newPassword string) error {
	logger.WithCtx(ctx).Info("Попытка сброса пароля по токену")

	if len(newPassword) < MinPasswordLength {
		logger.WithCtx(ctx).Warn("Слишком короткий новый пароль")
		return ErrPasswordTooShort
	}

	pwHash, err := utils.HashPassword(newPassword)
	if err != nil {
		logger.WithCtx(ctx).Error("Ошибка генерации хеша пароля", zap.Error(err))
		return err
	}

	userID, err := s.repo.Redeem(ctx, hashToken(token), pwHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.WithCtx(ctx).Warn("Неверный или просроченный токен при сбросе пароля")
			return ErrInvalidOrExpiredToken
		}
		logger.WithCtx(ctx).Error("Ошибка гашения токена сброса", zap.Error(err))
		return err
	}

	// Письмо-подтверждение — best effort: пароль уже сменён, ошибку
	// доставки только логируем.
	if user, err := s.users.GetUserByID(ctx, int(userID)); err == nil {
		if err := s.emailSender.SendPasswordChanged(ctx, user.Email, user.Username); err != nil {
			logger.WithCtx(ctx).Warn("Не удалось отправить подтверждение смены пароля",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
		}
	}

	logger.WithCtx(ctx).Info("Пароль успешно сброшен", zap.Int64("user_id", userID))
	return nil
}

// ChangePassword меняет пароль для авторизованного пользователя по старому паролю.
func (s *PasswordService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword, currentHash string) error {
	logger.WithCtx(ctx).Info("Смена пароля (авторизованный пользователь)", zap.Int64("user_id", userID))

	if len(newPassword) < MinPasswordLength {
		logger.WithCtx(ctx).Warn("Слишком короткий новый пароль", zap.Int64("user_id", userID))
		return ErrPasswordTooShort
	}

	// Проверяем старый пароль
	if err := bcrypt.CompareHashAndPassword([]byte(currentHash), []byte(oldPassword)); err != nil {
		logger.WithCtx(ctx).Warn("Старый пароль не совпадает", zap.Int64("user_id", userID))
		return ErrOldPasswordMismatch
	}

	newHash, err := utils.HashPassword(newPassword)
	if err != nil {
		logger.WithCtx(ctx).Error("Ошибка генерации нового хеша пароля", zap.Error(err), zap.Int64("user_id", userID))
		return err
	}

	if err := s.users.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		logger.WithCtx(ctx).Error("Ошибка обновления пароля пользователя", zap.Int64("user_id", userID), zap.Error(err))
		return err
	}

	logger.WithCtx(ctx).Info("Пароль успешно изменён", zap.Int64("user_id", userID))
	return nil
}
