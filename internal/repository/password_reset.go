package repository

import (
	"authgate/internal/logger"
	"context"
	"time"

	"go.uber.org/zap"
)

type PasswordResetRepository struct {
	db DB
}

func NewPasswordResetRepository(db DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

type PasswordResetRepo interface {
	Create(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	Redeem(ctx context.Context, tokenHash string, newPasswordHash string) (int64, error)
}

func (r *PasswordResetRepository) Create(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO password_reset_tokens (user_id, token_hash, expires_at) VALUES ($1,$2,$3)`,
		userID, tokenHash, expiresAt,
	)
	if err != nil {
		logger.Log.Error("Create reset token failed", zap.Error(err), zap.Int64("user_id", userID))
	}
	return err
}

// Redeem атомарно гасит токен и меняет пароль пользователя: поиск валидной
// записи, обновление пароля и used = true идут в одной транзакции. Токен
// не может быть погашен дважды, а неудачное обновление пароля откатывает
// и погашение.
//
// Несуществующий, просроченный и уже использованный токен неразличимы:
// во всех трёх случаях возвращается pgx.ErrNoRows.
func (r *PasswordResetRepository) Redeem(ctx context.Context, tokenHash string, newPasswordHash string) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		logger.Log.Error("Redeem: begin tx failed", zap.Error(err))
		return 0, err
	}
	defer tx.Rollback(ctx)

	var tokenID, userID int64
	err = tx.QueryRow(ctx, `
		SELECT id, user_id
		FROM password_reset_tokens
		WHERE token_hash = $1
		  AND used = false
		  AND expires_at > now()
		FOR UPDATE
	`, tokenHash).Scan(&tokenID, &userID)
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, newPasswordHash, userID); err != nil {
		logger.Log.Error("Redeem: update password failed", zap.Error(err), zap.Int64("user_id", userID))
		return 0, err
	}

	if _, err := tx.Exec(ctx, `UPDATE password_reset_tokens SET used = true WHERE id = $1`, tokenID); err != nil {
		logger.Log.Error("Redeem: mark used failed", zap.Error(err), zap.Int64("token_id", tokenID))
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Log.Error("Redeem: commit failed", zap.Error(err), zap.Int64("token_id", tokenID))
		return 0, err
	}
	return userID, nil
}
