package accounts

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"markbox/internal/models"
	"markbox/internal/signing"
)

type emailChange struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
}

// RequestEmailChange отправляет ссылку подтверждения на новый адрес.
// Неподтверждённые регистрации с этим адресом удаляются; адрес активного
// пользователя занят.
func (s *Service) RequestEmailChange(ctx context.Context, user *models.User, newEmail string) error {
	newEmail = NormalizeEmail(newEmail)
	if newEmail == "" {
		return ErrInvalidEmail
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deletePending(tx, newEmail); err != nil {
			return err
		}
		taken, err := activeWithEmail(tx, newEmail)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}
		return nil
	})
	if err != nil {
		return err
	}
	token, err := s.signer.Issue(signing.PurposeEmailChange, emailChange{UserID: user.ID, Email: newEmail})
	if err != nil {
		return err
	}
	return s.send(ctx, "email_change", map[string]any{
		"Token": token,
		"Valid": s.cfg.ActivationTimeout.String(),
	}, newEmail)
}

// ConfirmEmailChange меняет email текущего пользователя. Токен, выпущенный
// для другого пользователя, считается недействительным.
func (s *Service) ConfirmEmailChange(ctx context.Context, user *models.User, token string) (*models.User, error) {
	var p emailChange
	if err := s.signer.Verify(signing.PurposeEmailChange, token, s.cfg.ActivationTimeout, &p); err != nil {
		if errors.Is(err, signing.ErrExpired) {
			return nil, fmt.Errorf("confirm email change: %w", err)
		}
		return nil, fmt.Errorf("confirm email change: %w: %w", ErrNotFound, err)
	}
	if p.UserID != user.ID {
		return nil, ErrNotFound
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deletePending(tx, p.Email); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ? AND id <> ?", p.Email, user.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).Update("email", p.Email).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("email changed", zap.String("user_id", user.ID))
	user.Email = p.Email
	return user, nil
}
