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

// Register создаёт неактивного пользователя и отправляет ссылку подтверждения.
// Прежняя неподтверждённая регистрация с тем же email удаляется.
func (s *Service) Register(ctx context.Context, email, password, passwordConfirm string) (*models.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}
	if password != passwordConfirm {
		return nil, ErrPasswordMismatch
	}
	if err := ValidatePassword(password, email); err != nil {
		return nil, err
	}
	pwd, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	user := models.User{Email: email, Password: pwd}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deletePending(tx, email); err != nil {
			return err
		}
		taken, err := activeWithEmail(tx, email)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, err
	}

	token, err := s.signer.Issue(signing.PurposeUserCreation, user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.send(ctx, "user_creation", map[string]any{
		"Token": token,
		"Valid": s.cfg.ActivationTimeout.String(),
	}, user.Email); err != nil {
		return nil, err
	}
	s.log.Info("registration pending", zap.String("user_id", user.ID))
	return &user, nil
}

// ConfirmRegistration активирует пользователя по токену из письма.
// Повторное подтверждение уже активной учётной записи успешно.
func (s *Service) ConfirmRegistration(ctx context.Context, token string) (*models.User, error) {
	var userID string
	if err := s.signer.Verify(signing.PurposeUserCreation, token, s.cfg.ActivationTimeout, &userID); err != nil {
		if errors.Is(err, signing.ErrExpired) {
			return nil, fmt.Errorf("confirm registration: %w", err)
		}
		return nil, fmt.Errorf("confirm registration: %w: %w", ErrNotFound, err)
	}
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsActive {
		return user, nil
	}
	user.IsActive = true
	if err := s.db.WithContext(ctx).Model(user).Update("is_active", true).Error; err != nil {
		return nil, err
	}
	s.log.Info("registration confirmed", zap.String("user_id", user.ID))
	return user, nil
}
