package accounts

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"markbox/internal/db"
	"markbox/internal/models"
	"markbox/internal/utils"
)

// TokenPair содержит токены, выданные при входе.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (s *Service) issueTokens(tx *gorm.DB, userID string) (*TokenPair, error) {
	accessStr, err := utils.GenerateNanoID()
	if err != nil {
		return nil, err
	}
	refreshStr, err := utils.GenerateNanoID()
	if err != nil {
		return nil, err
	}
	now := s.now()
	tokens := []models.Token{
		{UserID: userID, Token: accessStr, Type: models.TokenTypeAccess, ExpiresAt: now.Add(s.cfg.TokenTTL[models.TokenTypeAccess])},
		{UserID: userID, Token: refreshStr, Type: models.TokenTypeRefresh, ExpiresAt: now.Add(s.cfg.TokenTTL[models.TokenTypeRefresh])},
	}
	if err := tx.Create(&tokens).Error; err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: accessStr, RefreshToken: refreshStr}, nil
}

// Login проверяет email и пароль и выдаёт пару токенов.
// Неподтверждённая учётная запись войти не может.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if !checkPassword(&user, password) {
		return nil, ErrBadCredentials
	}
	if !user.IsActive {
		return nil, ErrInactive
	}
	var pair *TokenPair
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		if err := tx.Model(&user).Update("last_login", &now).Error; err != nil {
			return err
		}
		var err error
		pair, err = s.issueTokens(tx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Refresh обменивает refresh-токен на новую пару. Старый токен удаляется.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair *TokenPair
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token models.Token
		if err := tx.Where("token = ? AND type = ?", refreshToken, models.TokenTypeRefresh).First(&token).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnauthenticated
			}
			return err
		}
		if err := tx.Delete(&token).Error; err != nil {
			return err
		}
		// просроченный токен удаляется, но новая пара не выдаётся
		if token.ExpiresAt.Before(s.now()) {
			return nil
		}
		var err error
		pair, err = s.issueTokens(tx, token.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if pair == nil {
		return nil, ErrUnauthenticated
	}
	return pair, nil
}

// Authenticate возвращает активного владельца access-токена.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	tx := s.db.WithContext(ctx)
	var token models.Token
	if err := tx.Where("token = ? AND type = ?", accessToken, models.TokenTypeAccess).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if token.ExpiresAt.Before(s.now()) {
		if err := tx.Delete(&token).Error; err != nil {
			s.log.Warn("delete expired token", zap.String("user_id", token.UserID), zap.Error(err))
		}
		return nil, ErrUnauthenticated
	}
	user, err := s.findUser(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactive
	}
	return user, nil
}

// Logout отзывает все токены пользователя.
func (s *Service) Logout(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Token{}).Error
}

// PurgeExpiredTokens удаляет просроченные токены.
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return db.PurgeExpiredTokens(s.db.WithContext(ctx), s.now())
}
