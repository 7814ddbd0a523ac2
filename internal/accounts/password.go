package accounts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"markbox/internal/models"
	"markbox/internal/signing"
)

// MinPasswordLength задаёт минимальную длину пароля.
const MinPasswordLength = 8

var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "12345678": {}, "123456789": {},
	"qwertyui": {}, "qwerty123": {}, "iloveyou": {}, "11111111": {},
	"abc12345": {}, "letmein1": {}, "sunshine": {}, "football": {},
	"baseball": {}, "welcome1": {}, "trustno1": {}, "passw0rd": {},
}

// ValidatePassword проверяет пароль: длина, не только цифры, не из списка
// распространённых и не совпадает с email.
func ValidatePassword(password, email string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: must contain at least %d characters", ErrWeakPassword, MinPasswordLength)
	}
	numeric := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			numeric = false
			break
		}
	}
	if numeric {
		return fmt.Errorf("%w: entirely numeric", ErrWeakPassword)
	}
	lower := strings.ToLower(password)
	if _, ok := commonPasswords[lower]; ok {
		return fmt.Errorf("%w: too common", ErrWeakPassword)
	}
	if email != "" {
		local, _, _ := strings.Cut(strings.ToLower(email), "@")
		if lower == strings.ToLower(email) || (len(local) >= MinPasswordLength && lower == local) {
			return fmt.Errorf("%w: too similar to the email address", ErrWeakPassword)
		}
	}
	return nil
}

// ChangePassword меняет пароль после проверки текущего. Остальные сессии
// пользователя не отзываются.
func (s *Service) ChangePassword(ctx context.Context, user *models.User, oldPassword, newPassword, confirm string) error {
	if !checkPassword(user, oldPassword) {
		return ErrBadCredentials
	}
	if newPassword != confirm {
		return ErrPasswordMismatch
	}
	return s.setPassword(ctx, user, newPassword)
}

func (s *Service) setPassword(ctx context.Context, user *models.User, password string) error {
	if err := ValidatePassword(password, user.Email); err != nil {
		return err
	}
	pwd, err := s.hash(password)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Update("password", pwd).Error; err != nil {
		return err
	}
	user.Password = pwd
	return nil
}

type passwordReset struct {
	UserID      string `json:"uid"`
	Fingerprint string `json:"fp"`
}

// fingerprint меняется вместе с паролем, поэтому ссылка сброса одноразовая.
func fingerprint(u *models.User) string {
	var hash string
	if u.Password != nil {
		hash = *u.Password
	}
	sum := sha256.Sum256([]byte(u.ID + ":" + hash))
	return hex.EncodeToString(sum[:])
}

// RequestPasswordReset отправляет ссылку сброса пароля. Для неизвестных и
// неактивных адресов ничего не происходит и ошибка не возвращается.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	var users []models.User
	if err := s.db.WithContext(ctx).Where("email = ? AND is_active = ?", NormalizeEmail(email), true).Find(&users).Error; err != nil {
		return err
	}
	for i := range users {
		u := &users[i]
		if !u.HasUsablePassword() {
			continue
		}
		token, err := s.signer.Issue(signing.PurposePasswordReset, passwordReset{UserID: u.ID, Fingerprint: fingerprint(u)})
		if err != nil {
			return err
		}
		if err := s.send(ctx, "password_reset", map[string]any{
			"Token": token,
			"Email": u.Email,
			"Valid": s.cfg.PasswordResetTimeout.String(),
		}, u.Email); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) resetTarget(ctx context.Context, token string) (*models.User, error) {
	var p passwordReset
	if err := s.signer.Verify(signing.PurposePasswordReset, token, s.cfg.PasswordResetTimeout, &p); err != nil {
		if errors.Is(err, signing.ErrExpired) {
			return nil, fmt.Errorf("password reset: %w", err)
		}
		return nil, fmt.Errorf("password reset: %w: %w", ErrNotFound, err)
	}
	user, err := s.findUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive || fingerprint(user) != p.Fingerprint {
		return nil, fmt.Errorf("password reset: %w: %w", ErrNotFound, signing.ErrInvalid)
	}
	return user, nil
}

// CheckPasswordReset проверяет ссылку сброса, не меняя пароль.
func (s *Service) CheckPasswordReset(ctx context.Context, token string) error {
	_, err := s.resetTarget(ctx, token)
	return err
}

// ConfirmPasswordReset устанавливает новый пароль по ссылке из письма и
// отзывает все сессии пользователя.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, newPassword, confirm string) (*models.User, error) {
	user, err := s.resetTarget(ctx, token)
	if err != nil {
		return nil, err
	}
	if newPassword != confirm {
		return nil, ErrPasswordMismatch
	}
	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return nil, err
	}
	if err := s.Logout(ctx, user.ID); err != nil {
		return nil, err
	}
	s.log.Info("password reset", zap.String("user_id", user.ID))
	return user, nil
}

