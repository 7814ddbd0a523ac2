// Package accounts реализует жизненный цикл учётной записи: регистрацию с
// подтверждением по email, вход по bearer-токенам, смену email и пароля,
// сброс пароля и удаление пользователя.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"markbox/internal/mail"
	"markbox/internal/models"
	"markbox/internal/services/storage"
	"markbox/internal/signing"
	"markbox/internal/utils"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrEmailTaken       = errors.New("email already in use")
	ErrInactive         = errors.New("account is inactive")
	ErrBadCredentials   = errors.New("invalid credentials")
	ErrUnauthenticated  = errors.New("invalid token")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrWeakPassword     = errors.New("password is too weak")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrForbidden        = errors.New("forbidden")
)

// Config содержит параметры сервиса, которые приходят из конфигурации приложения.
type Config struct {
	BaseURL              string
	ActivationTimeout    time.Duration
	PasswordResetTimeout time.Duration
	TokenTTL             map[string]time.Duration
	// BcryptCost по умолчанию bcrypt.DefaultCost.
	BcryptCost int
}

type Service struct {
	db        *gorm.DB
	signer    *signing.Signer
	mailer    mail.Sender
	templates *mail.Catalog
	images    storage.Storage
	cfg       Config
	log       *zap.Logger
	now       func() time.Time
}

func New(db *gorm.DB, signer *signing.Signer, mailer mail.Sender, templates *mail.Catalog, images storage.Storage, cfg Config, log *zap.Logger) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		db:        db,
		signer:    signer,
		mailer:    mailer,
		templates: templates,
		images:    images,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// NormalizeEmail обрезает пробелы и приводит доменную часть к нижнему регистру.
func NormalizeEmail(email string) string {
	return utils.NormalizeEmail(email)
}

func (s *Service) hash(password string) (*string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	pwd := string(h)
	return &pwd, nil
}

func checkPassword(u *models.User, password string) bool {
	return u.HasUsablePassword() && bcrypt.CompareHashAndPassword([]byte(*u.Password), []byte(password)) == nil
}

func (s *Service) send(ctx context.Context, template string, data map[string]any, to string) error {
	data["BaseURL"] = s.cfg.BaseURL
	msg, err := s.templates.Render(template, data, to)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, msg.Subject, msg.Body, msg.To); err != nil {
		return fmt.Errorf("send %s mail: %w", template, err)
	}
	return nil
}

// deletePending удаляет неподтверждённые учётные записи с данным email.
func deletePending(tx *gorm.DB, email string) error {
	return tx.Where("email = ? AND is_active = ?", email, false).Delete(&models.User{}).Error
}

func activeWithEmail(tx *gorm.DB, email string) (bool, error) {
	var count int64
	if err := tx.Model(&models.User{}).Where("email = ? AND is_active = ?", email, true).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) findUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
