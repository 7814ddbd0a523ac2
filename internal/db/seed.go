package db

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"markbox/internal/models"
	"markbox/internal/utils"
)

var ErrUserExists = errors.New("user already exists")

// CreateSuperuser создаёт активного администратора. Неподтверждённая
// регистрация с тем же email удаляется.
func CreateSuperuser(db *gorm.DB, email, password string) (*models.User, error) {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("the given email must be set")
	}
	if err := db.Where("email = ? AND is_active = ?", email, false).Delete(&models.User{}).Error; err != nil {
		return nil, err
	}
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUserExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	pwd := string(hash)
	user := models.User{
		Email:       email,
		Password:    &pwd,
		IsActive:    true,
		IsStaff:     true,
		IsSuperuser: true,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// PurgePending удаляет неподтверждённые регистрации старше olderThan.
func PurgePending(db *gorm.DB, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := db.Where("is_active = ? AND date_joined < ?", false, cutoff).Delete(&models.User{})
	return res.RowsAffected, res.Error
}

// PurgeExpiredTokens удаляет токены, срок действия которых истёк к моменту now.
func PurgeExpiredTokens(db *gorm.DB, now time.Time) (int64, error) {
	res := db.Where("expires_at < ?", now).Delete(&models.Token{})
	return res.RowsAffected, res.Error
}
