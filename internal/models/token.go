package models

import (
	"time"

	"gorm.io/gorm"

	"markbox/internal/utils"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Token хранит bearer-токен сессии пользователя.
type Token struct {
	ID        string    `gorm:"primaryKey;size:21"`
	UserID    string    `gorm:"size:21;index;not null"`
	User      User      `gorm:"foreignKey:UserID"`
	Token     string    `gorm:"type:varchar(255);not null;unique"`
	Type      string    `gorm:"type:varchar(10);not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (t *Token) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == "" {
		t.ID, err = utils.GenerateNanoID()
	}
	return
}
