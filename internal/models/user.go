package models

import (
	"time"

	"gorm.io/gorm"

	"markbox/internal/utils"
)

// User описывает учётную запись. Email служит логином; IsActive=false означает
// регистрацию, ещё не подтверждённую по ссылке из письма.
type User struct {
	ID          string     `gorm:"primaryKey;size:21" json:"id"`
	Email       string     `gorm:"type:varchar(254);not null;unique" json:"email"`
	Username    string     `gorm:"type:varchar(150)" json:"username"`
	Password    *string    `gorm:"type:varchar(255)" json:"-"`
	IsActive    bool       `gorm:"not null" json:"isActive"`
	IsStaff     bool       `gorm:"not null" json:"isStaff"`
	IsSuperuser bool       `gorm:"not null" json:"isSuperuser"`
	LastLogin   *time.Time `json:"lastLogin"`
	DateJoined  time.Time  `gorm:"autoCreateTime" json:"dateJoined"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID, err = utils.GenerateNanoID()
	}
	return
}

// HasUsablePassword ложно для учётных записей без пароля.
func (u *User) HasUsablePassword() bool {
	return u.Password != nil && *u.Password != ""
}
