package models

import (
	"time"

	"gorm.io/gorm"

	"markbox/internal/utils"
)

type Mark int

const (
	MarkCircle   Mark = 1
	MarkTriangle Mark = 2
	MarkCross    Mark = 3
)

func (m Mark) Valid() bool {
	return m >= MarkCircle && m <= MarkCross
}

func (m Mark) String() string {
	switch m {
	case MarkCircle:
		return "circle"
	case MarkTriangle:
		return "triangle"
	case MarkCross:
		return "cross"
	}
	return ""
}

// Item описывает закладку пользователя. CategoryID == nil означает группу
// «без категории».
type Item struct {
	ID          string    `gorm:"primaryKey;size:21" json:"id"`
	Title       string    `gorm:"type:varchar(100);not null" json:"title"`
	Description *string   `gorm:"type:text" json:"description"`
	Image       *string   `gorm:"type:varchar(255)" json:"image"`
	URL         *string   `gorm:"type:varchar(200)" json:"url"`
	Mark        *Mark     `json:"mark"`
	CategoryID  *string   `gorm:"size:21;index" json:"categoryID"`
	Category    *Category `gorm:"foreignKey:CategoryID" json:"-"`
	Order       int       `gorm:"column:sort_order;not null;default:0;index:idx_items_owner_order,priority:2" json:"order"`
	OwnerID     string    `gorm:"size:21;not null;index;index:idx_items_owner_order,priority:1" json:"ownerID"`
	Owner       User      `gorm:"foreignKey:OwnerID" json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (i *Item) BeforeCreate(tx *gorm.DB) (err error) {
	if i.ID == "" {
		i.ID, err = utils.GenerateNanoID()
	}
	return
}

// ImageName возвращает имя сохранённого объекта или "".
func (i *Item) ImageName() string {
	if i.Image == nil {
		return ""
	}
	return *i.Image
}
