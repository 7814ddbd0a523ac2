package models

import (
	"time"

	"gorm.io/gorm"

	"markbox/internal/utils"
)

// Category группирует элементы пользователя. Order задаёт ручной порядок
// внутри категорий владельца: меньшее значение показывается раньше.
type Category struct {
	ID        string    `gorm:"primaryKey;size:21" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Order     int       `gorm:"column:sort_order;not null;default:0;index:idx_categories_owner_order,priority:2" json:"order"`
	OwnerID   string    `gorm:"size:21;not null;index;index:idx_categories_owner_order,priority:1" json:"ownerID"`
	Owner     User      `gorm:"foreignKey:OwnerID" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID, err = utils.GenerateNanoID()
	}
	return
}
