package catalog

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"markbox/internal/models"
	"markbox/internal/ordering"
)

// Categories описывает список категорий владельца.
func Categories(ownerID string) ordering.List {
	return ordering.List{
		Model: &models.Category{},
		Scope: func(tx *gorm.DB) *gorm.DB {
			return tx.Where("owner_id = ?", ownerID)
		},
		Anchor: lockOwner(ownerID),
	}
}

func (s *Service) ListCategories(ctx context.Context, actor *models.User, page int) (ordering.Page[models.Category], error) {
	return ordering.Paginate[models.Category](ctx, s.db, Categories(actor.ID), page, s.pageSize)
}

// AllCategories возвращает все категории пользователя в порядке вывода.
func (s *Service) AllCategories(ctx context.Context, actor *models.User) ([]models.Category, error) {
	var res []models.Category
	err := Categories(actor.ID).Scope(s.db.WithContext(ctx)).Order(ordering.DisplayOrder).Find(&res).Error
	return res, err
}

func (s *Service) CreateCategory(ctx context.Context, actor *models.User, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if err := checkLength("name", name, 100, true); err != nil {
		return nil, err
	}
	cat := models.Category{Name: name, OwnerID: actor.ID}
	if err := ordering.Insert(ctx, s.db, Categories(actor.ID), &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

// GetCategory возвращает категорию, если actor её владелец или суперпользователь.
func (s *Service) GetCategory(ctx context.Context, actor *models.User, id string) (*models.Category, error) {
	var cat models.Category
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&cat).Error; err != nil {
		return nil, notFound(err)
	}
	if err := canModify(actor, cat.OwnerID); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (s *Service) UpdateCategory(ctx context.Context, actor *models.User, id, name string) (*models.Category, error) {
	cat, err := s.GetCategory(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := checkLength("name", name, 100, true); err != nil {
		return nil, err
	}
	cat.Name = name
	if err := s.db.WithContext(ctx).Model(cat).Update("name", name).Error; err != nil {
		return nil, err
	}
	return cat, nil
}

// DeleteCategory удаляет категорию вместе с её элементами.
func (s *Service) DeleteCategory(ctx context.Context, actor *models.User, id string) error {
	cat, err := s.GetCategory(ctx, actor, id)
	if err != nil {
		return err
	}
	var items []models.Item
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("category_id = ?", cat.ID).Find(&items).Error; err != nil {
			return err
		}
		if err := tx.Where("category_id = ?", cat.ID).Delete(&models.Item{}).Error; err != nil {
			return err
		}
		return tx.Delete(cat).Error
	})
	if err != nil {
		return err
	}
	for i := range items {
		s.afterDelete(ctx, &items[i])
	}
	s.log.Info("category deleted", zap.String("category_id", cat.ID), zap.Int("items", len(items)))
	return nil
}

// MoveCategory меняет категорию местами с соседней.
func (s *Service) MoveCategory(ctx context.Context, actor *models.User, id string, dir Direction) error {
	cat, err := s.GetCategory(ctx, actor, id)
	if err != nil {
		return err
	}
	return move(ctx, s.db, Categories(cat.OwnerID), cat.ID, dir)
}
