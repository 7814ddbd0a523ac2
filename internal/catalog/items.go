package catalog

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"markbox/internal/models"
	"markbox/internal/ordering"
	"markbox/internal/services/images"
	"markbox/internal/utils"
)

// ImageURLExpiry задаёт срок действия ссылки на изображение.
const ImageURLExpiry = 15 * time.Minute

// OwnerItems описывает все элементы владельца. По этому набору сдвигается порядок
// при вставке нового элемента.
func OwnerItems(ownerID string) ordering.List {
	return ordering.List{
		Model: &models.Item{},
		Scope: func(tx *gorm.DB) *gorm.DB {
			return tx.Where("owner_id = ?", ownerID)
		},
		Anchor: lockOwner(ownerID),
	}
}

// Items описывает элементы владельца в одной категории; categoryID == nil означает
// элементы без категории.
func Items(ownerID string, categoryID *string) ordering.List {
	return ordering.List{
		Model: &models.Item{},
		Scope: func(tx *gorm.DB) *gorm.DB {
			tx = tx.Where("owner_id = ?", ownerID)
			if categoryID == nil {
				return tx.Where("category_id IS NULL")
			}
			return tx.Where("category_id = ?", *categoryID)
		},
		Anchor: lockOwner(ownerID),
	}
}

// ItemInput содержит поля элемента из формы.
type ItemInput struct {
	Title       string
	Description *string
	URL         *string
	Mark        *models.Mark
	// CategoryID учитывается только при создании.
	CategoryID *string
	// Image заменяет текущее изображение.
	Image *images.Image
	// ClearImage удаляет текущее изображение, если Image не задан.
	ClearImage bool
}

func emptyToNil(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func (in *ItemInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = emptyToNil(in.Description)
	in.URL = emptyToNil(in.URL)
	in.CategoryID = emptyToNil(in.CategoryID)

	if err := checkLength("title", in.Title, 100, true); err != nil {
		return err
	}
	if in.Description != nil {
		if err := checkLength("description", *in.Description, 2000, false); err != nil {
			return err
		}
	}
	if in.URL != nil {
		if err := checkURL(*in.URL); err != nil {
			return err
		}
	}
	if in.Mark != nil && !in.Mark.Valid() {
		return invalid("select a valid mark")
	}
	return nil
}

// ListItems возвращает страницу элементов actor в категории categoryID.
func (s *Service) ListItems(ctx context.Context, actor *models.User, categoryID *string, page int) (ordering.Page[models.Item], error) {
	ownerID := actor.ID
	if categoryID != nil {
		cat, err := s.GetCategory(ctx, actor, *categoryID)
		if err != nil {
			return ordering.Page[models.Item]{}, err
		}
		// суперпользователь видит элементы чужой категории
		ownerID = cat.OwnerID
	}
	return ordering.Paginate[models.Item](ctx, s.db, Items(ownerID, categoryID), page, s.pageSize)
}

func (s *Service) upload(ctx context.Context, img *images.Image) (string, error) {
	name, err := utils.ObjectName("images", img.Ext)
	if err != nil {
		return "", err
	}
	return s.store.Upload(ctx, name, img.Reader(), img.Size(), img.ContentType)
}

// discard удаляет загруженный объект, если запись элемента не удалась.
func (s *Service) discard(ctx context.Context, name string) {
	if err := s.store.Delete(ctx, name); err != nil {
		s.log.Warn("discard upload", zap.String("object", name), zap.Error(err))
	}
}

// CreateItem добавляет элемент в начало списка.
func (s *Service) CreateItem(ctx context.Context, actor *models.User, in ItemInput) (*models.Item, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if in.CategoryID != nil {
		cat, err := s.GetCategory(ctx, actor, *in.CategoryID)
		if err != nil {
			return nil, err
		}
		if cat.OwnerID != actor.ID {
			return nil, ErrForbidden
		}
	}
	item := models.Item{
		Title:       in.Title,
		Description: in.Description,
		URL:         in.URL,
		Mark:        in.Mark,
		CategoryID:  in.CategoryID,
		OwnerID:     actor.ID,
	}
	if in.Image != nil {
		name, err := s.upload(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		item.Image = &name
	}
	if err := ordering.Insert(ctx, s.db, OwnerItems(actor.ID), &item); err != nil {
		if item.Image != nil {
			s.discard(ctx, *item.Image)
		}
		return nil, err
	}
	return &item, nil
}

func (s *Service) GetItem(ctx context.Context, actor *models.User, id string) (*models.Item, error) {
	var item models.Item
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, notFound(err)
	}
	if err := canModify(actor, item.OwnerID); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem меняет поля элемента. Категория и порядок не меняются.
func (s *Service) UpdateItem(ctx context.Context, actor *models.User, id string, in ItemInput) (*models.Item, error) {
	stored, err := s.GetItem(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	updated := *stored
	updated.Title = in.Title
	updated.Description = in.Description
	updated.URL = in.URL
	updated.Mark = in.Mark

	var uploaded string
	switch {
	case in.Image != nil:
		if uploaded, err = s.upload(ctx, in.Image); err != nil {
			return nil, err
		}
		updated.Image = &uploaded
	case in.ClearImage:
		updated.Image = nil
	}

	if s.hooks.BeforeSave != nil {
		if err := s.hooks.BeforeSave(ctx, stored, &updated); err != nil {
			if uploaded != "" {
				s.discard(ctx, uploaded)
			}
			return nil, err
		}
	}
	updated.UpdatedAt = time.Now()
	err = s.db.WithContext(ctx).Model(&models.Item{}).Where("id = ?", stored.ID).
		Updates(map[string]any{
			"title":       updated.Title,
			"description": updated.Description,
			"url":         updated.URL,
			"mark":        updated.Mark,
			"image":       updated.Image,
			"updated_at":  updated.UpdatedAt,
		}).Error
	if err != nil {
		if uploaded != "" {
			s.discard(ctx, uploaded)
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Service) afterDelete(ctx context.Context, item *models.Item) {
	if s.hooks.AfterDelete == nil {
		return
	}
	if err := s.hooks.AfterDelete(ctx, item); err != nil {
		s.log.Warn("item after delete", zap.String("item_id", item.ID), zap.Error(err))
	}
}

func (s *Service) DeleteItem(ctx context.Context, actor *models.User, id string) error {
	item, err := s.GetItem(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(item).Error; err != nil {
		return err
	}
	s.afterDelete(ctx, item)
	return nil
}

// MoveItem меняет элемент местами с соседним в пределах его категории.
func (s *Service) MoveItem(ctx context.Context, actor *models.User, id string, dir Direction) error {
	item, err := s.GetItem(ctx, actor, id)
	if err != nil {
		return err
	}
	return move(ctx, s.db, Items(item.OwnerID, item.CategoryID), item.ID, dir)
}

// ImageURL возвращает временную ссылку на изображение элемента.
func (s *Service) ImageURL(ctx context.Context, actor *models.User, id string) (string, error) {
	item, err := s.GetItem(ctx, actor, id)
	if err != nil {
		return "", err
	}
	if item.Image == nil {
		return "", ErrNotFound
	}
	return s.store.GetURL(ctx, *item.Image, ImageURLExpiry)
}
