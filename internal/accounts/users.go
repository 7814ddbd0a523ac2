package accounts

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"markbox/internal/models"
)

// CanAccess сообщает, может ли actor видеть и удалять учётную запись userID:
// только сам пользователь или суперпользователь.
func CanAccess(actor *models.User, userID string) bool {
	return actor != nil && (actor.ID == userID || actor.IsSuperuser)
}

// GetUser возвращает пользователя, доступного actor.
func (s *Service) GetUser(ctx context.Context, actor *models.User, id string) (*models.User, error) {
	if !CanAccess(actor, id) {
		return nil, ErrForbidden
	}
	return s.findUser(ctx, id)
}

// DeleteUser удаляет пользователя вместе с токенами, категориями, элементами
// и изображениями элементов.
func (s *Service) DeleteUser(ctx context.Context, actor *models.User, id string) error {
	if !CanAccess(actor, id) {
		return ErrForbidden
	}
	user, err := s.findUser(ctx, id)
	if err != nil {
		return err
	}

	var images []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Item{}).
			Where("owner_id = ? AND image IS NOT NULL AND image <> ''", user.ID).
			Pluck("image", &images).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ?", user.ID).Delete(&models.Item{}).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ?", user.ID).Delete(&models.Category{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Token{}).Error; err != nil {
			return err
		}
		return tx.Delete(user).Error
	})
	if err != nil {
		return err
	}

	for _, name := range images {
		if err := s.images.Delete(ctx, name); err != nil {
			s.log.Warn("delete image", zap.String("object", name), zap.Error(err))
		}
	}
	s.log.Info("user deleted", zap.String("user_id", user.ID), zap.String("actor_id", actor.ID))
	return nil
}
