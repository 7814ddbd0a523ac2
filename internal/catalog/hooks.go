package catalog

import (
	"context"

	"go.uber.org/zap"

	"markbox/internal/models"
	"markbox/internal/services/storage"
)

// Hooks вызываются сервисом при изменении элементов.
type Hooks struct {
	// BeforeSave получает сохранённое и новое состояние элемента перед записью.
	BeforeSave func(ctx context.Context, stored, updated *models.Item) error
	// AfterDelete вызывается после удаления элемента.
	AfterDelete func(ctx context.Context, item *models.Item) error
}

// ImageJanitor удаляет из хранилища изображения, на которые больше не
// ссылается ни один элемент.
type ImageJanitor struct {
	store storage.Storage
	log   *zap.Logger
}

func NewImageJanitor(store storage.Storage, log *zap.Logger) *ImageJanitor {
	return &ImageJanitor{store: store, log: log}
}

func (j *ImageJanitor) Hooks() Hooks {
	return Hooks{BeforeSave: j.beforeSave, AfterDelete: j.afterDelete}
}

func (j *ImageJanitor) beforeSave(ctx context.Context, stored, updated *models.Item) error {
	old := stored.ImageName()
	if old == "" || old == updated.ImageName() {
		return nil
	}
	return j.remove(ctx, old)
}

func (j *ImageJanitor) afterDelete(ctx context.Context, item *models.Item) error {
	if name := item.ImageName(); name != "" {
		return j.remove(ctx, name)
	}
	return nil
}

func (j *ImageJanitor) remove(ctx context.Context, name string) error {
	if err := j.store.Delete(ctx, name); err != nil {
		j.log.Warn("delete image", zap.String("object", name), zap.Error(err))
		return err
	}
	return nil
}
