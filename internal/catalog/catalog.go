// Package catalog управляет категориями и элементами пользователя.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"markbox/internal/models"
	"markbox/internal/ordering"
	"markbox/internal/services/storage"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrInvalid   = errors.New("invalid input")
)

// Direction задаёт направление перемещения записи в списке.
type Direction int

const (
	Up Direction = iota
	Down
)

// lockOwner блокирует строку владельца: вставки и перемещения в списках
// одного пользователя выполняются по очереди.
func lockOwner(ownerID string) func(*gorm.DB) error {
	return func(tx *gorm.DB) error {
		var owner models.User
		return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").Where("id = ?", ownerID).Take(&owner).Error
	}
}

type Service struct {
	db       *gorm.DB
	store    storage.Storage
	hooks    Hooks
	pageSize int
	log      *zap.Logger
}

func New(db *gorm.DB, store storage.Storage, pageSize int, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{db: db, store: store, pageSize: pageSize, log: log}
	s.hooks = NewImageJanitor(store, log).Hooks()
	return s
}

// SetHooks заменяет обработчики событий сохранения и удаления элементов.
func (s *Service) SetHooks(h Hooks) {
	s.hooks = h
}

func canModify(actor *models.User, ownerID string) error {
	if actor == nil {
		return ErrForbidden
	}
	if actor.ID != ownerID && !actor.IsSuperuser {
		return ErrForbidden
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func checkLength(field, value string, max int, required bool) error {
	if required && strings.TrimSpace(value) == "" {
		return invalid("%s is required", field)
	}
	if utf8.RuneCountInString(value) > max {
		return invalid("%s must be at most %d characters", field, max)
	}
	return nil
}

func checkURL(raw string) error {
	if len(raw) > 200 {
		return invalid("url must be at most 200 characters")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ftp" && u.Scheme != "ftps") || u.Host == "" {
		return invalid("enter a valid URL")
	}
	return nil
}

func move(ctx context.Context, db *gorm.DB, list ordering.List, id string, dir Direction) error {
	if dir == Up {
		return ordering.MoveUp(ctx, db, list, id)
	}
	return ordering.MoveDown(ctx, db, list, id)
}
