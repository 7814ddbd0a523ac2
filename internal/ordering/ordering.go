// Package ordering поддерживает ручной порядок записей внутри набора
// «соседей» (категории владельца, элементы одной категории и т. п.).
//
// Порядок хранится в колонке sort_order: меньшее значение стоит выше в
// списке, при равенстве новее выше (created_at DESC).
package ordering

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const Column = "sort_order"

// DisplayOrder задаёт порядок вывода списков.
const DisplayOrder = "sort_order asc, created_at desc"

var (
	ErrNotFound           = errors.New("record not found in list")
	ErrNoPrecedingSibling = errors.New("no preceding sibling")
	ErrNoFollowingSibling = errors.New("no following sibling")
)

// List описывает набор соседей: модель и условие отбора.
type List struct {
	Model any
	Scope func(*gorm.DB) *gorm.DB
	// Anchor блокирует строку, общую для всего набора (например, владельца),
	// чтобы параллельные вставки и перемещения шли по очереди. Строки набора
	// блокировать нельзя: пустой набор нечем закрыть.
	Anchor func(*gorm.DB) error
}

func (l List) lock(tx *gorm.DB) error {
	if l.Anchor == nil {
		return nil
	}
	if err := l.Anchor(tx); err != nil {
		return fmt.Errorf("lock list: %w", err)
	}
	return nil
}

func (l List) query(tx *gorm.DB) *gorm.DB {
	q := tx.Model(l.Model)
	if l.Scope != nil {
		q = q.Scopes(l.Scope)
	}
	return q
}

type position struct {
	ID    string
	Order int `gorm:"column:sort_order"`
}

// Insert ставит record в начало: всем записям bump прибавляется 1,
// затем record создаётся с порядком 0. Всё в одной транзакции.
func Insert(ctx context.Context, db *gorm.DB, bump List, record any) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := bump.lock(tx); err != nil {
			return err
		}
		q := bump.query(tx)
		if bump.Scope == nil {
			q = q.Where("1 = 1")
		}
		if err := q.UpdateColumn(Column, gorm.Expr(Column+" + ?", 1)).Error; err != nil {
			return fmt.Errorf("shift siblings: %w", err)
		}
		if err := tx.Omit(clause.Associations).Create(record).Error; err != nil {
			return fmt.Errorf("create record: %w", err)
		}
		return nil
	})
}

// MoveUp меняет местами запись id и ближайшего соседа выше.
func MoveUp(ctx context.Context, db *gorm.DB, list List, id string) error {
	return swap(ctx, db, list, id, true)
}

// MoveDown меняет местами запись id и ближайшего соседа ниже.
func MoveDown(ctx context.Context, db *gorm.DB, list List, id string) error {
	return swap(ctx, db, list, id, false)
}

func swap(ctx context.Context, db *gorm.DB, list List, id string, up bool) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := list.lock(tx); err != nil {
			return err
		}
		lock := clause.Locking{Strength: "UPDATE"}

		var target position
		err := list.query(tx).Clauses(lock).
			Select("id", Column).
			Where("id = ?", id).
			Take(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var neighbour position
		q := list.query(tx).Clauses(lock).Select("id", Column)
		if up {
			q = q.Where(Column+" < ?", target.Order).Order(Column + " desc")
		} else {
			q = q.Where(Column+" > ?", target.Order).Order(Column + " asc")
		}
		err = q.Take(&neighbour).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if up {
				return ErrNoPrecedingSibling
			}
			return ErrNoFollowingSibling
		}
		if err != nil {
			return err
		}

		if err := tx.Model(list.Model).Where("id = ?", target.ID).
			Update(Column, neighbour.Order).Error; err != nil {
			return err
		}
		return tx.Model(list.Model).Where("id = ?", neighbour.ID).
			Update(Column, target.Order).Error
	})
}
