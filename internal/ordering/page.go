package ordering

import (
	"context"
	"errors"
	"strconv"

	"gorm.io/gorm"
)

var ErrPageOutOfRange = errors.New("page out of range")

// Page хранит страницу отсортированного списка.
type Page[T any] struct {
	Records     []T
	Number      int
	NumPages    int
	Count       int64
	HasPrevious bool
	HasNext     bool
}

// LastPage запрашивает последнюю страницу списка.
const LastPage = -1

// ParsePage разбирает номер страницы из запроса: "last" даёт LastPage, пустое
// или нечисловое значение даёт первую страницу, числа меньше 1 дают 0 (вне
// диапазона).
func ParsePage(raw string) int {
	if raw == "last" {
		return LastPage
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 1
	}
	if n < 1 {
		return 0
	}
	return n
}

// Paginate возвращает страницу page (с 1, либо LastPage) списка list
// в порядке DisplayOrder. Пустой список всегда имеет одну пустую страницу.
func Paginate[T any](ctx context.Context, db *gorm.DB, list List, page, size int) (Page[T], error) {
	var p Page[T]
	if size <= 0 {
		size = 10
	}
	tx := db.WithContext(ctx)
	if err := list.query(tx).Count(&p.Count).Error; err != nil {
		return p, err
	}
	p.NumPages = int((p.Count + int64(size) - 1) / int64(size))
	if p.NumPages == 0 {
		p.NumPages = 1
	}
	if page == LastPage {
		page = p.NumPages
	}
	if page < 1 || page > p.NumPages {
		return p, ErrPageOutOfRange
	}
	p.Number = page
	p.HasPrevious = page > 1
	p.HasNext = page < p.NumPages

	p.Records = make([]T, 0, size)
	err := list.query(tx).
		Order(DisplayOrder).
		Limit(size).Offset((page - 1) * size).
		Find(&p.Records).Error
	return p, err
}
