package ordering

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type entry struct {
	ID        string `gorm:"primaryKey"`
	Title     string
	OwnerID   string
	Bucket    *string
	Order     int `gorm:"column:sort_order;not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entry{}))
	return db
}

func ownerList(owner string) List {
	return List{
		Model: &entry{},
		Scope: func(db *gorm.DB) *gorm.DB { return db.Where("owner_id = ?", owner) },
	}
}

func insertN(t *testing.T, db *gorm.DB, owner string, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		e := entry{ID: fmt.Sprintf("%s-%d", owner, i), Title: fmt.Sprintf("e%d", i), OwnerID: owner}
		require.NoError(t, Insert(context.Background(), db, ownerList(owner), &e))
		ids[i] = e.ID
	}
	return ids
}

// orders returns id -> sort_order for the owner.
func orders(t *testing.T, db *gorm.DB, owner string) map[string]int {
	t.Helper()
	var es []entry
	require.NoError(t, db.Where("owner_id = ?", owner).Find(&es).Error)
	m := make(map[string]int, len(es))
	for _, e := range es {
		m[e.ID] = e.Order
	}
	return m
}

func display(t *testing.T, db *gorm.DB, owner string) []string {
	t.Helper()
	p, err := Paginate[entry](context.Background(), db, ownerList(owner), 1, 100)
	require.NoError(t, err)
	ids := make([]string, len(p.Records))
	for i, e := range p.Records {
		ids[i] = e.ID
	}
	return ids
}

func TestInsertPutsNewestFirst(t *testing.T) {
	db := setupDB(t)
	ids := insertN(t, db, "o1", 4)

	got := orders(t, db, "o1")
	for i, id := range ids {
		assert.Equal(t, len(ids)-1-i, got[id], id)
	}
	assert.Equal(t, []string{ids[3], ids[2], ids[1], ids[0]}, display(t, db, "o1"))
}

func TestInsertLeavesOtherOwnersAlone(t *testing.T) {
	db := setupDB(t)
	other := insertN(t, db, "o2", 2)
	insertN(t, db, "o1", 3)

	got := orders(t, db, "o2")
	assert.Equal(t, 1, got[other[0]])
	assert.Equal(t, 0, got[other[1]])
}

func TestMoveUpSwapsWithPreceding(t *testing.T) {
	db := setupDB(t)
	ids := insertN(t, db, "o1", 3)
	// ids[2] has order 0, ids[1] order 1, ids[0] order 2
	ctx := context.Background()

	require.NoError(t, MoveUp(ctx, db, ownerList("o1"), ids[1]))
	got := orders(t, db, "o1")
	assert.Equal(t, 0, got[ids[1]])
	assert.Equal(t, 1, got[ids[2]])
	assert.Equal(t, 2, got[ids[0]])
	assert.Equal(t, []string{ids[1], ids[2], ids[0]}, display(t, db, "o1"))
}

func TestMoveUpThenDownRestores(t *testing.T) {
	db := setupDB(t)
	ids := insertN(t, db, "o1", 5)
	ctx := context.Background()
	list := ownerList("o1")
	before := orders(t, db, "o1")

	for _, id := range ids[:4] { // everything except the current head
		require.NoError(t, MoveUp(ctx, db, list, id))
		require.NoError(t, MoveDown(ctx, db, list, id))
		assert.Equal(t, before, orders(t, db, "o1"), id)
	}
	for _, id := range ids[1:] { // everything except the current tail
		require.NoError(t, MoveDown(ctx, db, list, id))
		require.NoError(t, MoveUp(ctx, db, list, id))
		assert.Equal(t, before, orders(t, db, "o1"), id)
	}
}

func TestMoveAtBoundary(t *testing.T) {
	db := setupDB(t)
	ids := insertN(t, db, "o1", 3)
	ctx := context.Background()
	list := ownerList("o1")
	before := orders(t, db, "o1")

	assert.ErrorIs(t, MoveUp(ctx, db, list, ids[2]), ErrNoPrecedingSibling)
	assert.ErrorIs(t, MoveDown(ctx, db, list, ids[0]), ErrNoFollowingSibling)
	assert.Equal(t, before, orders(t, db, "o1"))
}

func TestMoveOutsideScope(t *testing.T) {
	db := setupDB(t)
	ids := insertN(t, db, "o1", 2)
	insertN(t, db, "o2", 2)

	assert.ErrorIs(t, MoveDown(context.Background(), db, ownerList("o2"), ids[1]), ErrNotFound)
	assert.ErrorIs(t, MoveUp(context.Background(), db, ownerList("o1"), "missing"), ErrNotFound)
}

func TestMoveSkipsGaps(t *testing.T) {
	db := setupDB(t)
	bucket := "b1"
	rows := []entry{
		{ID: "a", OwnerID: "o1", Bucket: &bucket, Order: 0},
		{ID: "x", OwnerID: "o1", Order: 1},
		{ID: "b", OwnerID: "o1", Bucket: &bucket, Order: 2},
		{ID: "y", OwnerID: "o1", Order: 3},
		{ID: "c", OwnerID: "o1", Bucket: &bucket, Order: 5},
	}
	require.NoError(t, db.Create(&rows).Error)
	list := List{Model: &entry{}, Scope: func(db *gorm.DB) *gorm.DB {
		return db.Where("owner_id = ? AND bucket = ?", "o1", bucket)
	}}

	require.NoError(t, MoveDown(context.Background(), db, list, "b"))
	got := orders(t, db, "o1")
	assert.Equal(t, 5, got["b"])
	assert.Equal(t, 2, got["c"])
	assert.Equal(t, 1, got["x"])
	assert.Equal(t, 3, got["y"])
}

// failNth регистрирует callback, который ломает n-й вызов операции.
func failNth(t *testing.T, register func(name string, fn func(*gorm.DB)) error, n int) {
	t.Helper()
	calls := 0
	require.NoError(t, register("test:fail_nth", func(tx *gorm.DB) {
		calls++
		if calls == n {
			tx.AddError(errors.New("write failed"))
		}
	}))
}

func TestSwapRollsBackOnSecondUpdate(t *testing.T) {
	db := setupDB(t)
	ids := insertN(t, db, "o1", 3)
	before := orders(t, db, "o1")

	failNth(t, db.Callback().Update().Before("gorm:update").Register, 2)
	err := MoveUp(context.Background(), db, ownerList("o1"), ids[1])
	require.Error(t, err)
	assert.Equal(t, before, orders(t, db, "o1"))
}

func TestInsertRollsBackShiftOnCreateFailure(t *testing.T) {
	db := setupDB(t)
	insertN(t, db, "o1", 3)
	before := orders(t, db, "o1")

	failNth(t, db.Callback().Create().Before("gorm:create").Register, 1)
	e := entry{ID: "new", Title: "new", OwnerID: "o1"}
	err := Insert(context.Background(), db, ownerList("o1"), &e)
	require.Error(t, err)
	assert.Equal(t, before, orders(t, db, "o1"))
}

func TestAnchorRunsInsideTransaction(t *testing.T) {
	db := setupDB(t)
	ids := insertN(t, db, "o1", 2)
	before := orders(t, db, "o1")

	anchored := 0
	list := ownerList("o1")
	list.Anchor = func(tx *gorm.DB) error {
		anchored++
		return nil
	}
	require.NoError(t, Insert(context.Background(), db, list, &entry{ID: "n1", OwnerID: "o1"}))
	require.NoError(t, MoveDown(context.Background(), db, list, "n1"))
	assert.Equal(t, 2, anchored)

	// ошибка блокировки отменяет операцию целиком
	errLock := errors.New("lock timeout")
	list.Anchor = func(tx *gorm.DB) error { return errLock }
	before = orders(t, db, "o1")
	assert.ErrorIs(t, Insert(context.Background(), db, list, &entry{ID: "n2", OwnerID: "o1"}), errLock)
	assert.ErrorIs(t, MoveUp(context.Background(), db, list, ids[0]), errLock)
	assert.Equal(t, before, orders(t, db, "o1"))
}
