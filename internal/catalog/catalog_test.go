package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"markbox/internal/db"
	"markbox/internal/models"
	"markbox/internal/ordering"
	"markbox/internal/services/images"
	"markbox/internal/services/storage"
)

func setupCatalog(t *testing.T) (*Service, *gorm.DB, *storage.Memory) {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	gdb, err := db.NewDB("file:"+name+"?mode=memory&cache=shared", false)
	require.NoError(t, err)
	store := storage.NewMemory()
	return New(gdb, store, 10, nil), gdb, store
}

func createUser(t *testing.T, gdb *gorm.DB, email string) *models.User {
	t.Helper()
	u := models.User{Email: email, IsActive: true}
	require.NoError(t, gdb.Create(&u).Error)
	return &u
}

func pngImage(t *testing.T) *images.Image {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	img, err := images.Process(&buf)
	require.NoError(t, err)
	return img
}

func names[T any](records []T, name func(T) string) []string {
	res := make([]string, len(records))
	for i, r := range records {
		res[i] = name(r)
	}
	return res
}

func categoryNames(p ordering.Page[models.Category]) []string {
	return names(p.Records, func(c models.Category) string { return c.Name })
}

func itemTitles(p ordering.Page[models.Item]) []string {
	return names(p.Records, func(i models.Item) string { return i.Title })
}

func TestCategoriesInsertAndMove(t *testing.T) {
	svc, gdb, _ := setupCatalog(t)
	ctx := context.Background()
	u := createUser(t, gdb, "a@example.com")

	ids := map[string]string{}
	for _, n := range []string{"A", "B", "C"} {
		c, err := svc.CreateCategory(ctx, u, n)
		require.NoError(t, err)
		ids[n] = c.ID
	}
	p, err := svc.ListCategories(ctx, u, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "A"}, categoryNames(p))

	require.NoError(t, svc.MoveCategory(ctx, u, ids["A"], Up))
	p, _ = svc.ListCategories(ctx, u, 1)
	assert.Equal(t, []string{"C", "A", "B"}, categoryNames(p))

	err = svc.MoveCategory(ctx, u, ids["C"], Up)
	assert.ErrorIs(t, err, ordering.ErrNoPrecedingSibling)
	err = svc.MoveCategory(ctx, u, ids["B"], Down)
	assert.ErrorIs(t, err, ordering.ErrNoFollowingSibling)

	all, err := svc.AllCategories(ctx, u)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCategoryValidationAndAccess(t *testing.T) {
	svc, gdb, _ := setupCatalog(t)
	ctx := context.Background()
	owner := createUser(t, gdb, "owner@example.com")
	stranger := createUser(t, gdb, "stranger@example.com")
	admin := createUser(t, gdb, "admin@example.com")
	require.NoError(t, gdb.Model(admin).Update("is_superuser", true).Error)
	admin.IsSuperuser = true

	_, err := svc.CreateCategory(ctx, owner, "   ")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = svc.CreateCategory(ctx, owner, strings.Repeat("я", 101))
	assert.ErrorIs(t, err, ErrInvalid)

	cat, err := svc.CreateCategory(ctx, owner, "Books")
	require.NoError(t, err)

	_, err = svc.GetCategory(ctx, stranger, cat.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, svc.MoveCategory(ctx, stranger, cat.ID, Up), ErrForbidden)
	_, err = svc.GetCategory(ctx, owner, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	updated, err := svc.UpdateCategory(ctx, admin, cat.ID, "Novels")
	require.NoError(t, err)
	assert.Equal(t, "Novels", updated.Name)

	p, err := svc.ListCategories(ctx, stranger, 1)
	require.NoError(t, err)
	assert.Empty(t, p.Records)
}

func TestItemsPerCategory(t *testing.T) {
	svc, gdb, _ := setupCatalog(t)
	ctx := context.Background()
	u := createUser(t, gdb, "a@example.com")
	cat, err := svc.CreateCategory(ctx, u, "Links")
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		_, err := svc.CreateItem(ctx, u, ItemInput{Title: fmt.Sprintf("c%d", i), CategoryID: &cat.ID})
		require.NoError(t, err)
		_, err = svc.CreateItem(ctx, u, ItemInput{Title: fmt.Sprintf("u%d", i)})
		require.NoError(t, err)
	}

	p, err := svc.ListItems(ctx, u, &cat.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c3", "c2", "c1"}, itemTitles(p))

	p, err = svc.ListItems(ctx, u, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"u3", "u2", "u1"}, itemTitles(p))

	// перемещение не выходит за пределы категории
	first := p.Records[0]
	assert.ErrorIs(t, svc.MoveItem(ctx, u, first.ID, Up), ordering.ErrNoPrecedingSibling)
	require.NoError(t, svc.MoveItem(ctx, u, first.ID, Down))
	p, _ = svc.ListItems(ctx, u, nil, 1)
	assert.Equal(t, []string{"u2", "u3", "u1"}, itemTitles(p))

	other := createUser(t, gdb, "b@example.com")
	_, err = svc.ListItems(ctx, other, &cat.ID, 1)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.CreateItem(ctx, other, ItemInput{Title: "x", CategoryID: &cat.ID})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSuperuserListsForeignCategoryItems(t *testing.T) {
	svc, gdb, _ := setupCatalog(t)
	ctx := context.Background()
	owner := createUser(t, gdb, "owner@example.com")
	admin := createUser(t, gdb, "admin@example.com")
	require.NoError(t, gdb.Model(admin).Update("is_superuser", true).Error)
	admin.IsSuperuser = true

	cat, err := svc.CreateCategory(ctx, owner, "Private")
	require.NoError(t, err)
	for _, title := range []string{"p1", "p2"} {
		_, err := svc.CreateItem(ctx, owner, ItemInput{Title: title, CategoryID: &cat.ID})
		require.NoError(t, err)
	}
	_, err = svc.CreateItem(ctx, admin, ItemInput{Title: "mine"})
	require.NoError(t, err)

	p, err := svc.ListItems(ctx, admin, &cat.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, itemTitles(p))

	// без категории суперпользователь видит только свои элементы
	p, err = svc.ListItems(ctx, admin, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"mine"}, itemTitles(p))
}

func TestItemValidation(t *testing.T) {
	svc, gdb, _ := setupCatalog(t)
	ctx := context.Background()
	u := createUser(t, gdb, "a@example.com")

	bad := []ItemInput{
		{Title: ""},
		{Title: strings.Repeat("x", 101)},
		{Title: "t", URL: ptr("not a url")},
		{Title: "t", URL: ptr("https://example.com/" + strings.Repeat("a", 200))},
		{Title: "t", Description: ptr(strings.Repeat("d", 2001))},
		{Title: "t", Mark: markPtr(4)},
	}
	for i, in := range bad {
		_, err := svc.CreateItem(ctx, u, in)
		assert.ErrorIs(t, err, ErrInvalid, "case %d", i)
	}

	item, err := svc.CreateItem(ctx, u, ItemInput{
		Title:       " Go ",
		Description: ptr(""),
		URL:         ptr("https://go.dev"),
		Mark:        markPtr(models.MarkTriangle),
	})
	require.NoError(t, err)
	assert.Equal(t, "Go", item.Title)
	assert.Nil(t, item.Description)
	assert.Equal(t, models.MarkTriangle, *item.Mark)
}

func TestItemImageLifecycle(t *testing.T) {
	svc, gdb, store := setupCatalog(t)
	ctx := context.Background()
	u := createUser(t, gdb, "a@example.com")

	item, err := svc.CreateItem(ctx, u, ItemInput{Title: "pic", Image: pngImage(t)})
	require.NoError(t, err)
	first := item.ImageName()
	require.True(t, strings.HasPrefix(first, "images/"))
	assert.True(t, strings.HasSuffix(first, ".png"))
	assert.True(t, store.Has(first))

	url, err := svc.ImageURL(ctx, u, item.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, url)

	item, err = svc.UpdateItem(ctx, u, item.ID, ItemInput{Title: "pic2", Image: pngImage(t)})
	require.NoError(t, err)
	second := item.ImageName()
	assert.NotEqual(t, first, second)
	assert.False(t, store.Has(first))
	assert.True(t, store.Has(second))

	// обновление без нового файла сохраняет изображение
	item, err = svc.UpdateItem(ctx, u, item.ID, ItemInput{Title: "pic3"})
	require.NoError(t, err)
	assert.Equal(t, second, item.ImageName())
	assert.True(t, store.Has(second))

	item, err = svc.UpdateItem(ctx, u, item.ID, ItemInput{Title: "pic4", ClearImage: true})
	require.NoError(t, err)
	assert.Nil(t, item.Image)
	assert.False(t, store.Has(second))

	var stored models.Item
	require.NoError(t, gdb.First(&stored, "id = ?", item.ID).Error)
	assert.Nil(t, stored.Image)
	assert.Equal(t, "pic4", stored.Title)

	_, err = svc.ImageURL(ctx, u, item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteItemRemovesImage(t *testing.T) {
	svc, gdb, store := setupCatalog(t)
	ctx := context.Background()
	u := createUser(t, gdb, "a@example.com")
	other := createUser(t, gdb, "b@example.com")

	item, err := svc.CreateItem(ctx, u, ItemInput{Title: "pic", Image: pngImage(t)})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteItem(ctx, other, item.ID), ErrForbidden)
	require.NoError(t, svc.DeleteItem(ctx, u, item.ID))
	assert.Equal(t, 0, store.Len())
	assert.ErrorIs(t, svc.DeleteItem(ctx, u, item.ID), ErrNotFound)
}

func TestDeleteCategoryCascades(t *testing.T) {
	svc, gdb, store := setupCatalog(t)
	ctx := context.Background()
	u := createUser(t, gdb, "a@example.com")
	cat, err := svc.CreateCategory(ctx, u, "Photos")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := svc.CreateItem(ctx, u, ItemInput{Title: "p", CategoryID: &cat.ID, Image: pngImage(t)})
		require.NoError(t, err)
	}
	kept, err := svc.CreateItem(ctx, u, ItemInput{Title: "kept", Image: pngImage(t)})
	require.NoError(t, err)
	require.Equal(t, 3, store.Len())

	require.NoError(t, svc.DeleteCategory(ctx, u, cat.ID))
	assert.Equal(t, 1, store.Len())
	assert.True(t, store.Has(kept.ImageName()))

	var count int64
	gdb.Model(&models.Item{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestHooksCanAbortUpdate(t *testing.T) {
	svc, gdb, store := setupCatalog(t)
	ctx := context.Background()
	u := createUser(t, gdb, "a@example.com")
	item, err := svc.CreateItem(ctx, u, ItemInput{Title: "pic"})
	require.NoError(t, err)

	boom := errors.New("boom")
	svc.SetHooks(Hooks{BeforeSave: func(context.Context, *models.Item, *models.Item) error { return boom }})

	_, err = svc.UpdateItem(ctx, u, item.ID, ItemInput{Title: "new", Image: pngImage(t)})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, store.Len())

	var stored models.Item
	require.NoError(t, gdb.First(&stored, "id = ?", item.ID).Error)
	assert.Equal(t, "pic", stored.Title)
}

func ptr(s string) *string { return &s }

func markPtr(m models.Mark) *models.Mark { return &m }

func TestListChangesLockOwnerRow(t *testing.T) {
	svc, gdb, _ := setupCatalog(t)
	ctx := context.Background()
	u := createUser(t, gdb, "lock@example.com")

	var locked []string
	require.NoError(t, gdb.Callback().Query().Before("gorm:query").Register("test:locks", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Clauses["FOR"]; ok {
			locked = append(locked, tx.Statement.Table)
		}
	}))

	cat, err := svc.CreateCategory(ctx, u, "First")
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, locked)

	locked = nil
	_, err = svc.CreateItem(ctx, u, ItemInput{Title: "a", CategoryID: &cat.ID})
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, u, ItemInput{Title: "b", CategoryID: &cat.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "users"}, locked)

	// перемещение блокирует владельца раньше строк списка
	locked = nil
	p, err := svc.ListItems(ctx, u, &cat.ID, 1)
	require.NoError(t, err)
	require.NoError(t, svc.MoveItem(ctx, u, p.Records[0].ID, Down))
	require.NotEmpty(t, locked)
	assert.Equal(t, "users", locked[0])
}
