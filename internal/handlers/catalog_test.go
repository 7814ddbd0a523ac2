package handlers

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markbox/internal/models"
)

type categoryOutcome struct {
	Next string          `json:"next"`
	Data models.Category `json:"data"`
}

type itemOutcome struct {
	Next  string            `json:"next"`
	Query map[string]string `json:"query"`
	Data  models.Item       `json:"data"`
}

func (e *testEnv) createCategory(t *testing.T, token, name string) models.Category {
	t.Helper()
	w := e.json(t, "POST", "/categories", token, `{"name":"`+name+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[categoryOutcome](t, w).Data
}

type createResult struct {
	code int
	body string
	out  itemOutcome
}

func (e *testEnv) createItem(t *testing.T, token string, fields map[string]string, file []byte) createResult {
	t.Helper()
	body, ct := multipartBody(t, fields, file)
	w := e.do(t, "POST", "/items", token, body, ct)
	res := createResult{code: w.Code, body: w.Body.String()}
	if w.Code == http.StatusCreated {
		res.out = decode[itemOutcome](t, w)
	}
	return res
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 3))))
	return buf.Bytes()
}

func categoryNames(list CategoryListResponse) []string {
	res := make([]string, len(list.Results))
	for i, c := range list.Results {
		res[i] = c.Name
	}
	return res
}

func TestCategoriesCRUDAndMove(t *testing.T) {
	env := setupTest(t)
	access := env.signup(t, "a@example.com")

	a := env.createCategory(t, access, "A")
	env.createCategory(t, access, "B")
	c := env.createCategory(t, access, "C")

	w := env.json(t, "GET", "/categories", access, "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[CategoryListResponse](t, w)
	assert.Equal(t, []string{"C", "B", "A"}, categoryNames(list))
	assert.Equal(t, c.ID, list.Page.FirstID)
	assert.Equal(t, a.ID, list.Page.LastID)

	w = env.json(t, "POST", "/categories/"+a.ID+"/up", access, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, NextCategoryList, decode[Outcome](t, w).Next)

	// первая категория вверх не двигается, ответ всё равно успешный
	w = env.json(t, "POST", "/categories/"+c.ID+"/up", access, "")
	require.Equal(t, http.StatusOK, w.Code)

	list = decode[CategoryListResponse](t, env.json(t, "GET", "/categories", access, ""))
	assert.Equal(t, []string{"C", "A", "B"}, categoryNames(list))

	w = env.json(t, "PUT", "/categories/"+a.ID, access, `{"name":"Renamed"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.json(t, "GET", "/categories/"+a.ID, access, "")
	assert.Equal(t, "Renamed", decode[models.Category](t, w).Name)

	w = env.json(t, "POST", "/categories", access, `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.json(t, "DELETE", "/categories/"+a.ID, access, "")
	require.Equal(t, http.StatusOK, w.Code)
	w = env.json(t, "GET", "/categories/"+a.ID, access, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCategoryGuards(t *testing.T) {
	env := setupTest(t)
	owner := env.signup(t, "owner@example.com")
	stranger := env.signup(t, "stranger@example.com")
	cat := env.createCategory(t, owner, "Mine")

	for _, req := range []struct{ method, path, body string }{
		{"GET", "/categories/" + cat.ID, ""},
		{"PUT", "/categories/" + cat.ID, `{"name":"x"}`},
		{"DELETE", "/categories/" + cat.ID, ""},
		{"POST", "/categories/" + cat.ID + "/down", ""},
		{"GET", "/items?category=" + cat.ID, ""},
	} {
		w := env.json(t, req.method, req.path, stranger, req.body)
		assert.Equal(t, http.StatusForbidden, w.Code, req.path)
	}

	w := env.json(t, "GET", "/categories/missing", owner, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.json(t, "GET", "/categories", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCategoryPagination(t *testing.T) {
	env := setupTest(t)
	access := env.signup(t, "p@example.com")
	for i := 0; i < 12; i++ {
		env.createCategory(t, access, fmt.Sprintf("c%02d", i))
	}

	w := env.json(t, "GET", "/categories?page=last&sort=x", access, "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[CategoryListResponse](t, w)
	assert.Len(t, list.Results, 2)
	assert.Equal(t, 2, list.Page.Number)
	assert.True(t, list.Page.HasPrevious)
	assert.False(t, list.Page.HasNext)
	assert.Equal(t, "page=1&sort=x", list.Page.PreviousQuery)

	w = env.json(t, "GET", "/categories?page=abc", access, "")
	list = decode[CategoryListResponse](t, w)
	assert.Equal(t, 1, list.Page.Number)
	assert.Equal(t, "page=2", list.Page.NextQuery)

	w = env.json(t, "GET", "/categories?page=3", access, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestItemsWithImages(t *testing.T) {
	env := setupTest(t)
	access := env.signup(t, "i@example.com")
	cat := env.createCategory(t, access, "Pics")

	res := env.createItem(t, access, map[string]string{
		"title":    "Gopher",
		"url":      "https://go.dev",
		"mark":     "1",
		"category": cat.ID,
	}, pngBytes(t))
	require.Equal(t, http.StatusCreated, res.code, res.body)
	item := res.out.Data
	assert.Equal(t, NextItemList, res.out.Next)
	assert.Equal(t, cat.ID, res.out.Query["category"])
	require.NotNil(t, item.Image)
	first := *item.Image
	assert.True(t, env.store.Has(first))

	w := env.json(t, "GET", "/items/"+item.ID+"/image", access, "")
	assert.Equal(t, http.StatusFound, w.Code)

	body, ct := multipartBody(t, map[string]string{"title": "Gopher 2"}, pngBytes(t))
	w = env.do(t, "PUT", "/items/"+item.ID, access, body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[itemOutcome](t, w).Data
	require.NotNil(t, updated.Image)
	assert.False(t, env.store.Has(first))
	assert.True(t, env.store.Has(*updated.Image))

	body, ct = multipartBody(t, map[string]string{"title": "Gopher 3", "image_clear": "true"}, nil)
	w = env.do(t, "PUT", "/items/"+item.ID, access, body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Nil(t, decode[itemOutcome](t, w).Data.Image)
	assert.Equal(t, 0, env.store.Len())

	w = env.json(t, "GET", "/items/"+item.ID+"/image", access, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.json(t, "DELETE", "/items/"+item.ID, access, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, cat.ID, decode[Outcome](t, w).Query["category"])
}

func TestItemValidationErrors(t *testing.T) {
	env := setupTest(t)
	access := env.signup(t, "v@example.com")

	for _, fields := range []map[string]string{
		{"title": ""},
		{"title": "t", "mark": "9"},
		{"title": "t", "mark": "x"},
		{"title": "t", "url": "nope"},
		{"title": strings.Repeat("t", 101)},
	} {
		res := env.createItem(t, access, fields, nil)
		assert.Equal(t, http.StatusBadRequest, res.code, fields)
	}

	res := env.createItem(t, access, map[string]string{"title": "t"}, []byte("plain text, not an image"))
	assert.Equal(t, http.StatusBadRequest, res.code)

	// заголовок PNG объявляет холст 8000x8000
	bomb := pngBytes(t)
	binary.BigEndian.PutUint32(bomb[16:20], 8000)
	binary.BigEndian.PutUint32(bomb[20:24], 8000)
	binary.BigEndian.PutUint32(bomb[29:33], crc32.ChecksumIEEE(bomb[12:29]))
	res = env.createItem(t, access, map[string]string{"title": "t"}, bomb)
	assert.Equal(t, http.StatusBadRequest, res.code, res.body)
	assert.Equal(t, 0, env.store.Len())
}

func TestItemListBucketsAndMoves(t *testing.T) {
	env := setupTest(t)
	access := env.signup(t, "m@example.com")
	cat := env.createCategory(t, access, "Work")

	ids := map[string]string{}
	for _, title := range []string{"x1", "x2", "x3"} {
		res := env.createItem(t, access, map[string]string{"title": title}, nil)
		require.Equal(t, http.StatusCreated, res.code, res.body)
		ids[title] = res.out.Data.ID
	}
	res := env.createItem(t, access, map[string]string{"title": "w1", "category": cat.ID}, nil)
	require.Equal(t, http.StatusCreated, res.code)

	titles := func(path string) []string {
		w := env.json(t, "GET", path, access, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		list := decode[ItemListResponse](t, w)
		out := make([]string, len(list.Results))
		for i, it := range list.Results {
			out[i] = it.Title
		}
		return out
	}
	assert.Equal(t, []string{"x3", "x2", "x1"}, titles("/items"))
	assert.Equal(t, []string{"w1"}, titles("/items?category="+cat.ID))

	w := env.json(t, "POST", "/items/"+ids["x1"]+"/up?page=1", access, "")
	require.Equal(t, http.StatusOK, w.Code)
	out := decode[Outcome](t, w)
	assert.Equal(t, "1", out.Query["page"])
	assert.Equal(t, []string{"x3", "x1", "x2"}, titles("/items"))

	w = env.json(t, "POST", "/items/"+ids["x2"]+"/down", access, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"x3", "x1", "x2"}, titles("/items"))

	stranger := env.signup(t, "s@example.com")
	w = env.json(t, "POST", "/items/"+ids["x2"]+"/down", stranger, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.json(t, "GET", "/items/"+ids["x2"], stranger, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.json(t, "GET", "/items/unknown", access, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
