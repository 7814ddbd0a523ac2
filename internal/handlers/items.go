package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"markbox/internal/catalog"
	"markbox/internal/models"
	"markbox/internal/notices"
	"markbox/internal/services/images"
)

// ItemForm содержит поля multipart-формы элемента.
type ItemForm struct {
	Title       string `form:"title"`
	Description string `form:"description"`
	URL         string `form:"url"`
	Mark        string `form:"mark"`
	Category    string `form:"category"`
	ImageClear  bool   `form:"image_clear"`
}

type ItemListResponse struct {
	Results    []models.Item `json:"results"`
	CategoryID *string       `json:"category_id"`
	Page       PageInfo      `json:"page"`
}

func itemID(i models.Item) string { return i.ID }

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// itemInput разбирает форму и загруженный файл.
func itemInput(c *gin.Context) (catalog.ItemInput, error) {
	var f ItemForm
	if err := c.ShouldBind(&f); err != nil {
		return catalog.ItemInput{}, errors.Join(catalog.ErrInvalid, err)
	}
	in := catalog.ItemInput{
		Title:       f.Title,
		Description: optional(f.Description),
		URL:         optional(f.URL),
		CategoryID:  optional(f.Category),
		ClearImage:  f.ImageClear,
	}
	if f.Mark != "" {
		n, err := strconv.Atoi(f.Mark)
		if err != nil {
			return in, errors.Join(catalog.ErrInvalid, errors.New("select a valid mark"))
		}
		m := models.Mark(n)
		in.Mark = &m
	}
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return in, nil
	}
	if err != nil {
		return in, errors.Join(catalog.ErrInvalid, err)
	}
	file, err := fh.Open()
	if err != nil {
		return in, err
	}
	defer file.Close()
	img, err := images.Process(file)
	if err != nil {
		return in, err
	}
	in.Image = img
	return in, nil
}

func itemListQuery(categoryID *string) map[string]string {
	q := map[string]string{}
	if categoryID != nil {
		q["category"] = *categoryID
	}
	return q
}

// ListItems godoc
// @Summary Элементы категории
// @Description Элементы в ручном порядке, по 10 на странице. Без параметра category отдаются элементы без категории.
// @Tags items
// @Security BearerAuth
// @Produce json
// @Param category query string false "ID категории"
// @Param page query string false "номер страницы или last"
// @Success 200 {object} ItemListResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /items [get]
func ListItems(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		categoryID := optional(c.Query("category"))
		p, err := svc.ListItems(c.Request.Context(), currentUser(c), categoryID, pageNumber(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, ItemListResponse{
			Results:    p.Records,
			CategoryID: categoryID,
			Page:       pageInfo(c, p, itemID),
		})
	}
}

// CreateItem godoc
// @Summary Создание элемента
// @Description Новый элемент становится первым в своей категории. Изображение проверяется и перекодируется.
// @Tags items
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "заголовок"
// @Param description formData string false "описание"
// @Param url formData string false "URL"
// @Param mark formData int false "метка: 1, 2 или 3"
// @Param category formData string false "ID категории"
// @Param image formData file false "изображение"
// @Success 201 {object} Outcome
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /items [post]
func CreateItem(svc *catalog.Service, inbox notices.Inbox) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, err := itemInput(c)
		if err != nil {
			fail(c, err)
			return
		}
		item, err := svc.CreateItem(c.Request.Context(), currentUser(c), in)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, inbox, http.StatusCreated, Outcome{
			Next:   NextItemList,
			Query:  itemListQuery(item.CategoryID),
			Notice: notices.Success("The item has been created."),
			Data:   item,
		})
	}
}

// GetItem godoc
// @Summary Элемент
// @Tags items
// @Security BearerAuth
// @Produce json
// @Param id path string true "ID элемента"
// @Success 200 {object} models.Item
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /items/{id} [get]
func GetItem(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := svc.GetItem(c.Request.Context(), currentUser(c), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

// UpdateItem godoc
// @Summary Изменение элемента
// @Description Новое изображение заменяет старое; image_clear=true удаляет изображение. Категория не меняется.
// @Tags items
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "ID элемента"
// @Param title formData string true "заголовок"
// @Param description formData string false "описание"
// @Param url formData string false "URL"
// @Param mark formData int false "метка: 1, 2 или 3"
// @Param image formData file false "изображение"
// @Param image_clear formData bool false "удалить изображение"
// @Success 200 {object} Outcome
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /items/{id} [put]
func UpdateItem(svc *catalog.Service, inbox notices.Inbox) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, err := itemInput(c)
		if err != nil {
			fail(c, err)
			return
		}
		item, err := svc.UpdateItem(c.Request.Context(), currentUser(c), c.Param("id"), in)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, inbox, http.StatusOK, Outcome{
			Next:   NextItemList,
			Query:  itemListQuery(item.CategoryID),
			Notice: notices.Success("The item has been updated."),
			Data:   item,
		})
	}
}

// DeleteItem godoc
// @Summary Удаление элемента
// @Tags items
// @Security BearerAuth
// @Produce json
// @Param id path string true "ID элемента"
// @Success 200 {object} Outcome
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /items/{id} [delete]
func DeleteItem(svc *catalog.Service, inbox notices.Inbox) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		item, err := svc.GetItem(ctx, currentUser(c), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if err := svc.DeleteItem(ctx, currentUser(c), item.ID); err != nil {
			fail(c, err)
			return
		}
		respond(c, inbox, http.StatusOK, Outcome{
			Next:   NextItemList,
			Query:  itemListQuery(item.CategoryID),
			Notice: notices.Success("The item has been deleted."),
		})
	}
}

// ItemImage godoc
// @Summary Изображение элемента
// @Description Перенаправляет на временную ссылку хранилища.
// @Tags items
// @Security BearerAuth
// @Param id path string true "ID элемента"
// @Success 302 {string} string "redirect"
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /items/{id}/image [get]
func ItemImage(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := svc.ImageURL(c.Request.Context(), currentUser(c), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.Redirect(http.StatusFound, u)
	}
}

// MoveItem godoc
// @Summary Перемещение элемента
// @Description Меняет элемент местами с соседним в пределах категории. На границе списка ничего не происходит.
// @Tags items
// @Security BearerAuth
// @Produce json
// @Param id path string true "ID элемента"
// @Success 200 {object} Outcome
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /items/{id}/up [post]
// @Router /items/{id}/down [post]
func MoveItem(svc *catalog.Service, dir catalog.Direction) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		item, err := svc.GetItem(ctx, currentUser(c), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		if err := svc.MoveItem(ctx, currentUser(c), item.ID, dir); err != nil && !isBoundary(err) {
			fail(c, err)
			return
		}
		q := itemListQuery(item.CategoryID)
		for k, v := range pageQuery(c) {
			q[k] = v
		}
		respond(c, nil, http.StatusOK, Outcome{Next: NextItemList, Query: q})
	}
}
