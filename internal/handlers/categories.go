package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"markbox/internal/catalog"
	"markbox/internal/models"
	"markbox/internal/notices"
	"markbox/internal/ordering"
)

type CategoryRequest struct {
	Name string `json:"name" form:"name" binding:"required"`
}

type CategoryListResponse struct {
	Results []models.Category `json:"results"`
	Page    PageInfo          `json:"page"`
}

func categoryID(c models.Category) string { return c.ID }

// ListCategories godoc
// @Summary Категории пользователя
// @Description Категории в ручном порядке, по 10 на странице. page=last отдаёт последнюю страницу.
// @Tags categories
// @Security BearerAuth
// @Produce json
// @Param page query string false "номер страницы или last"
// @Success 200 {object} CategoryListResponse
// @Failure 404 {object} ErrorResponse
// @Router /categories [get]
func ListCategories(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.ListCategories(c.Request.Context(), currentUser(c), pageNumber(c))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, CategoryListResponse{Results: p.Records, Page: pageInfo(c, p, categoryID)})
	}
}

// CreateCategory godoc
// @Summary Создание категории
// @Description Новая категория становится первой в списке.
// @Tags categories
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param input body CategoryRequest true "категория"
// @Success 201 {object} Outcome
// @Failure 400 {object} ErrorResponse
// @Router /categories [post]
func CreateCategory(svc *catalog.Service, inbox notices.Inbox) gin.HandlerFunc {
	return func(c *gin.Context) {
		var r CategoryRequest
		if err := c.ShouldBind(&r); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name is required"})
			return
		}
		cat, err := svc.CreateCategory(c.Request.Context(), currentUser(c), r.Name)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, inbox, http.StatusCreated, Outcome{
			Next:   NextCategoryList,
			Notice: notices.Success("The category has been created."),
			Data:   cat,
		})
	}
}

// GetCategory godoc
// @Summary Категория
// @Tags categories
// @Security BearerAuth
// @Produce json
// @Param id path string true "ID категории"
// @Success 200 {object} models.Category
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /categories/{id} [get]
func GetCategory(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		cat, err := svc.GetCategory(c.Request.Context(), currentUser(c), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, cat)
	}
}

// UpdateCategory godoc
// @Summary Переименование категории
// @Tags categories
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "ID категории"
// @Param input body CategoryRequest true "категория"
// @Success 200 {object} Outcome
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /categories/{id} [put]
func UpdateCategory(svc *catalog.Service, inbox notices.Inbox) gin.HandlerFunc {
	return func(c *gin.Context) {
		var r CategoryRequest
		if err := c.ShouldBind(&r); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name is required"})
			return
		}
		cat, err := svc.UpdateCategory(c.Request.Context(), currentUser(c), c.Param("id"), r.Name)
		if err != nil {
			fail(c, err)
			return
		}
		respond(c, inbox, http.StatusOK, Outcome{
			Next:   NextCategoryList,
			Notice: notices.Success("The category has been updated."),
			Data:   cat,
		})
	}
}

// DeleteCategory godoc
// @Summary Удаление категории
// @Description Удаляет категорию вместе с её элементами.
// @Tags categories
// @Security BearerAuth
// @Produce json
// @Param id path string true "ID категории"
// @Success 200 {object} Outcome
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /categories/{id} [delete]
func DeleteCategory(svc *catalog.Service, inbox notices.Inbox) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeleteCategory(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
			fail(c, err)
			return
		}
		respond(c, inbox, http.StatusOK, Outcome{
			Next:   NextCategoryList,
			Notice: notices.Success("The category has been deleted."),
		})
	}
}

// isBoundary распознаёт попытку сдвинуть первую запись вверх или последнюю вниз.
func isBoundary(err error) bool {
	return errors.Is(err, ordering.ErrNoPrecedingSibling) || errors.Is(err, ordering.ErrNoFollowingSibling)
}

// MoveCategory godoc
// @Summary Перемещение категории
// @Description Меняет категорию местами с соседней. На границе списка ничего не происходит.
// @Tags categories
// @Security BearerAuth
// @Produce json
// @Param id path string true "ID категории"
// @Success 200 {object} Outcome
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /categories/{id}/up [post]
// @Router /categories/{id}/down [post]
func MoveCategory(svc *catalog.Service, dir catalog.Direction) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := svc.MoveCategory(c.Request.Context(), currentUser(c), c.Param("id"), dir)
		if err != nil && !isBoundary(err) {
			fail(c, err)
			return
		}
		respond(c, nil, http.StatusOK, Outcome{Next: NextCategoryList, Query: pageQuery(c)})
	}
}

// pageQuery переносит номер страницы в адрес перехода.
func pageQuery(c *gin.Context) map[string]string {
	q := map[string]string{}
	if page := c.Query("page"); page != "" {
		q["page"] = page
	}
	return q
}
