package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"markbox/internal/accounts"
	"markbox/internal/notices"
)

type UserResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	IsActive    bool       `json:"is_active"`
	IsStaff     bool       `json:"is_staff"`
	IsSuperuser bool       `json:"is_superuser"`
	LastLogin   *time.Time `json:"last_login"`
	DateJoined  time.Time  `json:"date_joined"`
}

// GetUser godoc
// @Summary Информация о пользователе
// @Description Доступна самому пользователю и суперпользователю.
// @Tags users
// @Security BearerAuth
// @Produce json
// @Param id path string true "ID пользователя"
// @Success 200 {object} UserResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{id} [get]
func GetUser(svc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !requireOwnerOrAdmin(c, id) {
			return
		}
		u, err := svc.GetUser(c.Request.Context(), currentUser(c), id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, UserResponse{
			ID:          u.ID,
			Email:       u.Email,
			Username:    u.Username,
			IsActive:    u.IsActive,
			IsStaff:     u.IsStaff,
			IsSuperuser: u.IsSuperuser,
			LastLogin:   u.LastLogin,
			DateJoined:  u.DateJoined,
		})
	}
}

// DeleteUser godoc
// @Summary Удаление пользователя
// @Description Удаляет пользователя вместе с его категориями, элементами и изображениями.
// @Tags users
// @Security BearerAuth
// @Produce json
// @Param id path string true "ID пользователя"
// @Success 200 {object} Outcome
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{id} [delete]
func DeleteUser(svc *accounts.Service, inbox notices.Inbox) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !requireOwnerOrAdmin(c, id) {
			return
		}
		actor := currentUser(c)
		if err := svc.DeleteUser(c.Request.Context(), actor, id); err != nil {
			fail(c, err)
			return
		}
		if actor.ID == id {
			respond(c, nil, http.StatusOK, Outcome{Next: NextLogin})
			return
		}
		respond(c, inbox, http.StatusOK, Outcome{Next: NextTop, Notice: notices.Success("The user has been deleted.")})
	}
}
