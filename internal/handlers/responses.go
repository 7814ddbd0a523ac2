package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"markbox/internal/accounts"
	"markbox/internal/catalog"
	"markbox/internal/notices"
	"markbox/internal/ordering"
	"markbox/internal/services/images"
	"markbox/internal/services/storage"
	"markbox/internal/signing"
)

// Логические адреса, на которые клиент переходит после действия.
const (
	NextDone          = "done"
	NextLogin         = "login"
	NextTop           = "top"
	NextUserCreation  = "user_creation"
	NextEmailChange   = "email_change"
	NextPasswordReset = "password_reset"
	NextCategoryList  = "category_list"
	NextItemList      = "item_list"
)

type StatusResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Outcome описывает ответ на изменяющий запрос: куда перейти дальше и что показать.
type Outcome struct {
	Next   string            `json:"next"`
	Query  map[string]string `json:"query"`
	Notice *notices.Notice   `json:"notice,omitempty"`
	Data   any               `json:"data,omitempty"`
}

// respond отправляет Outcome. Уведомление для вошедшего пользователя
// уходит только в его ящик; в теле ответа оно остаётся, если пользователь
// анонимен или ящик недоступен.
func respond(c *gin.Context, inbox notices.Inbox, status int, out Outcome) {
	if out.Query == nil {
		out.Query = map[string]string{}
	}
	if out.Notice != nil && inbox != nil {
		if user := currentUser(c); user != nil {
			if err := inbox.Push(c.Request.Context(), user.ID, *out.Notice); err != nil {
				logger(c).Warn("push notice", zap.String("user_id", user.ID), zap.Error(err))
			} else {
				out.Notice = nil
			}
		}
	}
	c.JSON(status, out)
}

// statusOf сопоставляет ошибку сервисов HTTP-статусу.
func statusOf(err error) int {
	switch {
	case errors.Is(err, signing.ErrExpired):
		return http.StatusGone
	case errors.Is(err, accounts.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, ordering.ErrNotFound),
		errors.Is(err, ordering.ErrPageOutOfRange),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, accounts.ErrForbidden), errors.Is(err, catalog.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, accounts.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, accounts.ErrBadCredentials),
		errors.Is(err, accounts.ErrUnauthenticated),
		errors.Is(err, accounts.ErrInactive):
		return http.StatusUnauthorized
	case errors.Is(err, accounts.ErrPasswordMismatch),
		errors.Is(err, accounts.ErrWeakPassword),
		errors.Is(err, accounts.ErrInvalidEmail),
		errors.Is(err, catalog.ErrInvalid),
		errors.Is(err, images.ErrUnsupportedType),
		errors.Is(err, images.ErrTooLarge),
		errors.Is(err, images.ErrTooManyPixels):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail отвечает ErrorResponse. Внутренние ошибки не раскрываются клиенту.
func fail(c *gin.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		_ = c.Error(err)
		msg = "internal error"
	case http.StatusNotFound:
		msg = "not found"
	case http.StatusForbidden:
		msg = "forbidden"
	}
	c.JSON(status, ErrorResponse{Error: msg})
}

func invalidJSON(c *gin.Context) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
}

func logger(c *gin.Context) *zap.Logger {
	if v, ok := c.Get("logger"); ok {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return zap.NewNop()
}

// WithLogger кладёт логгер в контекст запроса.
func WithLogger(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("logger", l)
		c.Next()
	}
}
