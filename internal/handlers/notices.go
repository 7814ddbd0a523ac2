package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"markbox/internal/notices"
)

type NoticesResponse struct {
	Notices []notices.Notice `json:"notices"`
}

// ListNotices godoc
// @Summary Непрочитанные уведомления
// @Description Возвращает уведомления пользователя и очищает ящик.
// @Tags notices
// @Security BearerAuth
// @Produce json
// @Success 200 {object} NoticesResponse
// @Failure 401 {object} ErrorResponse
// @Router /notices [get]
func ListNotices(inbox notices.Inbox) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := inbox.Drain(c.Request.Context(), currentUser(c).ID)
		if err != nil {
			fail(c, err)
			return
		}
		if list == nil {
			list = []notices.Notice{}
		}
		c.JSON(http.StatusOK, NoticesResponse{Notices: list})
	}
}

// NoticesWS godoc
// @Summary Websocket уведомлений
// @Description Подключает пользователя к потоку уведомлений. Сначала отправляются накопленные уведомления, затем новые по мере появления.
// @Tags notices
// @Param token query string true "access token"
// @Success 101 {object} notices.Notice "Switching Protocols"
// @Failure 401 {object} ErrorResponse
// @Router /ws/notices [get]
func NoticesWS(hub *notices.Hub, origins []string) gin.HandlerFunc {
	upgrader := newUpgrader(origins)
	return func(c *gin.Context) {
		userID := currentUser(c).ID
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if err := hub.Attach(c.Request.Context(), userID, conn); err != nil {
			logger(c).Debug("notices ws attach failed", zap.Error(err))
			return
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		// закрытое соединение прерывает запись, недоставленное вернётся в ящик
		conn.Close()
		hub.Detach(userID, conn)
	}
}
