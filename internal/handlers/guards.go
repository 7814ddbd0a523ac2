package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"markbox/internal/accounts"
	"markbox/internal/models"
)

// RequireAuthenticated пропускает запрос только с действующим access-токеном
// активного пользователя и кладёт пользователя в контекст.
func RequireAuthenticated(svc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid authorization"})
			return
		}
		user, err := svc.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, accounts.ErrInactive):
				c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "account is inactive"})
			case errors.Is(err, accounts.ErrUnauthenticated):
				c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			default:
				_ = c.Error(err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
			}
			return
		}
		c.Set("user", user)
		c.Set("user_id", user.ID)
		c.Next()
	}
}

// bearerToken достаёт токен из заголовка Authorization. Для рукопожатия
// websocket допускается параметр ?token=.
func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1], true
	}
	if websocket.IsWebSocketUpgrade(c.Request) {
		if t := c.Query("token"); t != "" {
			return t, true
		}
	}
	return "", false
}

func currentUser(c *gin.Context) *models.User {
	v, ok := c.Get("user")
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// requireOwnerOrAdmin разрешает доступ владельцу записи и суперпользователю.
func requireOwnerOrAdmin(c *gin.Context, ownerID string) bool {
	if accounts.CanAccess(currentUser(c), ownerID) {
		return true
	}
	c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
	return false
}
