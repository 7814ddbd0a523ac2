package handlers

import (
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
)

// newUpgrader разрешает рукопожатие с перечисленных origin; пустой
// список пропускает любой.
func newUpgrader(origins []string) *websocket.Upgrader {
	return &websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
		if len(origins) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}}
}
