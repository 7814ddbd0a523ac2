package notices

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// writeWait ограничивает запись одного уведомления в соединение.
	writeWait = 10 * time.Second
	// sendBuffer ограничивает очередь записи одного соединения.
	sendBuffer = 16
)

// Conn принимает уведомления на запись (например,
// *websocket.Conn).
type Conn interface {
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// client связывает соединение пользователя с его очередью записи.
type client struct {
	conn   Conn
	send   chan Notice
	done   chan struct{}
	closed bool // под Hub.mu
}

// Hub доставляет уведомления сразу в открытые соединения пользователя.
// Запись идёт в отдельной горутине на каждое соединение; если соединений
// нет или их очереди заполнены, уведомление уходит в ящик.
type Hub struct {
	inbox     Inbox
	log       *zap.Logger
	writeWait time.Duration

	mu      sync.Mutex
	clients map[string]map[Conn]*client
}

func NewHub(inbox Inbox, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		inbox:     inbox,
		log:       log,
		writeWait: writeWait,
		clients:   make(map[string]map[Conn]*client),
	}
}

// Attach регистрирует соединение и ставит в его очередь накопленные
// уведомления. Новые уведомления начинают приходить сразу после
// регистрации, поэтому могут опередить накопленные.
func (h *Hub) Attach(ctx context.Context, userID string, conn Conn) error {
	cl := &client{conn: conn, send: make(chan Notice, sendBuffer), done: make(chan struct{})}
	h.mu.Lock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[Conn]*client)
		h.clients[userID] = set
	}
	set[conn] = cl
	h.mu.Unlock()
	go h.writePump(userID, cl)

	pending, err := h.inbox.Drain(ctx, userID)
	if err != nil {
		h.Detach(userID, conn)
		return err
	}
	var rest []Notice
	h.mu.Lock()
	for i, n := range pending {
		if !h.offer(cl, n) {
			rest = pending[i:]
			break
		}
	}
	h.mu.Unlock()
	for _, n := range rest {
		h.requeue(userID, n)
	}
	return nil
}

// Detach снимает соединение и ждёт, пока его очередь будет дописана или
// возвращена в ящик. Соединение лучше закрыть до вызова.
func (h *Hub) Detach(userID string, conn Conn) {
	h.mu.Lock()
	cl := h.clients[userID][conn]
	if cl != nil {
		h.removeLocked(userID, cl)
	}
	h.mu.Unlock()
	if cl != nil {
		<-cl.done
	}
}

// Online сообщает число открытых соединений пользователя.
func (h *Hub) Online(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[userID])
}

func (h *Hub) Push(ctx context.Context, userID string, n Notice) error {
	h.mu.Lock()
	delivered := false
	for _, cl := range h.clients[userID] {
		if h.offer(cl, n) {
			delivered = true
		}
	}
	h.mu.Unlock()
	if delivered {
		return nil
	}
	return h.inbox.Push(ctx, userID, n)
}

func (h *Hub) Drain(ctx context.Context, userID string) ([]Notice, error) {
	return h.inbox.Drain(ctx, userID)
}

// offer ставит уведомление в очередь без ожидания. Вызывается под h.mu.
func (h *Hub) offer(cl *client, n Notice) bool {
	if cl.closed {
		return false
	}
	select {
	case cl.send <- n:
		return true
	default:
		return false
	}
}

// removeLocked снимает клиента и закрывает его очередь. Вызывается под h.mu.
func (h *Hub) removeLocked(userID string, cl *client) {
	if cl.closed {
		return
	}
	cl.closed = true
	close(cl.send)
	if set, ok := h.clients[userID]; ok {
		delete(set, cl.conn)
		if len(set) == 0 {
			delete(h.clients, userID)
		}
	}
}

// writePump пишет очередь клиента в соединение. После первой ошибки
// соединение закрывается, а оставшиеся уведомления возвращаются в ящик.
func (h *Hub) writePump(userID string, cl *client) {
	defer close(cl.done)
	broken := false
	for n := range cl.send {
		if broken {
			h.requeue(userID, n)
			continue
		}
		_ = cl.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err := cl.conn.WriteJSON(n); err != nil {
			h.log.Debug("notice write failed", zap.String("user_id", userID), zap.Error(err))
			broken = true
			cl.conn.Close()
			h.requeue(userID, n)
			h.mu.Lock()
			h.removeLocked(userID, cl)
			h.mu.Unlock()
		}
	}
}

func (h *Hub) requeue(userID string, n Notice) {
	ctx, cancel := context.WithTimeout(context.Background(), h.writeWait)
	defer cancel()
	if err := h.inbox.Push(ctx, userID, n); err != nil {
		h.log.Warn("requeue notice", zap.String("user_id", userID), zap.Error(err))
	}
}
