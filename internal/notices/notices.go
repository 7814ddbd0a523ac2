package notices

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Уровни уведомлений.
const (
	LevelSuccess = "success"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// TTL задаёт время жизни непрочитанных уведомлений.
const TTL = 24 * time.Hour

// Notice описывает одноразовое сообщение пользователю.
type Notice struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

func Success(text string) *Notice { return &Notice{Level: LevelSuccess, Text: text} }
func Info(text string) *Notice    { return &Notice{Level: LevelInfo, Text: text} }
func Warning(text string) *Notice { return &Notice{Level: LevelWarning, Text: text} }
func Error(text string) *Notice   { return &Notice{Level: LevelError, Text: text} }

// Inbox хранит уведомления до первого чтения.
type Inbox interface {
	Push(ctx context.Context, userID string, n Notice) error
	// Drain возвращает уведомления в порядке добавления и очищает ящик.
	Drain(ctx context.Context, userID string) ([]Notice, error)
}

// RedisInbox хранит уведомления в списке notices:<user>.
type RedisInbox struct {
	client *redis.Client
	limit  int64
}

func NewRedisInbox(client *redis.Client, limit int64) *RedisInbox {
	if limit <= 0 {
		limit = 20
	}
	return &RedisInbox{client: client, limit: limit}
}

func key(userID string) string {
	return "notices:" + userID
}

func (r *RedisInbox) Push(ctx context.Context, userID string, n Notice) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	k := key(userID)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, k, b)
	pipe.LTrim(ctx, k, -r.limit, -1)
	pipe.Expire(ctx, k, TTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisInbox) Drain(ctx context.Context, userID string) ([]Notice, error) {
	k := key(userID)
	pipe := r.client.TxPipeline()
	rng := pipe.LRange(ctx, k, 0, -1)
	pipe.Del(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	vals := rng.Val()
	res := make([]Notice, 0, len(vals))
	for _, v := range vals {
		var n Notice
		if e := json.Unmarshal([]byte(v), &n); e == nil {
			res = append(res, n)
		}
	}
	return res, nil
}

// MemoryInbox используется, когда Redis не настроен.
type MemoryInbox struct {
	mu    sync.Mutex
	limit int
	boxes map[string][]Notice
}

func NewMemoryInbox(limit int64) *MemoryInbox {
	if limit <= 0 {
		limit = 20
	}
	return &MemoryInbox{limit: int(limit), boxes: make(map[string][]Notice)}
}

func (m *MemoryInbox) Push(_ context.Context, userID string, n Notice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	box := append(m.boxes[userID], n)
	if len(box) > m.limit {
		box = box[len(box)-m.limit:]
	}
	m.boxes[userID] = box
	return nil
}

func (m *MemoryInbox) Drain(_ context.Context, userID string) ([]Notice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	box := m.boxes[userID]
	delete(m.boxes, userID)
	if box == nil {
		return []Notice{}, nil
	}
	return box, nil
}

var (
	_ Inbox = (*RedisInbox)(nil)
	_ Inbox = (*MemoryInbox)(nil)
)
