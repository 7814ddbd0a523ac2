// Package signing выпускает и проверяет подписанные ссылки подтверждения.
//
// Токен это URL-safe строка с полезной нагрузкой, временем выпуска и HMAC
// подписью; серверное хранилище не требуется.
package signing

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/securecookie"
)

var (
	ErrExpired = errors.New("signature expired")
	ErrInvalid = errors.New("bad signature")
)

// Purpose входит в подпись: токен одного сценария не проходит проверку в другом.
type Purpose string

const (
	PurposeUserCreation  Purpose = "user_creation"
	PurposeEmailChange   Purpose = "email_change"
	PurposePasswordReset Purpose = "password_reset"
)

// envelope подписывается целиком.
type envelope struct {
	Payload  []byte `json:"p"`
	IssuedAt int64  `json:"t"`
}

type Signer struct {
	codec *securecookie.SecureCookie
	now   func() time.Time
}

// New создаёт Signer. Ключ HMAC выводится из secret через SHA-256,
// поэтому secret может быть любой длины.
func New(secret string) *Signer {
	key := sha256.Sum256([]byte("markbox.signing:" + secret))
	codec := securecookie.New(key[:], nil).
		MaxAge(0).
		MaxLength(0).
		SetSerializer(securecookie.JSONEncoder{})
	return &Signer{codec: codec, now: time.Now}
}

// WithClock подменяет источник времени; используется в тестах.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	return &Signer{codec: s.codec, now: now}
}

// Issue сериализует payload и возвращает подписанный токен.
func (s *Signer) Issue(purpose Purpose, payload any) (string, error) {
	raw, err := securecookie.JSONEncoder{}.Serialize(payload)
	if err != nil {
		return "", fmt.Errorf("serialize payload: %w", err)
	}
	tok, err := s.codec.Encode(string(purpose), envelope{Payload: raw, IssuedAt: s.now().Unix()})
	if err != nil {
		return "", fmt.Errorf("sign payload: %w", err)
	}
	return tok, nil
}

// Verify проверяет подпись и срок действия и декодирует payload в dst.
// Подлинный, но просроченный токен даёт ErrExpired; всё остальное,
// что не прошло проверку, возвращается ErrInvalid.
func (s *Signer) Verify(purpose Purpose, token string, maxAge time.Duration, dst any) error {
	if token == "" {
		return ErrInvalid
	}
	// securecookie декодирует base64 нестрого; строгая проверка не даёт
	// пропустить токен с изменёнными хвостовыми битами.
	if _, err := base64.URLEncoding.Strict().DecodeString(token); err != nil {
		return ErrInvalid
	}
	var env envelope
	if err := s.codec.Decode(string(purpose), token, &env); err != nil {
		return ErrInvalid
	}
	issued := time.Unix(env.IssuedAt, 0)
	if maxAge > 0 && s.now().Sub(issued) > maxAge {
		return ErrExpired
	}
	if err := (securecookie.JSONEncoder{}).Deserialize(env.Payload, dst); err != nil {
		return ErrInvalid
	}
	return nil
}
