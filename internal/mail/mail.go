package mail

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// sendTimeout ограничивает соединение с SMTP-сервером.
const sendTimeout = 15 * time.Second

// Sender отправляет письма.
type Sender interface {
	Send(ctx context.Context, subject, body string, to []string) error
}

// SMTPSender отправляет письма через SMTP-сервер. TLS включается, если
// сервер его поддерживает.
type SMTPSender struct {
	host string
	from string
	opts []gomail.Option
}

func NewSMTP(host string, port int, username, password, from string) *SMTPSender {
	opts := []gomail.Option{
		gomail.WithPort(port),
		gomail.WithTimeout(sendTimeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(username),
			gomail.WithPassword(password),
		)
	}
	return &SMTPSender{host: host, from: from, opts: opts}
}

// message собирает письмо; заголовки кодируются библиотекой.
func (s *SMTPSender) message(subject, body string, to []string) (*gomail.Msg, error) {
	if len(to) == 0 {
		return nil, errors.New("no recipients")
	}
	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("mail from: %w", err)
	}
	if err := m.To(to...); err != nil {
		return nil, fmt.Errorf("mail to: %w", err)
	}
	m.Subject(subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(gomail.TypeTextPlain, body)
	return m, nil
}

func (s *SMTPSender) Send(ctx context.Context, subject, body string, to []string) error {
	m, err := s.message(subject, body, to)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	client, err := gomail.NewClient(s.host, s.opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// Outbox складывает письма в память вместо отправки: режим разработки и тесты.
type Outbox struct {
	mu   sync.Mutex
	msgs []Message
	log  *zap.Logger
}

func NewOutbox(log *zap.Logger) *Outbox {
	if log == nil {
		log = zap.NewNop()
	}
	return &Outbox{log: log}
}

func (o *Outbox) Send(ctx context.Context, subject, body string, to []string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, Message{Subject: subject, Body: body, To: append([]string(nil), to...)})
	o.log.Info("mail queued in outbox", zap.Strings("to", to), zap.String("subject", subject))
	return nil
}

// Messages возвращает копию отправленных писем.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.msgs...)
}

// Last возвращает последнее письмо.
func (o *Outbox) Last() (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.msgs) == 0 {
		return Message{}, false
	}
	return o.msgs[len(o.msgs)-1], true
}
