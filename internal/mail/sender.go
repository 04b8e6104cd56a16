// Package mail はSMTPによるメール送信を提供する。
package mail

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Message は送信するメール1通を表す。
// BCCの宛先はヘッダーに残らない。
type Message struct {
	To      []string
	Bcc     []string
	Subject string
	HTML    string
	Text    string
}

// SendResult は送信結果を表す。
// 送信手段が未設定の場合はSkippedがtrueになる。
type SendResult struct {
	Skipped bool
	Reason  string
}

// Sender はメール送信のインターフェース。
type Sender interface {
	Send(ctx context.Context, msg Message) (SendResult, error)
	Configured() bool
}

// Config はSMTP接続設定。
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // 空の場合はUsernameを使う
}

// complete は送信に必要な設定がすべて揃っているかを返す。
func (c Config) complete() bool {
	return c.Host != "" && c.Username != "" && c.Password != "" && c.from() != ""
}

func (c Config) from() string {
	if c.From != "" {
		return c.From
	}
	return c.Username
}

// NewSender は設定に応じたSenderを返す。
// 設定が不完全な場合は常にSkippedを返すSenderになる。
func NewSender(cfg Config) Sender {
	if !cfg.complete() {
		return disabledSender{}
	}
	return NewSMTPSender(cfg)
}

// SMTPSender はgomailを使ってSMTPで送信するSender。
// ポート465の場合は暗黙的TLSで接続する。
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender はSMTPSenderを生成する。
func NewSMTPSender(cfg Config) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.from(),
	}
}

// Configured は常にtrueを返す。
func (s *SMTPSender) Configured() bool { return true }

// Send はメッセージを送信する。
// gomailはcontextを受け取らないため、送信開始前にのみキャンセルを確認する。
func (s *SMTPSender) Send(ctx context.Context, msg Message) (SendResult, error) {
	if err := ctx.Err(); err != nil {
		return SendResult{}, err
	}
	if len(msg.To) == 0 && len(msg.Bcc) == 0 {
		return SendResult{}, fmt.Errorf("mail has no recipients")
	}

	if err := s.dialer.DialAndSend(s.build(msg)); err != nil {
		return SendResult{}, fmt.Errorf("failed to send mail: %w", err)
	}
	return SendResult{}, nil
}

// build はgomailのメッセージを組み立てる。本文はテキストとHTMLの両方を持つ。
func (s *SMTPSender) build(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	if len(msg.To) > 0 {
		m.SetHeader("To", msg.To...)
	}
	if len(msg.Bcc) > 0 {
		m.SetHeader("Bcc", msg.Bcc...)
	}
	m.SetHeader("Subject", msg.Subject)

	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}
	return m
}

// disabledSender は送信設定がない場合のSender。
type disabledSender struct{}

func (disabledSender) Configured() bool { return false }

func (disabledSender) Send(context.Context, Message) (SendResult, error) {
	return SendResult{Skipped: true, Reason: "MAIL_* env not configured"}, nil
}
