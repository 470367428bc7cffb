package mailer

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"

	"github.com/talentdesk/employer-access/backend/internal/domain"
	"github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// ErrUnsupportedType 表示消息无法处理，消费端应丢弃而不是重新入队
var ErrUnsupportedType = errors.New("unsupported mail type")

type kind struct {
	subject  string
	template string
	data     func() any
}

var kinds = map[string]kind{
	domain.MailTypeAccountCreated: {
		subject:  "Employer Portal - Your account",
		template: "account_created.html",
		data:     func() any { return &domain.AccountCreatedMailData{} },
	},
	domain.MailTypeResetPassword: {
		subject:  "Employer Portal - Reset your password",
		template: "reset_password.html",
		data:     func() any { return &domain.ResetPasswordMailData{} },
	},
	domain.MailTypeChangeEmail: {
		subject:  "Employer Portal - Confirm your new email",
		template: "change_email.html",
		data:     func() any { return &domain.ChangeEmailMailData{} },
	},
}

// Decode 解析队列中的原始消息，返回主题和渲染好的 HTML 正文
func Decode(body []byte) (domain.RawMailMessage, string, string, error) {
	raw := domain.RawMailMessage{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return raw, "", "", err
	}

	k, ok := kinds[raw.Type]
	if !ok {
		return raw, "", "", fmt.Errorf("%w: %q", ErrUnsupportedType, raw.Type)
	}

	data := k.data()
	if err := json.Unmarshal(raw.Data, data); err != nil {
		return raw, "", "", err
	}

	html := bytes.Buffer{}
	if err := templates.ExecuteTemplate(&html, k.template, data); err != nil {
		return raw, "", "", err
	}

	return raw, k.subject, html.String(), nil
}

// Compose 构建可以直接发送的邮件
func Compose(from string, body []byte) (*mail.Msg, error) {
	raw, subject, html, err := Decode(body)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, err
	}
	if err := msg.To(raw.To); err != nil {
		return nil, err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, html)

	return msg, nil
}
