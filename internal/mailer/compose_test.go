package mailer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talentdesk/employer-access/backend/internal/domain"
	"github.com/wneessen/go-mail"
)

func encode(t *testing.T, msg domain.MailMessage) []byte {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return body
}

func TestDecodeResetPassword(t *testing.T) {
	body := encode(t, domain.MailMessage{
		Type: domain.MailTypeResetPassword,
		To:   "ada@example.com",
		Data: domain.ResetPasswordMailData{FullName: "Ada Lovelace", OTP: "042917", Expiration: 15},
	})

	raw, subject, html, err := Decode(body)
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", raw.To)
	assert.Contains(t, subject, "Reset your password")
	assert.Contains(t, html, "042917")
	assert.Contains(t, html, "15 minutes")
}

func TestDecodeAccountCreatedWithoutPassword(t *testing.T) {
	body := encode(t, domain.MailMessage{
		Type: domain.MailTypeAccountCreated,
		To:   "grace@example.com",
		Data: domain.AccountCreatedMailData{FullName: "Grace Hopper", Email: "grace@example.com", RoleLabel: "Management"},
	})

	_, _, html, err := Decode(body)
	require.NoError(t, err)

	assert.Contains(t, html, "Management")
	assert.NotContains(t, html, "Initial password")
}

func TestDecodeEscapesHTML(t *testing.T) {
	body := encode(t, domain.MailMessage{
		Type: domain.MailTypeChangeEmail,
		To:   "x@example.com",
		Data: domain.ChangeEmailMailData{FullName: "<script>", OTP: "123456", Expiration: 15},
	})

	_, _, html, err := Decode(body)
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}

func TestDecodeUnsupportedType(t *testing.T) {
	body := encode(t, domain.MailMessage{Type: "newsletter", To: "x@example.com"})

	_, _, _, err := Decode(body)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDecodeMalformed(t *testing.T) {
	_, _, _, err := Decode([]byte("{not json"))
	assert.Error(t, err)
}

func TestCompose(t *testing.T) {
	body := encode(t, domain.MailMessage{
		Type: domain.MailTypeChangeEmail,
		To:   "new@example.com",
		Data: domain.ChangeEmailMailData{FullName: "Ada", OTP: "123456", Expiration: 15},
	})

	msg, err := Compose("noreply@example.com", body)
	require.NoError(t, err)

	recipients, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"new@example.com"}, recipients)
	assert.Equal(t, []string{"Employer Portal - Confirm your new email"}, msg.GetGenHeader(mail.HeaderSubject))
}

func TestComposeRejectsBadRecipient(t *testing.T) {
	body := encode(t, domain.MailMessage{
		Type: domain.MailTypeChangeEmail,
		To:   "not an address",
		Data: domain.ChangeEmailMailData{FullName: "Ada", OTP: "123456", Expiration: 15},
	})

	_, err := Compose("noreply@example.com", body)
	assert.Error(t, err)
}
