package domain

import "encoding/json"

const (
	MailTypeAccountCreated = "account_created"
	MailTypeResetPassword  = "reset_password"
	MailTypeChangeEmail    = "change_email"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

// 消费端反序列化时 Data 先保留原始 JSON，再按 Type 解析
type RawMailMessage struct {
	Type string          `json:"type"`
	To   string          `json:"to"`
	Data json.RawMessage `json:"data"`
}

type AccountCreatedMailData struct {
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	RoleLabel string `json:"roleLabel"`
	// 自助注册时为空，管理员创建且未指定密码时为随机生成的初始密码
	Password string `json:"password,omitempty"`
}

type ResetPasswordMailData struct {
	FullName   string `json:"fullName"`
	OTP        string `json:"otp"`
	Expiration int    `json:"expiration"`
}

type ChangeEmailMailData struct {
	FullName   string `json:"fullName"`
	OTP        string `json:"otp"`
	Expiration int    `json:"expiration"`
}
