package domain

import (
	"time"
)

type Account struct {
	ID           int64         `json:"id"`
	FirstName    string        `json:"firstName"`
	LastName     string        `json:"lastName"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"-"`
	Role         Role          `json:"role"`
	AccessLevel  int           `json:"accessLevel"`
	IsActive     bool          `json:"isActive"`
	Permissions  PermissionSet `json:"permissions"`
	CreatedAt    time.Time     `json:"createdAt"`
	Version      int32         `json:"-"`
}

func (a *Account) FullName() string {
	return a.FirstName + " " + a.LastName
}

// Identity 是创建账户时由调用方提供的身份信息
type Identity struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Confirm   string
}

const MinPasswordLength = 6

func ValidatePassword(password, confirm string) error {
	if len(password) < MinPasswordLength {
		return Errorf(KindWeakPassword, "password must be at least %d characters", MinPasswordLength)
	}
	if password != confirm {
		return Errorf(KindWeakPassword, "password and confirmation do not match")
	}
	return nil
}
