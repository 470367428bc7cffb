package domain

import "fmt"

type ErrorKind string

const (
	KindUnknownRole        ErrorKind = "unknown_role"
	KindUnknownPermission  ErrorKind = "unknown_permission"
	KindDuplicateEmail     ErrorKind = "duplicate_email"
	KindAccountNotFound    ErrorKind = "account_not_found"
	KindNotAuthorized      ErrorKind = "not_authorized"
	KindWeakPassword       ErrorKind = "weak_password"
	KindProvisioningFailed ErrorKind = "provisioning_failed"
	KindInvalidIdentity    ErrorKind = "invalid_identity"
	KindAccountModified    ErrorKind = "account_modified"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
)

// errors.Is 只比较 Kind，因此带具体信息的错误也能和下面的哨兵错误匹配
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnknownRole        = &Error{Kind: KindUnknownRole, Message: "unknown role"}
	ErrUnknownPermission  = &Error{Kind: KindUnknownPermission, Message: "unknown permission"}
	ErrDuplicateEmail     = &Error{Kind: KindDuplicateEmail, Message: "email is already registered"}
	ErrAccountNotFound    = &Error{Kind: KindAccountNotFound, Message: "account not found"}
	ErrNotAuthorized      = &Error{Kind: KindNotAuthorized, Message: "not authorized"}
	ErrWeakPassword       = &Error{Kind: KindWeakPassword, Message: "password does not meet the policy"}
	ErrProvisioningFailed = &Error{Kind: KindProvisioningFailed, Message: "account provisioning failed"}
	ErrInvalidIdentity    = &Error{Kind: KindInvalidIdentity, Message: "invalid identity"}
	ErrAccountModified    = &Error{Kind: KindAccountModified, Message: "account was modified concurrently, please retry"}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "email or password is incorrect"}
)

func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}
