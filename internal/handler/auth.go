package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/talentdesk/employer-access/backend/internal/account"
	"github.com/talentdesk/employer-access/backend/internal/domain"
	"github.com/talentdesk/employer-access/backend/internal/otp"
)

type AuthClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName       string `json:"firstName" validate:"required"`
		LastName        string `json:"lastName" validate:"required"`
		Email           string `json:"email" validate:"required,email"`
		Password        string `json:"password" validate:"required"`
		ConfirmPassword string `json:"confirmPassword" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 自助注册一律为 hr_recruitment
	acc, _, err := h.accounts.CreateAccount(r.Context(), nil, account.CreateAccountInput{
		Identity: domain.Identity{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Password:  req.Password,
			Confirm:   req.ConfirmPassword,
		},
	})
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	_ = h.publishMail(r, domain.MailMessage{
		Type: domain.MailTypeAccountCreated,
		To:   acc.Email,
		Data: domain.AccountCreatedMailData{
			FullName:  acc.FullName(),
			Email:     acc.Email,
			RoleLabel: acc.Role.Label(),
		},
	})

	h.createdResponse(w, r, "registration successful", acc)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	acc, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	// 生成 JWT
	expiration := time.Now().Add(time.Duration(h.config.JWT.Expiration) * time.Second)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AuthClaims{
		Role: string(acc.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Subject:   strconv.FormatInt(acc.ID, 10),
		},
	})
	ss, err := token.SignedString([]byte(h.config.JWT.Secret))
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 通过 http-only 的 cookie 返回给客户端
	cookie := &http.Cookie{
		Name:     h.config.JWT.CookieName,
		Value:    ss,
		Expires:  expiration,
		Path:     "/",
		HttpOnly: true,
		Secure:   false,
	}

	if h.config.IsProduction() {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteStrictMode
	}

	http.SetCookie(w, cookie)

	h.successResponse(w, r, "signed in", acc)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:    h.config.JWT.CookieName,
		Value:   "",
		Expires: time.Now().Add(-time.Hour),
		Path:    "/",
	})

	h.successResponse(w, r, "signed out", nil)
}

func (h *Handler) RequireResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	const msg = "if the account exists, a verification code has been sent"

	acc, err := h.accounts.LookupByEmail(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountNotFound):
			// 账户不存在时同样返回成功，防止接口被用来探测邮箱
			h.successResponse(w, r, msg, nil)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	code, err := h.otp.Issue(r.Context(), otp.PurposeResetPassword, acc.Email)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if err := h.publishMail(r, domain.MailMessage{
		Type: domain.MailTypeResetPassword,
		To:   acc.Email,
		Data: domain.ResetPasswordMailData{
			FullName:   acc.FullName(),
			OTP:        code,
			Expiration: int(h.otp.Expiration().Minutes()),
		},
	}); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, msg, nil)
}

func (h *Handler) ConfirmResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email           string `json:"email" validate:"required,email"`
		OTP             string `json:"otp" validate:"required"`
		Password        string `json:"password" validate:"required"`
		ConfirmPassword string `json:"confirmPassword" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 先检查密码策略，避免验证码被无效请求消耗
	if err := domain.ValidatePassword(req.Password, req.ConfirmPassword); err != nil {
		h.domainError(w, r, err)
		return
	}

	acc, err := h.accounts.LookupByEmail(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountNotFound):
			h.errorResponse(w, r, http.StatusBadRequest, "invalid_code", otp.ErrInvalidCode.Error())
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if err := h.otp.Consume(r.Context(), otp.PurposeResetPassword, acc.Email, req.OTP); err != nil {
		switch {
		case errors.Is(err, otp.ErrInvalidCode):
			h.errorResponse(w, r, http.StatusBadRequest, "invalid_code", err.Error())
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if err := h.accounts.SetPasswordByEmail(r.Context(), acc.Email, req.Password, req.ConfirmPassword); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "password has been reset", nil)
}

// publishMail 发送失败只记录日志，由调用方决定是否中断请求
func (h *Handler) publishMail(r *http.Request, msg domain.MailMessage) error {
	if err := h.mailer.Publish(r.Context(), msg); err != nil {
		slog.Error("failed to publish mail", "type", msg.Type, "to", msg.To, "error", err)
		return err
	}
	return nil
}
