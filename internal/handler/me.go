package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/talentdesk/employer-access/backend/internal/domain"
	"github.com/talentdesk/employer-access/backend/internal/otp"
)

func (h *Handler) GetMyInfo(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, "ok", myInfoFrom(r))
}

func (h *Handler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	myInfo := myInfoFrom(r)

	var req struct {
		OldPassword     string `json:"oldPassword" validate:"required"`
		NewPassword     string `json:"newPassword" validate:"required"`
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

	if err := h.accounts.ChangeOwnPassword(r.Context(), myInfo, req.OldPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "password updated", nil)
}

func changeEmailSubject(id int64, email string) string {
	return fmt.Sprintf("%d:%s", id, email)
}

func (h *Handler) RequireUpdateEmail(w http.ResponseWriter, r *http.Request) {
	myInfo := myInfoFrom(r)

	var req struct {
		NewEmail string `json:"newEmail" validate:"required,email"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 检测新邮箱是否已被占用
	email, err := h.accounts.ValidateNewEmail(r.Context(), req.NewEmail)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	code, err := h.otp.Issue(r.Context(), otp.PurposeChangeEmail, changeEmailSubject(myInfo.ID, email))
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 验证码发送到新邮箱
	if err := h.publishMail(r, domain.MailMessage{
		Type: domain.MailTypeChangeEmail,
		To:   email,
		Data: domain.ChangeEmailMailData{
			FullName:   myInfo.FullName(),
			OTP:        code,
			Expiration: int(h.otp.Expiration().Minutes()),
		},
	}); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "a verification code has been sent to the new email", nil)
}

func (h *Handler) ConfirmUpdateEmail(w http.ResponseWriter, r *http.Request) {
	myInfo := myInfoFrom(r)

	var req struct {
		OTP      string `json:"otp" validate:"required"`
		NewEmail string `json:"newEmail" validate:"required,email"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	email, err := h.accounts.ValidateNewEmail(r.Context(), req.NewEmail)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	if err := h.otp.Consume(r.Context(), otp.PurposeChangeEmail, changeEmailSubject(myInfo.ID, email), req.OTP); err != nil {
		switch {
		case errors.Is(err, otp.ErrInvalidCode):
			h.errorResponse(w, r, http.StatusBadRequest, "invalid_code", err.Error())
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if err := h.accounts.ChangeOwnEmail(r.Context(), myInfo, email); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "email updated", myInfo)
}
