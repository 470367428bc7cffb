package handler

import (
	"net/http"

	"github.com/talentdesk/employer-access/backend/internal/account"
	"github.com/talentdesk/employer-access/backend/internal/domain"
)

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	myInfo := myInfoFrom(r)

	var req struct {
		FirstName       string          `json:"firstName" validate:"required"`
		LastName        string          `json:"lastName" validate:"required"`
		Email           string          `json:"email" validate:"required,email"`
		Password        string          `json:"password"`
		ConfirmPassword string          `json:"confirmPassword"`
		Role            string          `json:"role" validate:"required"`
		Permissions     map[string]bool `json:"permissions"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		h.domainError(w, r, err)
		return
	}
	overrides, err := domain.ParseOverrides(req.Permissions)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	acc, generated, err := h.accounts.CreateAccount(r.Context(), myInfo, account.CreateAccountInput{
		Identity: domain.Identity{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Password:  req.Password,
			Confirm:   req.ConfirmPassword,
		},
		Role:      role,
		Overrides: overrides,
	})
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	// 账户已经创建成功，通知邮件发送失败不影响结果
	_ = h.publishMail(r, domain.MailMessage{
		Type: domain.MailTypeAccountCreated,
		To:   acc.Email,
		Data: domain.AccountCreatedMailData{
			FullName:  acc.FullName(),
			Email:     acc.Email,
			RoleLabel: acc.Role.Label(),
			Password:  generated,
		},
	})

	h.createdResponse(w, r, "account created", acc)
}

func (h *Handler) GetAllAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListAccounts(r.Context(), myInfoFrom(r))
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "ok", accounts)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accounts.GetAccount(r.Context(), myInfoFrom(r), accountIDFrom(r))
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "ok", acc)
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName *string `json:"firstName" validate:"omitnil,min=1"`
		LastName  *string `json:"lastName" validate:"omitnil,min=1"`
		Role      *string `json:"role"`
		IsActive  *bool   `json:"isActive"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	changes := account.AccountChanges{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		IsActive:  req.IsActive,
	}
	if req.Role != nil {
		role, err := domain.ParseRole(*req.Role)
		if err != nil {
			h.domainError(w, r, err)
			return
		}
		changes.Role = &role
	}

	acc, err := h.accounts.UpdateAccount(r.Context(), myInfoFrom(r), accountIDFrom(r), changes)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "account updated", acc)
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.DeleteAccount(r.Context(), myInfoFrom(r), accountIDFrom(r)); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "account deleted", nil)
}

// UpdateAccountPermissions 请求体为扁平的 {"canPostJobs": true, ...}，未出现的权限保持不变
func (h *Handler) UpdateAccountPermissions(w http.ResponseWriter, r *http.Request) {
	var req map[string]bool

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	overrides, err := domain.ParseOverrides(req)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	acc, err := h.accounts.UpdatePermissions(r.Context(), myInfoFrom(r), accountIDFrom(r), overrides)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "permissions updated", acc)
}

func (h *Handler) ResetAccountPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
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

	if err := h.accounts.ResetPassword(r.Context(), myInfoFrom(r), accountIDFrom(r), req.Password, req.ConfirmPassword); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "password has been reset", nil)
}
