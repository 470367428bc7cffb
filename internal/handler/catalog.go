package handler

import (
	"net/http"

	"github.com/talentdesk/employer-access/backend/internal/domain"
)

func (h *Handler) GetRoles(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, "ok", domain.Roles())
}

func (h *Handler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, "ok", domain.PermissionGroups())
}
