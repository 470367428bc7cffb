package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/talentdesk/employer-access/backend/internal/domain"
)

func (h *Handler) logInternalServerError(r *http.Request, err error) {
	slog.Error("internal server error", "method", r.Method, "path", r.URL.Path, "error", err)
}

func (h *Handler) readJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logInternalServerError(r, err)
	}
}

type Response struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func (h *Handler) errorResponse(w http.ResponseWriter, r *http.Request, status int, code string, msg string) {
	h.writeJSON(w, r, status, Response{
		Success: false,
		Code:    code,
		Message: msg,
		Data:    nil,
	})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		h.errorResponse(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	h.errorResponse(w, r, http.StatusBadRequest, "bad_request", validationErrors[0].Translate(h.translator))
}

func (h *Handler) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	h.logInternalServerError(r, err)
	h.writeJSON(w, r, http.StatusInternalServerError, Response{
		Success: false,
		Code:    "internal_error",
		Message: "internal server error",
		Data:    nil,
	})
}

var kindStatus = map[domain.ErrorKind]int{
	domain.KindUnknownRole:        http.StatusBadRequest,
	domain.KindUnknownPermission:  http.StatusBadRequest,
	domain.KindWeakPassword:       http.StatusBadRequest,
	domain.KindInvalidIdentity:    http.StatusBadRequest,
	domain.KindDuplicateEmail:     http.StatusConflict,
	domain.KindAccountModified:    http.StatusConflict,
	domain.KindAccountNotFound:    http.StatusNotFound,
	domain.KindNotAuthorized:      http.StatusForbidden,
	domain.KindInvalidCredentials: http.StatusUnauthorized,
}

// domainError 把领域错误映射为对应的状态码，其余错误按服务器内部错误处理
func (h *Handler) domainError(w http.ResponseWriter, r *http.Request, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		h.internalServerError(w, r, err)
		return
	}

	status, ok := kindStatus[derr.Kind]
	if !ok {
		// provisioning_failed 等：记录原始错误，只把类型返回给客户端
		h.logInternalServerError(r, err)
		h.errorResponse(w, r, http.StatusInternalServerError, string(derr.Kind), derr.Message)
		return
	}

	h.errorResponse(w, r, status, string(derr.Kind), derr.Message)
}

func (h *Handler) successResponse(w http.ResponseWriter, r *http.Request, msg string, data any) {
	h.writeJSON(w, r, http.StatusOK, Response{
		Success: true,
		Message: msg,
		Data:    data,
	})
}

func (h *Handler) createdResponse(w http.ResponseWriter, r *http.Request, msg string, data any) {
	h.writeJSON(w, r, http.StatusCreated, Response{
		Success: true,
		Message: msg,
		Data:    data,
	})
}
