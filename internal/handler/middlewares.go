package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/talentdesk/employer-access/backend/internal/domain"
)

type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
}

func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.StatusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (h *Handler) logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start)
		slog.Info("request handled", "status", rw.StatusCode, "ip", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "duration", duration)
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.internalServerError(w, r, fmt.Errorf("panic: %v", err))
				stackTrace := string(debug.Stack())
				fmt.Print(stackTrace) // 这里如果用 slog 的话会很乱
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.secure.Process(w, r); err != nil {
			slog.Warn("secure headers blocked request", "error", err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 从 cookie 中获取 token
		cookie, err := r.Cookie(h.config.JWT.CookieName)
		if err != nil {
			switch {
			case errors.Is(err, http.ErrNoCookie):
				h.errorResponse(w, r, http.StatusUnauthorized, "unauthenticated", "not signed in")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		// 验证 token
		claims := &AuthClaims{}
		_, err = jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(h.config.JWT.Secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			h.errorResponse(w, r, http.StatusUnauthorized, "unauthenticated", "invalid token")
			return
		}

		// 角色只用于展示，鉴权一律以数据库中的权限为准
		ctx := r.Context()
		ctx = context.WithValue(ctx, RoleCtxKey, claims.Role)
		ctx = context.WithValue(ctx, SubCtxKey, claims.Subject)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) myInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subString := r.Context().Value(SubCtxKey).(string)

		sub, err := strconv.ParseInt(subString, 10, 64)
		if err != nil {
			h.errorResponse(w, r, http.StatusUnauthorized, "unauthenticated", "invalid token")
			return
		}

		myInfo, err := h.accounts.Lookup(r.Context(), sub)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrAccountNotFound):
				h.errorResponse(w, r, http.StatusUnauthorized, "unauthenticated", "account no longer exists")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		ctx := context.WithValue(r.Context(), MyInfoCtx, myInfo)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) preventInactive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		myInfo := r.Context().Value(MyInfoCtx).(*domain.Account)
		if !myInfo.IsActive {
			h.errorResponse(w, r, http.StatusForbidden, string(domain.KindNotAuthorized), "account is deactivated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) accountID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			h.errorResponse(w, r, http.StatusBadRequest, "bad_request", "invalid account id")
			return
		}

		ctx := context.WithValue(r.Context(), AccountIDCtx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func myInfoFrom(r *http.Request) *domain.Account {
	return r.Context().Value(MyInfoCtx).(*domain.Account)
}

func accountIDFrom(r *http.Request) int64 {
	return r.Context().Value(AccountIDCtx).(int64)
}
