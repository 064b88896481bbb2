package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
)

const requestIDHeader = "X-Request-ID"

// statusRecorder 记录 handler 写出的状态码，供请求日志使用
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(RequestIDCtx).(string)
	return id
}

// logger 为每个请求分配请求 ID（上游已经给出时沿用），并在请求结束后记录日志
func (h *Handler) logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), RequestIDCtx, id))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		slog.Info("已处理请求",
			slog.String("requestID", id),
			slog.Int("status", rec.status),
			slog.String("ip", r.RemoteAddr),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.internalServerError(w, r, fmt.Errorf("panic: %v", err))
				fmt.Print(string(debug.Stack())) // 这里如果用 slog 的话会很乱
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(tokenCookieName)
		if errors.Is(err, http.ErrNoCookie) {
			h.errorResponse(w, r, "用户未登录")
			return
		}
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}

		claims, err := h.parseToken(cookie.Value)
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.errorResponse(w, r, "登录已过期，请重新登录")
			return
		}
		if err != nil {
			h.errorResponse(w, r, "无效的令牌")
			return
		}

		ctx := context.WithValue(r.Context(), RoleCtxKey, domain.Role(claims.Role))
		ctx = context.WithValue(ctx, SubCtxKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// myInfo 根据令牌中的用户 ID 读取当前用户，停用的账号不能继续操作
func (h *Handler) myInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.Context().Value(SubCtxKey).(string), 10, 64)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}

		user, err := h.repository.GetUserByID(userID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "个人信息不存在")
			return
		case err != nil:
			h.internalServerError(w, r, err)
			return
		case !user.IsActive:
			h.errorResponse(w, r, "账号已停用")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), MyInfoCtx, user)))
	})
}

// RequiredRole 只放行令牌中角色属于 roles 的请求
func (h *Handler) RequiredRole(roles ...domain.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, _ := r.Context().Value(RoleCtxKey).(domain.Role)
			if !slices.Contains(roles, role) {
				h.errorResponse(w, r, "权限不足")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// schedulingRun 加载 URL 中的运行，已结束的运行会优先从 redis 中读取
func (h *Handler) schedulingRun(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		runIDParam := chi.URLParam(r, "id")
		runID, err := strconv.ParseInt(runIDParam, 10, 64)
		if err != nil {
			h.errorResponse(w, r, "运行ID无效")
			return
		}

		run, err := h.loadSchedulingRun(r.Context(), runID)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				h.errorResponse(w, r, "排课运行不存在")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		ctx := context.WithValue(r.Context(), SchedulingRunCtx, run)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
