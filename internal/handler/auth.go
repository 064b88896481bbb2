package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const tokenCookieName = "__sla_scheduler_token"

// 登录失败时不区分用户名不存在与密码错误
var errBadCredentials = errors.New("用户名不存在或密码错误")

type AuthClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// issueToken 为用户签发 JWT，有效期由 JWT_EXPIRATION（秒）决定
func (h *Handler) issueToken(user *domain.User) (string, time.Time, error) {
	now := time.Now()
	expiration := now.Add(time.Duration(h.config.JWT.Expiration) * time.Second)

	claims := AuthClaims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiration),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.config.JWT.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiration, nil
}

// parseToken 校验签名与有效期，只接受 HS256
func (h *Handler) parseToken(value string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	_, err := jwt.ParseWithClaims(value, claims, func(*jwt.Token) (any, error) {
		return []byte(h.config.JWT.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// sessionCookie 构造保存令牌的 cookie，生产环境下额外要求 https 与同站请求
func (h *Handler) sessionCookie(value string, expires time.Time) *http.Cookie {
	production := h.config.Environment == "production"
	cookie := &http.Cookie{
		Name:     tokenCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   production,
	}
	if production {
		cookie.SameSite = http.SameSiteStrictMode
	}
	return cookie
}

// authenticate 校验用户名与密码，凭据错误统一返回 errBadCredentials
func (h *Handler) authenticate(username, password string) (*domain.User, error) {
	user, err := h.repository.GetUserByUsername(username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	user, err := h.authenticate(req.Username, req.Password)
	switch {
	case errors.Is(err, errBadCredentials):
		h.errorResponse(w, r, err.Error())
		return
	case err != nil:
		h.internalServerError(w, r, err)
		return
	}

	if !user.IsActive {
		h.errorResponse(w, r, "账号已停用")
		return
	}

	token, expiration, err := h.issueToken(user)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(token, expiration))
	h.successResponse(w, r, "登录成功", user)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie := h.sessionCookie("", time.Unix(0, 0))
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)

	h.successResponse(w, r, "登出成功", nil)
}
