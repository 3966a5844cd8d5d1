// Package auth 提供注册、登录、会话信息等身份接口。
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MilanEkanna/Backend-TaskManagement/internal/api/middleware"
	"github.com/MilanEkanna/Backend-TaskManagement/internal/model"
	"github.com/MilanEkanna/Backend-TaskManagement/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// UserStore 是身份接口对凭据存储的依赖。
//
// UserByID / UserByEmail 在记录不存在时返回 (nil, nil)。
// UserByEmail 返回的记录包含密码哈希，仅用于登录校验。
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByID(ctx context.Context, id uint) (*model.User, error)
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	EmailOrUsernameTaken(ctx context.Context, email, username string) (bool, error)
}

// Handler 提供身份相关接口。
type Handler struct {
	users            UserStore
	jwtSecret        []byte
	jwtExpire        time.Duration
	allowSignupRoles bool
	logger           *slog.Logger
}

// NewHandler 创建 Auth Handler。
//
// allowSignupRoles 为 true 时注册请求可自带 role/team（兼容旧行为），
// 否则一律以 user 角色、无团队创建。
func NewHandler(users UserStore, jwtSecret string, jwtExpire time.Duration, allowSignupRoles bool, logger *slog.Logger) *Handler {
	return &Handler{
		users:            users,
		jwtSecret:        []byte(jwtSecret),
		jwtExpire:        jwtExpire,
		allowSignupRoles: allowSignupRoles,
		logger:           logger,
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
	Team     string `json:"team"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userPayload struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type customClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Register 创建新用户并返回会话令牌。
//
// POST /api/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	username := strings.TrimSpace(req.Username)

	taken, err := h.users.EmailOrUsernameTaken(c.Request.Context(), email, username)
	if err != nil {
		h.logError("check existing user failed", email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	if taken {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "User already exists"})
		return
	}

	role := model.RoleUser
	team := ""
	if h.allowSignupRoles {
		if req.Role != "" {
			if !model.ValidRole(req.Role) {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid role"})
				return
			}
			role = req.Role
		}
		team = strings.TrimSpace(req.Team)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "hash password failed"})
		return
	}

	user := model.User{
		Username: username,
		Email:    email,
		Password: string(hash),
		Role:     role,
		Team:     team,
	}
	if err := h.users.CreateUser(c.Request.Context(), &user); err != nil {
		h.logError("create user failed", email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}

	if h.logger != nil {
		h.logger.Info("user registered", slog.String("email", email), slog.String("role", role))
	}
	h.sendToken(c, http.StatusCreated, &user)
}

// Login 校验邮箱与密码并返回会话令牌。
//
// 账号不存在与密码不符返回完全相同的 401 响应，不泄露哪一种失败。
//
// POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Please provide email and password"})
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	user, err := h.users.UserByEmail(c.Request.Context(), email)
	if err != nil {
		h.logError("lookup user failed", email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	if user == nil {
		h.rejectCredentials(c)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		h.rejectCredentials(c)
		return
	}

	if h.logger != nil {
		h.logger.Info("user logged in", slog.String("email", email), slog.String("role", user.Role))
	}
	h.sendToken(c, http.StatusOK, user)
}

// Me 返回当前认证用户的资料（不含密码哈希）。
//
// GET /api/auth/me
func (h *Handler) Me(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	user, err := h.users.UserByID(c.Request.Context(), actor.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
}

// Logout 处理注销请求。服务端无状态，客户端丢弃令牌即可。
//
// POST /api/auth/logout
func (h *Handler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

func (h *Handler) sendToken(c *gin.Context, status int, user *model.User) {
	token, err := h.issueToken(user.ID, user.Role)
	if err != nil {
		h.logError("sign token failed", user.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "sign token failed"})
		return
	}
	c.JSON(status, gin.H{
		"success": true,
		"token":   token,
		"user": userPayload{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
			Role:     user.Role,
		},
	})
}

func (h *Handler) rejectCredentials(c *gin.Context) {
	if metrics.AuthFailureTotal != nil {
		metrics.AuthFailureTotal.Inc()
	}
	c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid credentials"})
}

func (h *Handler) issueToken(userID uint, role string) (string, error) {
	now := time.Now()
	claims := customClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.jwtExpire)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}

func (h *Handler) logError(msg, email string, err error) {
	if h.logger != nil {
		h.logger.Error(msg, slog.String("email", email), slog.String("error", err.Error()))
	}
}
