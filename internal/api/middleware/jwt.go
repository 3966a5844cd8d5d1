package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MilanEkanna/Backend-TaskManagement/internal/model"
	"github.com/MilanEkanna/Backend-TaskManagement/internal/pkg/metrics"
	"github.com/MilanEkanna/Backend-TaskManagement/internal/policy"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type customClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// 身份在 gin 上下文中的键。
const (
	ctxUserIDKey = "userID"
	ctxRoleKey   = "role"
)

// AuthMiddleware 校验 Bearer JWT 并将请求者身份写入上下文。
//
// 令牌缺失、格式错误、过期、签名不符一律返回 401 "Not authorized"，
// 不区分具体原因。
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	secret := []byte(jwtSecret)
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c)
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c)
			return
		}

		tokenStr := parts[1]
		claims := &customClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			abortUnauthorized(c)
			return
		}

		if claims.Subject == "" {
			abortUnauthorized(c)
			return
		}
		uid, err := strconv.ParseUint(claims.Subject, 10, 64)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		role := strings.TrimSpace(strings.ToLower(claims.Role))
		if role == "" {
			role = model.RoleUser
		}

		c.Set(ctxUserIDKey, uint(uid))
		c.Set(ctxRoleKey, role)
		c.Next()
	}
}

// ActorFrom 从上下文取出认证通过的请求者身份。
func ActorFrom(c *gin.Context) policy.Identity {
	actor := policy.Identity{Role: model.RoleUser}
	if v, ok := c.Get(ctxUserIDKey); ok {
		if id, ok := v.(uint); ok {
			actor.ID = id
		}
	}
	if v, ok := c.Get(ctxRoleKey); ok {
		if role, ok := v.(string); ok && role != "" {
			actor.Role = role
		}
	}
	return actor
}

func abortUnauthorized(c *gin.Context) {
	if metrics.AuthFailureTotal != nil {
		metrics.AuthFailureTotal.Inc()
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Not authorized"})
}
