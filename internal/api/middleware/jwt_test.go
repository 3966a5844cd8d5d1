package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MilanEkanna/Backend-TaskManagement/internal/model"
	"github.com/MilanEkanna/Backend-TaskManagement/internal/pkg/metrics"
	"github.com/MilanEkanna/Backend-TaskManagement/internal/policy"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, subject, role string, expiresIn time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := customClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * expiresIn)),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
		Role: role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newAuthTestRouter() (*gin.Engine, *policy.Identity) {
	gin.SetMode(gin.TestMode)
	metrics.InitMetrics()

	var seen policy.Identity
	r := gin.New()
	r.GET("/protected", AuthMiddleware(testSecret), func(c *gin.Context) {
		seen = ActorFrom(c)
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return r, &seen
}

func doAuthRequest(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	r, seen := newAuthTestRouter()

	token := signToken(t, testSecret, "42", model.RoleManager, time.Hour)
	w := doAuthRequest(r, "Bearer "+token)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if seen.ID != 42 || seen.Role != model.RoleManager {
		t.Fatalf("unexpected actor: %+v", seen)
	}
}

func TestAuthMiddleware_DefaultsRoleToUser(t *testing.T) {
	r, seen := newAuthTestRouter()

	token := signToken(t, testSecret, "7", "", time.Hour)
	w := doAuthRequest(r, "Bearer "+token)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if seen.Role != model.RoleUser {
		t.Fatalf("expected role to default to user, got %q", seen.Role)
	}
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	r, _ := newAuthTestRouter()

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc123"},
		{"malformed token", "Bearer not.a.jwt"},
		{"expired", "Bearer " + signToken(t, testSecret, "42", model.RoleUser, -time.Hour)},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", "42", model.RoleUser, time.Hour)},
		{"empty subject", "Bearer " + signToken(t, testSecret, "", model.RoleUser, time.Hour)},
		{"non-numeric subject", "Bearer " + signToken(t, testSecret, "alice", model.RoleUser, time.Hour)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doAuthRequest(r, tc.header)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
			}
			// 所有失败原因必须返回同一响应体
			if !strings.Contains(w.Body.String(), "Not authorized") {
				t.Fatalf("unexpected body: %s", w.Body.String())
			}
		})
	}
}

func TestAuthMiddleware_RejectsNonHMACAlg(t *testing.T) {
	r, _ := newAuthTestRouter()

	// alg=none 不携带签名，必须被拒绝
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	w := doAuthRequest(r, "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestActorFrom_Defaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	actor := ActorFrom(c)
	if actor.ID != 0 || actor.Role != model.RoleUser {
		t.Fatalf("expected zero identity with user role, got %+v", actor)
	}
}
