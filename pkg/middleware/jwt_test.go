package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-jwt-middleware"

func init() {
	gin.SetMode(gin.TestMode)
}

func generateTestToken(claims jwt.MapClaims, secret string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(secret))
	return tokenString
}

func setupTestRouter(config *JWTConfig) *gin.Engine {
	router := gin.New()
	router.Use(JWTMiddleware(config))
	router.GET("/protected", func(c *gin.Context) {
		userID, _ := GetUserID(c)
		roleID, _ := GetRoleID(c)
		role, _ := GetRole(c)
		c.JSON(http.StatusOK, gin.H{
			"user_id":     userID,
			"role_id":     roleID,
			"role":        role,
			"permissions": GetPermissions(c),
		})
	})
	router.GET("/skip", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "skipped"})
	})
	return router
}

func TestJWTMiddleware(t *testing.T) {
	config := &JWTConfig{
		Secret:    testSecret,
		Issuer:    "bookingcar",
		SkipPaths: []string{"/skip"},
	}

	valid := jwt.MapClaims{
		"user_id":     "user-123",
		"role_id":     "role-agent",
		"role":        "AgentLv1",
		"permissions": []string{"ticket_request:create"},
		"iss":         "bookingcar",
		"exp":         time.Now().Add(time.Hour).Unix(),
	}

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
	}{
		{"valid token", "/protected", "Bearer " + generateTestToken(valid, testSecret), http.StatusOK},
		{"missing authorization header", "/protected", "", http.StatusUnauthorized},
		{"invalid authorization header format", "/protected", "InvalidFormat", http.StatusUnauthorized},
		{"empty token after Bearer", "/protected", "Bearer ", http.StatusUnauthorized},
		{"malformed token", "/protected", "Bearer not-a-valid-jwt-token", http.StatusUnauthorized},
		{"invalid secret", "/protected", "Bearer " + generateTestToken(valid, "wrong-secret"), http.StatusUnauthorized},
		{"expired token", "/protected", "Bearer " + generateTestToken(jwt.MapClaims{
			"user_id": "user-123",
			"iss":     "bookingcar",
			"exp":     time.Now().Add(-time.Hour).Unix(),
		}, testSecret), http.StatusUnauthorized},
		{"wrong issuer", "/protected", "Bearer " + generateTestToken(jwt.MapClaims{
			"user_id": "user-123",
			"iss":     "someone-else",
			"exp":     time.Now().Add(time.Hour).Unix(),
		}, testSecret), http.StatusUnauthorized},
		{"missing user_id in claims", "/protected", "Bearer " + generateTestToken(jwt.MapClaims{
			"role": "Client",
			"iss":  "bookingcar",
			"exp":  time.Now().Add(time.Hour).Unix(),
		}, testSecret), http.StatusUnauthorized},
		{"skip path", "/skip", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter(config)
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}

	t.Run("claims extracted correctly", func(t *testing.T) {
		router := setupTestRouter(config)
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+generateTestToken(valid, testSecret))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		var body struct {
			UserID      string   `json:"user_id"`
			RoleID      string   `json:"role_id"`
			Role        string   `json:"role"`
			Permissions []string `json:"permissions"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body.UserID != "user-123" || body.RoleID != "role-agent" || body.Role != "AgentLv1" {
			t.Errorf("unexpected principal %+v", body)
		}
		if len(body.Permissions) != 1 || body.Permissions[0] != "ticket_request:create" {
			t.Errorf("unexpected permissions %v", body.Permissions)
		}
	})
}

func TestRequireRole(t *testing.T) {
	config := &JWTConfig{Secret: testSecret}

	router := gin.New()
	router.Use(JWTMiddleware(config))
	router.GET("/admin", RequireRole("Admin"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "admin access"})
	})

	tests := []struct {
		name       string
		role       string
		wantStatus int
	}{
		{"allowed role", "Admin", http.StatusOK},
		{"disallowed role", "Client", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := generateTestToken(jwt.MapClaims{
				"user_id": "user-123",
				"role":    tt.role,
				"exp":     time.Now().Add(time.Hour).Unix(),
			}, testSecret)

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}

	t.Run("no authentication", func(t *testing.T) {
		r := gin.New()
		r.GET("/admin", RequireRole("Admin"), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
		}
	})
}

type stubLookup struct {
	perms map[string]struct{}
	err   error
}

func (s stubLookup) Permissions(ctx context.Context, roleID string) (map[string]struct{}, error) {
	return s.perms, s.err
}

func TestRequirePermission(t *testing.T) {
	config := &JWTConfig{Secret: testSecret}
	token := generateTestToken(jwt.MapClaims{
		"user_id":     "user-1",
		"role_id":     "role-1",
		"permissions": []string{"ticket:read"},
		"exp":         time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	tests := []struct {
		name       string
		lookup     PermissionLookup
		required   []string
		wantStatus int
	}{
		{"token permission", nil, []string{"ticket:read"}, http.StatusOK},
		{"missing permission", nil, []string{"trip:update"}, http.StatusForbidden},
		{"resolved from role", stubLookup{perms: map[string]struct{}{"trip:update": {}}}, []string{"trip:update", "ticket:read"}, http.StatusOK},
		{"lookup failure", stubLookup{err: errors.New("db down")}, []string{"trip:update"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(JWTMiddleware(config))
			router.GET("/x", RequirePermission(tt.lookup, tt.required...), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestHelperFunctions(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if _, ok := GetUserID(c); ok {
		t.Error("expected ok to be false before the principal is set")
	}

	c.Set(ContextKeyUserID, "test-user-id")
	c.Set(ContextKeyRole, "Admin")

	if id, ok := GetUserID(c); !ok || id != "test-user-id" {
		t.Errorf("GetUserID() = %q, %v", id, ok)
	}
	if role, ok := GetRole(c); !ok || role != "Admin" {
		t.Errorf("GetRole() = %q, %v", role, ok)
	}
	if perms := GetPermissions(c); perms != nil {
		t.Errorf("GetPermissions() = %v, want nil", perms)
	}
}
