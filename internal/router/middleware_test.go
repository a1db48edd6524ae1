package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mealdash-next/internal/authz"
	"github.com/mealdash-next/internal/config"
	"github.com/mealdash-next/internal/constants"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/repository"
	"github.com/mealdash-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const testJWTSecret = "router-test-secret-with-enough-length"

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func openRouterTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Admin{}); err != nil {
		t.Fatalf("migrate admin failed: %v", err)
	}
	return db
}

func createRouterTestAdmin(t *testing.T, db *gorm.DB, username string, isSuper bool) *models.Admin {
	t.Helper()
	admin := &models.Admin{Username: username, PasswordHash: "x", IsSuper: isSuper}
	if err := db.Create(admin).Error; err != nil {
		t.Fatalf("create admin failed: %v", err)
	}
	return admin
}

func serve(t *testing.T, r *gin.Engine, method, path, token string) envelope {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("http status want 200 got %d", w.Code)
	}
	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v body=%s", err, w.Body.String())
	}
	return resp
}

func TestResolveAllowedOrigin(t *testing.T) {
	cases := []struct {
		origin      string
		allowed     []string
		credentials bool
		want        string
	}{
		{"https://shop.example.com", []string{"*"}, false, "*"},
		{"https://shop.example.com", []string{"*"}, true, "https://shop.example.com"},
		{"https://ops.example.com", []string{"https://ops.example.com", "https://shop.example.com"}, false, "https://ops.example.com"},
		{"https://evil.example.com", []string{"https://ops.example.com"}, false, ""},
	}
	for _, tc := range cases {
		if got := resolveAllowedOrigin(tc.origin, tc.allowed, tc.credentials); got != tc.want {
			t.Fatalf("origin %s allowed %v want %q got %q", tc.origin, tc.allowed, tc.want, got)
		}
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": getRequestID(c)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-123")
	r.ServeHTTP(w, req)
	if w.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("response request id want req-123 got %s", w.Header().Get(requestIDHeader))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if strings.TrimSpace(w.Header().Get(requestIDHeader)) == "" {
		t.Fatalf("generated request id should not be blank")
	}
}

func TestJWTAuthMiddlewareMissingSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(JWTAuthMiddleware("", nil))
	r.GET("/admin/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	resp := serve(t, r, http.MethodGet, "/admin/ping", "")
	if resp.StatusCode != 401 {
		t.Fatalf("status_code want 401 got %d", resp.StatusCode)
	}
}

func TestJWTAuthMiddlewareTokenLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openRouterTestDB(t)
	adminRepo := repository.NewAdminRepository(db)
	admin := createRouterTestAdmin(t, db, "dispatch-desk", false)

	authService := service.NewAuthService(config.JWTConfig{SecretKey: testJWTSecret, ExpireHours: 1}, adminRepo)
	token, _, err := authService.GenerateJWT(admin)
	if err != nil {
		t.Fatalf("generate jwt failed: %v", err)
	}

	r := gin.New()
	r.Use(JWTAuthMiddleware(testJWTSecret, adminRepo))
	r.GET("/admin/whoami", func(c *gin.Context) {
		adminID, _ := c.Get("admin_id")
		c.JSON(http.StatusOK, gin.H{"status_code": 0, "data": gin.H{"admin_id": adminID}})
	})

	if resp := serve(t, r, http.MethodGet, "/admin/whoami", ""); resp.StatusCode != 401 {
		t.Fatalf("missing header want 401 got %d", resp.StatusCode)
	}
	if resp := serve(t, r, http.MethodGet, "/admin/whoami", "not-a-jwt"); resp.StatusCode != 401 {
		t.Fatalf("garbage token want 401 got %d", resp.StatusCode)
	}

	resp := serve(t, r, http.MethodGet, "/admin/whoami", token)
	if resp.StatusCode != 0 {
		t.Fatalf("valid token should pass, got %d %s", resp.StatusCode, resp.Msg)
	}
	var data struct {
		AdminID uint `json:"admin_id"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil || data.AdminID != admin.ID {
		t.Fatalf("admin_id want %d got %s", admin.ID, string(resp.Data))
	}

	// 提升 token_version 后旧 token 立即失效
	if err := db.Model(&models.Admin{}).Where("id = ?", admin.ID).Update("token_version", admin.TokenVersion+1).Error; err != nil {
		t.Fatalf("bump token version failed: %v", err)
	}
	resp = serve(t, r, http.MethodGet, "/admin/whoami", token)
	if resp.StatusCode != 401 || resp.Msg != "token revoked" {
		t.Fatalf("revoked token want 401 token revoked, got %d %s", resp.StatusCode, resp.Msg)
	}
}

func TestAdminRBACMiddlewareByRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openRouterTestDB(t)
	authzService, err := authz.NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap roles failed: %v", err)
	}
	kitchen := createRouterTestAdmin(t, db, "kitchen-desk", false)
	if err := authzService.AssignBuiltinRole(kitchen.ID, constants.RoleKitchen); err != nil {
		t.Fatalf("assign kitchen role failed: %v", err)
	}
	owner := createRouterTestAdmin(t, db, "owner", true)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		switch c.GetHeader("Authorization") {
		case "Bearer kitchen":
			c.Set("admin_id", kitchen.ID)
		case "Bearer owner":
			c.Set("admin_id", owner.ID)
			c.Set(adminIsSuperContextKey, true)
		}
		c.Next()
	})
	r.Use(AdminRBACMiddleware(authzService))
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status_code": 0}) }
	r.GET("/api/v1/admin/kitchen/state", ok)
	r.GET("/api/v1/admin/reports/commissions", ok)

	if resp := serve(t, r, http.MethodGet, "/api/v1/admin/kitchen/state", "kitchen"); resp.StatusCode != 0 {
		t.Fatalf("kitchen should read kitchen state, got %d", resp.StatusCode)
	}
	if resp := serve(t, r, http.MethodGet, "/api/v1/admin/reports/commissions", "kitchen"); resp.StatusCode != 403 {
		t.Fatalf("kitchen must not read commission reports, got %d", resp.StatusCode)
	}
	if resp := serve(t, r, http.MethodGet, "/api/v1/admin/reports/commissions", "owner"); resp.StatusCode != 0 {
		t.Fatalf("super admin bypasses rbac, got %d", resp.StatusCode)
	}
	if resp := serve(t, r, http.MethodGet, "/api/v1/admin/kitchen/state", ""); resp.StatusCode != 401 {
		t.Fatalf("anonymous request want 401 got %d", resp.StatusCode)
	}
}

func TestDeriveAdminPermissionModule(t *testing.T) {
	cases := map[string]string{
		"":                            "system",
		"/health":                     "health",
		"/admin/orders/:id/assign":    "orders",
		"/admin/authz/permissions":    "authz",
		"/admin/reports/commissions":  "reports",
		"/admin/print-jobs/:id/retry": "print-jobs",
	}
	for object, want := range cases {
		if got := deriveAdminPermissionModule(object); got != want {
			t.Fatalf("module of %q want %s got %s", object, want, got)
		}
	}
}
