package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/mealdash-next/internal/config"
	"github.com/mealdash-next/internal/http/response"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/provider"
	"github.com/mealdash-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const (
	testAdminUsername = "owner"
	testAdminPassword = "Owner-Pass-2024"
)

type apiResponse struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func setupAdminHandlerTest(t *testing.T) (*gin.Engine, *provider.Container) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := filepath.Join(t.TempDir(), "admin.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	models.DB = db
	if err := models.AutoMigrate(); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	if err := models.EnsureOperatingState(); err != nil {
		t.Fatalf("ensure operating state failed: %v", err)
	}
	if err := models.InitDefaultAdmin(testAdminUsername, testAdminPassword); err != nil {
		t.Fatalf("init default admin failed: %v", err)
	}

	cfg := &config.Config{}
	cfg.JWT.SecretKey = "test-secret-key-with-enough-length-123456"
	cfg.JWT.ExpireHours = 2
	cfg.Restaurant.Name = "Test Kitchen"
	cfg.Restaurant.Timezone = "UTC"
	cfg.Restaurant.CountryCode = "ID"
	cfg.Restaurant.DeliveryFee = "0"

	container := provider.NewContainer(cfg)
	t.Cleanup(container.Close)

	var admin models.Admin
	if err := db.Where("username = ?", testAdminUsername).First(&admin).Error; err != nil {
		t.Fatalf("load default admin failed: %v", err)
	}

	h := New(container)
	r := gin.New()
	r.POST("/login", h.AdminLogin)
	authorized := r.Group("")
	authorized.Use(func(c *gin.Context) {
		c.Set("admin_id", admin.ID)
		c.Set("username", admin.Username)
		c.Next()
	})
	authorized.GET("/kitchen/state", h.GetKitchenState)
	authorized.PUT("/kitchen/state", h.SetKitchenState)
	authorized.GET("/audit-logs", h.ListAuditLogs)
	return r, container
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body []byte) apiResponse {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected http status: %d body=%s", w.Code, w.Body.String())
	}
	var resp apiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v body=%s", err, w.Body.String())
	}
	return resp
}

func TestAdminLoginSuccess(t *testing.T) {
	r, container := setupAdminHandlerTest(t)

	body := []byte(`{"username":"owner","password":"Owner-Pass-2024"}`)
	resp := doJSON(t, r, http.MethodPost, "/login", body)
	if resp.StatusCode != response.CodeOK {
		t.Fatalf("login should succeed, got %d %s", resp.StatusCode, resp.Msg)
	}
	var data LoginResponse
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("unmarshal login data failed: %v", err)
	}
	if data.Token == "" || data.ExpiresAt == "" {
		t.Fatalf("token and expires_at are required: %+v", data)
	}
	claims, err := container.AuthService.ParseJWT(data.Token)
	if err != nil {
		t.Fatalf("issued token should parse: %v", err)
	}
	if claims.Username != testAdminUsername {
		t.Fatalf("claims username want %s got %s", testAdminUsername, claims.Username)
	}
}

func TestAdminLoginWrongPassword(t *testing.T) {
	r, _ := setupAdminHandlerTest(t)

	body := []byte(`{"username":"owner","password":"not-the-password"}`)
	resp := doJSON(t, r, http.MethodPost, "/login", body)
	if resp.StatusCode != response.CodeUnauthorized {
		t.Fatalf("wrong password want %d got %d", response.CodeUnauthorized, resp.StatusCode)
	}

	resp = doJSON(t, r, http.MethodPost, "/login", []byte(`{"username":"ghost","password":"whatever1"}`))
	if resp.StatusCode != response.CodeUnauthorized {
		t.Fatalf("unknown user want %d got %d", response.CodeUnauthorized, resp.StatusCode)
	}
}

func TestAdminLoginMissingFields(t *testing.T) {
	r, _ := setupAdminHandlerTest(t)

	resp := doJSON(t, r, http.MethodPost, "/login", []byte(`{"username":"owner"}`))
	if resp.StatusCode != response.CodeBadRequest {
		t.Fatalf("missing password want %d got %d", response.CodeBadRequest, resp.StatusCode)
	}
}

func TestSetKitchenStateClosesAndAudits(t *testing.T) {
	r, _ := setupAdminHandlerTest(t)

	resp := doJSON(t, r, http.MethodPut, "/kitchen/state", []byte(`{"is_open":false,"reason":"gas leak"}`))
	if resp.StatusCode != response.CodeOK {
		t.Fatalf("close kitchen should succeed, got %d %s", resp.StatusCode, resp.Msg)
	}
	var state models.OperatingState
	if err := json.Unmarshal(resp.Data, &state); err != nil {
		t.Fatalf("unmarshal state failed: %v", err)
	}
	if state.IsOpen {
		t.Fatalf("kitchen should be closed after override")
	}
	if state.LastChangeReason != "gas leak" {
		t.Fatalf("reason want gas leak got %s", state.LastChangeReason)
	}

	resp = doJSON(t, r, http.MethodGet, "/kitchen/state", nil)
	if resp.StatusCode != response.CodeOK {
		t.Fatalf("get kitchen state failed: %d %s", resp.StatusCode, resp.Msg)
	}
	var view struct {
		State       models.OperatingState `json:"state"`
		ReopenBelow int                   `json:"reopen_below"`
	}
	if err := json.Unmarshal(resp.Data, &view); err != nil {
		t.Fatalf("unmarshal kitchen view failed: %v", err)
	}
	if view.State.IsOpen {
		t.Fatalf("kitchen view should report closed")
	}
	if view.ReopenBelow != service.ReopenThreshold(view.State.MaxActiveOrders) {
		t.Fatalf("reopen_below mismatch: %d", view.ReopenBelow)
	}

	var logs []models.AuditLog
	if err := models.DB.Find(&logs).Error; err != nil {
		t.Fatalf("load audit logs failed: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != service.AuditActionKitchenClose {
		t.Fatalf("expected one kitchen_close audit log, got %+v", logs)
	}
	if logs[0].AdminUsername != testAdminUsername {
		t.Fatalf("audit admin username want %s got %s", testAdminUsername, logs[0].AdminUsername)
	}
}

func TestSetKitchenStateRequiresFlag(t *testing.T) {
	r, _ := setupAdminHandlerTest(t)

	resp := doJSON(t, r, http.MethodPut, "/kitchen/state", []byte(`{"reason":"no flag"}`))
	if resp.StatusCode != response.CodeBadRequest {
		t.Fatalf("missing is_open want %d got %d", response.CodeBadRequest, resp.StatusCode)
	}
}
