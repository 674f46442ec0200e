package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/montron/pm_backend/utils"
)

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationId(), AuthMiddleware())
	r.GET("/whoami", func(c *gin.Context) {
		companyId, _ := utils.GetCompanyIdFromContext(c.Request.Context())
		userId, _ := utils.GetUserIdFromContext(c.Request.Context())
		c.String(http.StatusOK, companyId+"/"+userId)
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	r := newAuthRouter()
	token, err := utils.JwtGenerate("user-1", "company-a", "anna", "dispatcher")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized, ""},
		{"valid", "Bearer " + token, http.StatusOK, "company-a/user-1"},
		{"lowercase scheme", "bearer " + token, http.StatusOK, "company-a/user-1"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		r.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: status %d, want %d", tc.name, rec.Code, tc.status)
		}
		if tc.body != "" && rec.Body.String() != tc.body {
			t.Fatalf("%s: body %q", tc.name, rec.Body.String())
		}
		if rec.Header().Get(correlationHeader) == "" {
			t.Fatalf("%s: correlation id not echoed", tc.name)
		}
	}
}

func TestAuthMiddleware_RejectsTokenWithoutCompany(t *testing.T) {
	r := newAuthRouter()
	token, err := utils.JwtGenerate("user-1", "", "anna", "")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}
}
