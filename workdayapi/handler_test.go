package workdayapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/montron/pm_backend/config"
	"github.com/montron/pm_backend/exporter"
	"github.com/montron/pm_backend/middlewares"
	"github.com/montron/pm_backend/models"
	"github.com/montron/pm_backend/utils"
	"github.com/montron/pm_backend/workflow"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testCompany = "company-a"

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "pm.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}
	if err := db.Use(config.NewTenantGuardPlugin()); err != nil {
		t.Fatalf("tenant guard: %v", err)
	}
	return db
}

type apiFixture struct {
	db      *gorm.DB
	router  *gin.Engine
	workday *models.Workday
	token   string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)

	pins := workflow.NewPinGuard(db, config.DefaultPinPolicy(), nil)
	pins.HashCost = bcrypt.MinCost
	releaser := &workflow.Releaser{
		DB:       db,
		Pins:     pins,
		Renderer: exporter.ExcelRenderer{},
		Exporter: exporter.NewLocalExporter(t.TempDir(), nil),
	}

	r := gin.New()
	api := r.Group("/api", middlewares.AuthMiddleware())
	h := New(db, pins, releaser, nil)
	Register(api, func() *Handler { return h })

	employee := models.Employee{CompanyId: testCompany, ExternalId: "E-1", FirstName: "Anna", LastName: "Muster"}
	if err := db.Create(&employee).Error; err != nil {
		t.Fatalf("create employee: %v", err)
	}
	workday := models.Workday{CompanyId: testCompany, EmployeeId: employee.ID, WorkDate: "2024-03-04", HasTb: true}
	if err := db.Create(&workday).Error; err != nil {
		t.Fatalf("create workday: %v", err)
	}
	start, end, breakMinutes := models.NewTimeOfDay(8, 0), models.NewTimeOfDay(16, 30), 30
	if err := db.Create(&models.TbEntry{
		CompanyId:    testCompany,
		WorkdayId:    workday.ID,
		StartTime:    &start,
		EndTime:      &end,
		BreakMinutes: &breakMinutes,
		Version:      1,
	}).Error; err != nil {
		t.Fatalf("create tb: %v", err)
	}

	token, err := utils.JwtGenerate("user-1", testCompany, "dispatcher", "")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	return &apiFixture{db: db, router: r, workday: &workday, token: token}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestPinRoutes(t *testing.T) {
	f := newAPIFixture(t)

	if rec := f.do(t, http.MethodGet, "/api/me/pin", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", rec.Code)
	}
	rec := f.do(t, http.MethodGet, "/api/me/pin", f.token, nil)
	if rec.Code != http.StatusOK || decode(t, rec)["is_set"] != false {
		t.Fatalf("status before set: %d %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodPost, "/api/me/pin/verify", f.token, gin.H{"pin": "1234"}); rec.Code != http.StatusNotFound {
		t.Fatalf("verify without pin: status %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPut, "/api/me/pin", f.token, gin.H{"pin": "12a4"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed pin: status %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPut, "/api/me/pin", f.token, gin.H{"pin": "1234"}); rec.Code != http.StatusNoContent {
		t.Fatalf("set pin: status %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/me/pin/verify", f.token, gin.H{"pin": "0000"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong pin: status %d", rec.Code)
	}
	if got := decode(t, rec)["remaining_attempts"]; got != float64(2) {
		t.Fatalf("remaining_attempts = %v", got)
	}
	if rec := f.do(t, http.MethodPost, "/api/me/pin/verify", f.token, gin.H{"pin": "1234"}); rec.Code != http.StatusOK {
		t.Fatalf("right pin: status %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/api/me/pin", f.token, nil)
	if body := decode(t, rec); body["is_set"] != true || body["failed_attempts"] != float64(0) {
		t.Fatalf("status after verify: %v", body)
	}
}

func TestWorkdayRoutes_ReleaseFlow(t *testing.T) {
	f := newAPIFixture(t)
	workdayPath := "/api/workdays/" + f.workday.ID

	rec := f.do(t, http.MethodGet, "/api/employees/"+f.workday.EmployeeId+"/workdays?from=2024-03-01&to=2024-03-31", f.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d %s", rec.Code, rec.Body.String())
	}
	if list, _ := decode(t, rec)["workdays"].([]interface{}); len(list) != 1 {
		t.Fatalf("list: %s", rec.Body.String())
	}
	if rec := f.do(t, http.MethodGet, "/api/employees/"+f.workday.EmployeeId+"/workdays?from=03/01/2024", f.token, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date: status %d", rec.Code)
	}

	if rec := f.do(t, http.MethodGet, workdayPath, f.token, nil); rec.Code != http.StatusOK {
		t.Fatalf("detail: status %d", rec.Code)
	}
	otherTenant, err := utils.JwtGenerate("user-9", "company-b", "other", "")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	if rec := f.do(t, http.MethodGet, workdayPath, otherTenant, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("cross tenant detail: status %d", rec.Code)
	}

	if rec := f.do(t, http.MethodPatch, workdayPath+"/tb", f.token, gin.H{"break_minutes": -5}); rec.Code != http.StatusBadRequest {
		t.Fatalf("negative break: status %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPatch, workdayPath+"/tb", f.token, gin.H{"comment": "checked"}); rec.Code != http.StatusOK {
		t.Fatalf("patch tb: status %d %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodPost, workdayPath+"/recalculate", f.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("recalculate: status %d", rec.Code)
	}
	if issues, _ := decode(t, rec)["issues"].([]interface{}); len(issues) != 0 {
		t.Fatalf("unexpected issues %v", issues)
	}

	if err := f.do(t, http.MethodPut, "/api/me/pin", f.token, gin.H{"pin": "1234"}); err.Code != http.StatusNoContent {
		t.Fatalf("set pin: status %d", err.Code)
	}
	if rec := f.do(t, http.MethodPost, workdayPath+"/release", f.token, gin.H{"pin": "12"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("short pin: status %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, workdayPath+"/release", f.token, gin.H{"pin": "1234"})
	if rec.Code != http.StatusOK {
		t.Fatalf("release: status %d %s", rec.Code, rec.Body.String())
	}
	if body := decode(t, rec); body["status"] != string(models.WorkdayStatusReleased) || body["forced"] != false {
		t.Fatalf("release body: %v", body)
	}

	if rec := f.do(t, http.MethodPost, workdayPath+"/release", f.token, gin.H{"pin": "1234"}); rec.Code != http.StatusConflict {
		t.Fatalf("second release: status %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPatch, workdayPath+"/tb", f.token, gin.H{"comment": "late"}); rec.Code != http.StatusConflict {
		t.Fatalf("patch after release: status %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, workdayPath+"/events", f.token, nil)
	if rec.Code != http.StatusOK || decode(t, rec)["publish_status"] != models.OutboxPublishStatusPending {
		t.Fatalf("events: status %d %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodPost, workdayPath+"/events/replay", f.token, nil); rec.Code != http.StatusConflict {
		t.Fatalf("replay of pending event: status %d", rec.Code)
	}

	workday, err := models.GetWorkday(f.db.WithContext(context.Background()), testCompany, f.workday.ID)
	if err != nil || workday.Status != models.WorkdayStatusReleased {
		t.Fatalf("workday after release: %+v %v", workday, err)
	}
}
