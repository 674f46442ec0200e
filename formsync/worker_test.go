package formsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/montron/pm_backend/config"
	"github.com/montron/pm_backend/models"
	"github.com/montron/pm_backend/utils"
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

type fakeFetcher struct {
	employees   []EmployeeDTO
	submissions map[DocumentType][]SubmissionDTO
	seenAfter   map[string]*time.Time
	fail        error
}

func (f *fakeFetcher) FetchEmployees(ctx context.Context, updatedAfter *time.Time) ([]EmployeeDTO, error) {
	f.seenAfter["employees"] = updatedAfter
	return f.employees, f.fail
}

func (f *fakeFetcher) FetchSubmissions(ctx context.Context, docType DocumentType, from, to string, updatedAfter *time.Time) ([]SubmissionDTO, error) {
	f.seenAfter[string(docType)] = updatedAfter
	return f.submissions[docType], f.fail
}

func (f *fakeFetcher) Close() {}

func newTestWorker(db *gorm.DB, f *fakeFetcher) *Worker {
	w := NewWorker(db, nil)
	w.NewClient = func(Tenant) (Fetcher, error) { return f, nil }
	w.Now = func() time.Time { return time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC) }
	return w
}

func stamp(day int) *time.Time {
	t := time.Date(2024, 3, day, 18, 0, 0, 0, time.UTC)
	return &t
}

func sampleFetcher() *fakeFetcher {
	return &fakeFetcher{
		employees: []EmployeeDTO{
			{ID: "E-1", FirstName: "Anna", LastName: "Muster", Status: "ACTIVE", UpdatedAt: stamp(1)},
		},
		submissions: map[DocumentType][]SubmissionDTO{
			DocumentTypeTb: {
				{ID: "tb-1", EmployeeId: "E-1", WorkDate: "2024-03-04", DocumentType: DocumentTypeTb,
					StartTime: utils.Ptr("08:00:00"), EndTime: utils.Ptr("16:30:00"), BreakMinutes: utils.Ptr(30), UpdatedAt: stamp(4)},
				{ID: "tb-2", EmployeeId: "E-404", WorkDate: "2024-03-04", DocumentType: DocumentTypeTb, UpdatedAt: stamp(5)},
			},
		},
		seenAfter: map[string]*time.Time{},
	}
}

func TestWorkerRun_IngestsAndAdvancesCursors(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	f := sampleFetcher()
	w := newTestWorker(db, f)

	stats, err := w.Run(ctx, Tenant{CompanyId: testCompany, LookbackDays: 7}, "", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Employees != 1 || stats.TbApplied != 1 || stats.Skipped != 1 || stats.Failed != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	employee, err := models.FindEmployeeByExternalId(db, testCompany, "E-1")
	if err != nil || employee == nil {
		t.Fatalf("FindEmployeeByExternalId: %v %v", employee, err)
	}
	workday, err := models.FindWorkdayByDay(db, testCompany, employee.ID, "2024-03-04")
	if err != nil || workday == nil || !workday.HasTb {
		t.Fatalf("expected workday with TB, got %+v %v", workday, err)
	}

	cursor, err := models.GetIngestCursor(db, testCompany, models.IngestSourceTb)
	if err != nil || cursor == nil || !cursor.Equal(*stamp(5)) {
		t.Fatalf("tb cursor = %v %v", cursor, err)
	}
	if rs, _ := models.GetIngestCursor(db, testCompany, models.IngestSourceRs); rs != nil {
		t.Fatalf("rs cursor should stay empty, got %v", rs)
	}

	// the next run asks only for newer records
	if _, err := w.Run(ctx, Tenant{CompanyId: testCompany}, "2024-03-01", "2024-03-08"); err != nil {
		t.Fatalf("Run (2nd): %v", err)
	}
	if got := f.seenAfter["employees"]; got == nil || !got.Equal(*stamp(1)) {
		t.Fatalf("employees updatedAfter = %v", got)
	}
}

func TestWorkerRun_FailedItemKeepsCursor(t *testing.T) {
	db := openTestDB(t)
	f := sampleFetcher()
	bad := "25:00"
	f.submissions[DocumentTypeTb] = append(f.submissions[DocumentTypeTb], SubmissionDTO{
		ID: "tb-3", EmployeeId: "E-1", WorkDate: "2024-03-05", StartTime: &bad, UpdatedAt: stamp(6),
	})
	w := newTestWorker(db, f)

	stats, err := w.Run(context.Background(), Tenant{CompanyId: testCompany}, "", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Failed != 1 || stats.TbApplied != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if cursor, _ := models.GetIngestCursor(db, testCompany, models.IngestSourceTb); cursor != nil {
		t.Fatalf("tb cursor advanced despite failure: %v", cursor)
	}
}

func TestWorkerRun_RejectsInvertedWindow(t *testing.T) {
	w := newTestWorker(openTestDB(t), sampleFetcher())
	if _, err := w.Run(context.Background(), Tenant{CompanyId: testCompany}, "2024-03-08", "2024-03-01"); err == nil {
		t.Fatalf("expected error for inverted window")
	}
}

func pushBody(t *testing.T, messageId string, data []byte) *bytes.Reader {
	t.Helper()
	var env PushEnvelope
	env.Message.MessageId = messageId
	env.Message.Data = data
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return bytes.NewReader(raw)
}

func TestPushHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)
	f := sampleFetcher()
	w := newTestWorker(db, f)
	cfg := &Config{Tenants: []Tenant{{CompanyId: testCompany, BaseURL: "http://forms"}}}

	r := gin.New()
	r.POST("/pubsub/form-sync", PushHandler(w, cfg))
	post := func(body *bytes.Reader) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/pubsub/form-sync", body)
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := post(bytes.NewReader([]byte("not json"))); code != http.StatusNoContent {
		t.Fatalf("malformed: status %d", code)
	}
	if code := post(pushBody(t, "m-0", []byte(`{"company_id":"company-z"}`))); code != http.StatusNoContent {
		t.Fatalf("unknown tenant: status %d", code)
	}

	payload := []byte(`{"company_id":"company-a"}`)
	if code := post(pushBody(t, "m-1", payload)); code != http.StatusNoContent {
		t.Fatalf("run: status %d", code)
	}
	// redelivery of a handled message is acked without running again
	f.seenAfter = map[string]*time.Time{}
	if code := post(pushBody(t, "m-1", payload)); code != http.StatusNoContent {
		t.Fatalf("redelivery: status %d", code)
	}
	if len(f.seenAfter) != 0 {
		t.Fatalf("redelivery triggered a run")
	}

	f.fail = errors.New("upstream down")
	if code := post(pushBody(t, "m-2", payload)); code != http.StatusInternalServerError {
		t.Fatalf("failing run: status %d", code)
	}
}
