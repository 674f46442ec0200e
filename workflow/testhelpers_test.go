package workflow

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/montron/pm_backend/config"
	"github.com/montron/pm_backend/models"
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

func seedEmployee(t *testing.T, db *gorm.DB, companyId, externalId string) *models.Employee {
	t.Helper()
	e := models.Employee{
		CompanyId:  companyId,
		ExternalId: externalId,
		FirstName:  "Anna",
		LastName:   "Muster",
		Status:     models.EmployeeStatusActive,
	}
	if err := db.Create(&e).Error; err != nil {
		t.Fatalf("create employee: %v", err)
	}
	return &e
}

func seedWorkday(t *testing.T, db *gorm.DB, employee *models.Employee, workDate string) *models.Workday {
	t.Helper()
	w := models.Workday{
		CompanyId:  employee.CompanyId,
		EmployeeId: employee.ID,
		WorkDate:   workDate,
		Status:     models.WorkdayStatusDraft,
	}
	if err := db.Create(&w).Error; err != nil {
		t.Fatalf("create workday: %v", err)
	}
	return &w
}

func seedTb(t *testing.T, db *gorm.DB, w *models.Workday, start, end string, breakMinutes int) *models.TbEntry {
	t.Helper()
	tb := models.TbEntry{
		CompanyId:    w.CompanyId,
		WorkdayId:    w.ID,
		StartTime:    tod(t, start),
		EndTime:      tod(t, end),
		BreakMinutes: &breakMinutes,
		Version:      1,
	}
	if err := db.Create(&tb).Error; err != nil {
		t.Fatalf("create tb: %v", err)
	}
	return &tb
}

func seedRs(t *testing.T, db *gorm.DB, w *models.Workday, start, end string, breakMinutes int) *models.RsEntry {
	t.Helper()
	rs := models.RsEntry{
		CompanyId:    w.CompanyId,
		WorkdayId:    w.ID,
		CustomerName: "Stadtwerke",
		StartTime:    tod(t, start),
		EndTime:      tod(t, end),
		BreakMinutes: &breakMinutes,
		Version:      1,
	}
	if err := db.Create(&rs).Error; err != nil {
		t.Fatalf("create rs: %v", err)
	}
	return &rs
}

func seedStreetwatch(t *testing.T, db *gorm.DB, w *models.Workday, times ...string) {
	t.Helper()
	day := models.StreetwatchDay{CompanyId: w.CompanyId, WorkdayId: w.ID, SwDate: w.WorkDate}
	if err := db.Create(&day).Error; err != nil {
		t.Fatalf("create streetwatch day: %v", err)
	}
	for i, s := range times {
		e := models.StreetwatchEntry{
			CompanyId:        w.CompanyId,
			StreetwatchDayId: day.ID,
			Sequence:         i,
			Time:             *tod(t, s),
		}
		if err := db.Create(&e).Error; err != nil {
			t.Fatalf("create streetwatch entry: %v", err)
		}
	}
}

func seedPin(t *testing.T, guard *PinGuard, userId, pin string) {
	t.Helper()
	if err := guard.SetPin(context.Background(), testCompany, userId, pin); err != nil {
		t.Fatalf("SetPin: %v", err)
	}
}

func newTestPinGuard(db *gorm.DB, now func() time.Time) *PinGuard {
	g := NewPinGuard(db, config.DefaultPinPolicy(), nil)
	g.HashCost = bcrypt.MinCost
	g.Now = now
	return g
}

func tod(t *testing.T, s string) *models.TimeOfDay {
	t.Helper()
	v, err := models.ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q): %v", s, err)
	}
	return &v
}

func intPtr(v int) *int { return &v }

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time          { return c.t }
func (c *fixedClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func countReleaseActions(db *gorm.DB, companyId, workdayId string) (int64, error) {
	var n int64
	err := db.Model(&models.ReleaseAction{}).
		Where("company_id = ? AND workday_id = ?", companyId, workdayId).
		Count(&n).Error
	return n, err
}

func listOutboxMessages(db *gorm.DB, companyId, referenceId string) ([]models.OutboxMessage, error) {
	var msgs []models.OutboxMessage
	err := db.Where("company_id = ? AND reference_id = ?", companyId, referenceId).
		Order("created_at").
		Find(&msgs).Error
	return msgs, err
}
