package config

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type guardedNote struct {
	ID        uint `gorm:"primaryKey"`
	CompanyId string
	Body      string
}

type sharedLookup struct {
	ID   uint `gorm:"primaryKey"`
	Code string
}

func openGuardedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "guard.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&guardedNote{}, &sharedLookup{}); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	if err := db.Use(NewTenantGuardPlugin()); err != nil {
		t.Fatalf("Use: %v", err)
	}
	if err := db.Create(&guardedNote{CompanyId: "a", Body: "first"}).Error; err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := db.Create(&sharedLookup{Code: "x"}).Error; err != nil {
		t.Fatalf("Create lookup: %v", err)
	}
	return db
}

func TestTenantGuard_RejectsUnscopedStatements(t *testing.T) {
	db := openGuardedDB(t)

	var notes []guardedNote
	if err := db.Where("id = ?", 1).Find(&notes).Error; !errors.Is(err, ErrTenantScopeMissing) {
		t.Fatalf("unscoped query: %v", err)
	}
	if err := db.Model(&guardedNote{}).Where("id = ?", 1).Update("body", "x").Error; !errors.Is(err, ErrTenantScopeMissing) {
		t.Fatalf("unscoped update: %v", err)
	}
	if err := db.Where("id = ?", 1).Delete(&guardedNote{}).Error; !errors.Is(err, ErrTenantScopeMissing) {
		t.Fatalf("unscoped delete: %v", err)
	}
	var n int64
	if err := db.Model(&guardedNote{}).Count(&n).Error; !errors.Is(err, ErrTenantScopeMissing) {
		t.Fatalf("unscoped count: %v", err)
	}
}

func TestTenantGuard_AllowsScopedStatements(t *testing.T) {
	db := openGuardedDB(t)

	var notes []guardedNote
	if err := db.Where("company_id = ? AND id = ?", "a", 1).Find(&notes).Error; err != nil || len(notes) != 1 {
		t.Fatalf("scoped query: %v (%d rows)", err, len(notes))
	}
	if err := db.Where(&guardedNote{CompanyId: "a"}).Find(&notes).Error; err != nil {
		t.Fatalf("struct condition: %v", err)
	}
	if err := db.Where("company_id IN ?", []string{"a", "b"}).Find(&notes).Error; err != nil {
		t.Fatalf("IN condition: %v", err)
	}
	if err := db.Model(&guardedNote{}).Where("company_id = ? AND id = ?", "a", 1).Update("body", "second").Error; err != nil {
		t.Fatalf("scoped update: %v", err)
	}

	var lookups []sharedLookup
	if err := db.Find(&lookups).Error; err != nil {
		t.Fatalf("table without company_id: %v", err)
	}
	if err := db.Raw("SELECT * FROM guarded_notes").Scan(&notes).Error; err != nil {
		t.Fatalf("raw sql: %v", err)
	}
	ctx := SkipTenantScope(context.Background())
	if err := db.WithContext(ctx).Find(&notes).Error; err != nil || len(notes) != 1 {
		t.Fatalf("skip scope: %v (%d rows)", err, len(notes))
	}
}
