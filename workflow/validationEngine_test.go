package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/montron/pm_backend/models"
)

func issueFingerprint(t *testing.T, issues []models.ValidationIssue) string {
	t.Helper()
	type fp struct {
		Code     models.IssueCode
		Severity models.IssueSeverity
		FieldRef string
		Delta    map[string]interface{}
	}
	out := make([]fp, 0, len(issues))
	for _, issue := range issues {
		out = append(out, fp{issue.Code, issue.Severity, issue.FieldRef, issue.Delta})
	}
	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal issues: %v", err)
	}
	return string(data)
}

func TestRecalculate_IsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	employee := seedEmployee(t, db, testCompany, "E-1")
	workday := seedWorkday(t, db, employee, "2024-03-04")
	seedTb(t, db, workday, "08:07", "16:30", 30)
	seedRs(t, db, workday, "08:00", "16:30", 45)
	seedStreetwatch(t, db, workday, "08:05", "16:40")

	first, err := Recalculate(ctx, db, testCompany, workday.ID)
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if len(first) == 0 {
		t.Fatalf("expected issues on first recompute")
	}
	if _, err := Recalculate(ctx, db, testCompany, workday.ID); err != nil {
		t.Fatalf("Recalculate (2nd): %v", err)
	}

	stored, err := models.ListValidationIssues(db.WithContext(ctx), testCompany, workday.ID)
	if err != nil {
		t.Fatalf("ListValidationIssues: %v", err)
	}
	if len(stored) != len(first) {
		t.Fatalf("expected %d stored issues after two recomputes, got %d", len(first), len(stored))
	}
	if got, want := issueFingerprint(t, stored), issueFingerprint(t, first); got != want {
		t.Fatalf("stored issues differ from computed set:\n got %s\nwant %s", got, want)
	}
}

func TestRecalculate_ReplacesStaleIssues(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	employee := seedEmployee(t, db, testCompany, "E-1")
	workday := seedWorkday(t, db, employee, "2024-03-04")
	tb := seedTb(t, db, workday, "08:07", "16:30", 30)

	if issues, err := Recalculate(ctx, db, testCompany, workday.ID); err != nil || len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d (err %v)", len(issues), err)
	}
	if err := db.Model(&models.TbEntry{}).Where("company_id = ? AND id = ?", testCompany, tb.ID).
		Update("start_time", "08:00").Error; err != nil {
		t.Fatalf("update tb: %v", err)
	}
	if issues, err := Recalculate(ctx, db, testCompany, workday.ID); err != nil || len(issues) != 0 {
		t.Fatalf("expected 0 issues after fix, got %d (err %v)", len(issues), err)
	}
	stored, err := models.ListValidationIssues(db, testCompany, workday.ID)
	if err != nil {
		t.Fatalf("ListValidationIssues: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("expected stale issues to be removed, got %d", len(stored))
	}
}

func TestRecalculate_CrossTenantIsNotFound(t *testing.T) {
	db := openTestDB(t)
	employee := seedEmployee(t, db, testCompany, "E-1")
	workday := seedWorkday(t, db, employee, "2024-03-04")

	_, err := Recalculate(context.Background(), db, "company-b", workday.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
