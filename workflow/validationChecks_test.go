package workflow

import (
	"testing"

	"github.com/montron/pm_backend/models"
)

func tbEntry(t *testing.T, start, end string, breakMinutes int) *models.TbEntry {
	return &models.TbEntry{StartTime: tod(t, start), EndTime: tod(t, end), BreakMinutes: intPtr(breakMinutes)}
}

func rsEntry(t *testing.T, start, end string, breakMinutes int) *models.RsEntry {
	return &models.RsEntry{StartTime: tod(t, start), EndTime: tod(t, end), BreakMinutes: intPtr(breakMinutes)}
}

func streetwatchEntries(t *testing.T, times ...string) []models.StreetwatchEntry {
	entries := make([]models.StreetwatchEntry, 0, len(times))
	for i, s := range times {
		entries = append(entries, models.StreetwatchEntry{Sequence: i, Time: *tod(t, s)})
	}
	return entries
}

func issuesWithCode(issues []models.ValidationIssue, code models.IssueCode) []models.ValidationIssue {
	var out []models.ValidationIssue
	for _, issue := range issues {
		if issue.Code == code {
			out = append(out, issue)
		}
	}
	return out
}

func TestBuildIssues_TbVsStreetwatchError(t *testing.T) {
	issues := BuildIssues(&WorkdaySnapshot{
		Workday:            &models.Workday{},
		Tb:                 tbEntry(t, "08:00", "16:30", 30),
		StreetwatchEntries: streetwatchEntries(t, "08:05", "12:00", "16:40"),
	})
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d: %+v", len(issues), issues)
	}
	issue := issues[0]
	if issue.Code != models.IssueCodeTbSwTimeDiff || issue.Severity != models.IssueSeverityError {
		t.Fatalf("expected ERROR %s, got %s %s", models.IssueCodeTbSwTimeDiff, issue.Severity, issue.Code)
	}
	want := map[string]int{"tbMinutes": 480, "streetwatchMinutes": 515, "differenceMinutes": 35}
	for k, v := range want {
		if issue.Delta[k] != v {
			t.Fatalf("delta[%s]: expected %d, got %v", k, v, issue.Delta[k])
		}
	}
}

func TestBuildIssues_TbVsStreetwatchThresholds(t *testing.T) {
	cases := []struct {
		name     string
		lastSw   string
		expected []models.IssueSeverity
	}{
		{"diff 20 warns", "16:25", []models.IssueSeverity{models.IssueSeverityWarn}},
		{"diff 10 passes", "16:15", nil},
		{"diff 15 warns", "16:20", []models.IssueSeverity{models.IssueSeverityWarn}},
		{"diff 30 errors", "16:35", []models.IssueSeverity{models.IssueSeverityError}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			issues := BuildIssues(&WorkdaySnapshot{
				Workday:            &models.Workday{},
				Tb:                 tbEntry(t, "08:00", "16:30", 30),
				StreetwatchEntries: streetwatchEntries(t, "08:05", tc.lastSw),
			})
			got := issuesWithCode(issues, models.IssueCodeTbSwTimeDiff)
			if len(got) != len(tc.expected) {
				t.Fatalf("expected %d TB_SW issues, got %d", len(tc.expected), len(got))
			}
			for i, sev := range tc.expected {
				if got[i].Severity != sev {
					t.Fatalf("expected severity %s, got %s", sev, got[i].Severity)
				}
			}
		})
	}
}

func TestBuildIssues_TbVsStreetwatchSkippedWhenNotComputable(t *testing.T) {
	// break longer than the shift
	issues := BuildIssues(&WorkdaySnapshot{
		Workday:            &models.Workday{},
		Tb:                 tbEntry(t, "08:00", "08:30", 60),
		StreetwatchEntries: streetwatchEntries(t, "08:00", "17:00"),
	})
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}

	issues = BuildIssues(&WorkdaySnapshot{
		Workday: &models.Workday{},
		Tb:      tbEntry(t, "08:00", "16:30", 30),
	})
	if len(issues) != 0 {
		t.Fatalf("expected no issues without streetwatch entries, got %+v", issues)
	}
}

func TestBuildIssues_RasterMismatch(t *testing.T) {
	issues := BuildIssues(&WorkdaySnapshot{
		Workday: &models.Workday{},
		Tb:      tbEntry(t, "08:07", "16:30", 30),
	})
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(issues))
	}
	issue := issues[0]
	if issue.Code != models.IssueCodeRasterMismatch || issue.Severity != models.IssueSeverityWarn {
		t.Fatalf("expected WARN RASTER_MISMATCH, got %s %s", issue.Severity, issue.Code)
	}
	if issue.FieldRef != "tb.startTime" {
		t.Fatalf("expected fieldRef tb.startTime, got %s", issue.FieldRef)
	}
	if issue.Delta["nearestQuarter"] != 0 || issue.Delta["minutes"] != 7 {
		t.Fatalf("unexpected delta %v", issue.Delta)
	}

	issues = BuildIssues(&WorkdaySnapshot{
		Workday: &models.Workday{},
		Rs:      rsEntry(t, "08:00", "16:52", 30),
	})
	if len(issues) != 1 || issues[0].FieldRef != "rs.endTime" || issues[0].Delta["nearestQuarter"] != 45 {
		t.Fatalf("expected one rs.endTime raster issue with nearestQuarter 45, got %+v", issues)
	}
}

func TestBuildIssues_TbVsRsMismatchesAreIndependent(t *testing.T) {
	issues := BuildIssues(&WorkdaySnapshot{
		Workday: &models.Workday{},
		Tb:      tbEntry(t, "08:00", "16:30", 30),
		Rs:      rsEntry(t, "08:15", "16:45", 45),
	})
	for _, code := range []models.IssueCode{
		models.IssueCodeTbRsStartMismatch,
		models.IssueCodeTbRsEndMismatch,
		models.IssueCodeTbRsBreakMismatch,
	} {
		got := issuesWithCode(issues, code)
		if len(got) != 1 {
			t.Fatalf("expected one %s, got %d", code, len(got))
		}
		if got[0].Severity != models.IssueSeverityWarn {
			t.Fatalf("%s: expected WARN, got %s", code, got[0].Severity)
		}
	}
	start := issuesWithCode(issues, models.IssueCodeTbRsStartMismatch)[0]
	if start.Delta["tbStartTime"] != "08:00" || start.Delta["rsStartTime"] != "08:15" {
		t.Fatalf("unexpected start delta %v", start.Delta)
	}

	issues = BuildIssues(&WorkdaySnapshot{
		Workday: &models.Workday{},
		Tb:      tbEntry(t, "08:00", "16:30", 30),
		Rs:      rsEntry(t, "08:00", "16:30", 30),
	})
	if len(issues) != 0 {
		t.Fatalf("expected no issues for matching TB and RS, got %+v", issues)
	}
}
