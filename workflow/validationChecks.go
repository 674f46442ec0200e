package workflow

import (
	"fmt"

	"github.com/montron/pm_backend/models"
	"gorm.io/datatypes"
)

// Thresholds of the TB vs Streetwatch working time comparison.
const (
	swDiffWarnMinutes  = 15
	swDiffErrorMinutes = 30
)

// WorkdaySnapshot is everything the checks read. Nil members are absent records.
type WorkdaySnapshot struct {
	Workday            *models.Workday
	Tb                 *models.TbEntry
	Rs                 *models.RsEntry
	Streetwatch        *models.StreetwatchDay
	StreetwatchEntries []models.StreetwatchEntry
}

// BuildIssues runs every check against the snapshot and returns the complete
// issue set in a stable order. It has no side effects.
func BuildIssues(s *WorkdaySnapshot) []models.ValidationIssue {
	issues := []models.ValidationIssue{}
	if s == nil {
		return issues
	}
	if s.Tb != nil {
		issues = appendRaster(issues, s.Tb.StartTime, "tb.startTime")
		issues = appendRaster(issues, s.Tb.EndTime, "tb.endTime")
	}
	if s.Rs != nil {
		issues = appendRaster(issues, s.Rs.StartTime, "rs.startTime")
		issues = appendRaster(issues, s.Rs.EndTime, "rs.endTime")
	}
	if s.Tb != nil && len(s.StreetwatchEntries) > 0 {
		issues = appendTbVsStreetwatch(issues, s.Tb, s.StreetwatchEntries)
	}
	if s.Tb != nil && s.Rs != nil {
		issues = appendTbVsRs(issues, s.Tb, s.Rs)
	}
	return issues
}

func newIssue(code models.IssueCode, severity models.IssueSeverity, message, fieldRef string, delta map[string]interface{}) models.ValidationIssue {
	return models.ValidationIssue{
		Code:     code,
		Severity: severity,
		Message:  message,
		FieldRef: fieldRef,
		Delta:    datatypes.JSONMap(delta),
	}
}

// appendRaster flags a time whose minute of hour is off the 15-minute grid.
// nearestQuarter is the quarter at or below the minute.
func appendRaster(issues []models.ValidationIssue, t *models.TimeOfDay, fieldRef string) []models.ValidationIssue {
	if t == nil || t.OnRaster() {
		return issues
	}
	minute := t.Minute()
	return append(issues, newIssue(
		models.IssueCodeRasterMismatch,
		models.IssueSeverityWarn,
		"Time is not aligned to 15-minute raster",
		fieldRef,
		map[string]interface{}{
			"minutes":        minute,
			"nearestQuarter": (minute / 15) * 15,
		},
	))
}

// streetwatchSpanMinutes is last minus first checkpoint; entries come sorted by time.
func streetwatchSpanMinutes(entries []models.StreetwatchEntry) (int, bool) {
	if len(entries) == 0 {
		return 0, false
	}
	span := entries[len(entries)-1].Time.Minutes() - entries[0].Time.Minutes()
	if span < 0 {
		return 0, false
	}
	return span, true
}

func appendTbVsStreetwatch(issues []models.ValidationIssue, tb *models.TbEntry, entries []models.StreetwatchEntry) []models.ValidationIssue {
	tbMinutes, ok := tb.WorkedMinutes()
	if !ok {
		return issues
	}
	swMinutes, ok := streetwatchSpanMinutes(entries)
	if !ok {
		return issues
	}
	diff := tbMinutes - swMinutes
	if diff < 0 {
		diff = -diff
	}
	if diff < swDiffWarnMinutes {
		return issues
	}
	severity := models.IssueSeverityWarn
	if diff >= swDiffErrorMinutes {
		severity = models.IssueSeverityError
	}
	return append(issues, newIssue(
		models.IssueCodeTbSwTimeDiff,
		severity,
		fmt.Sprintf("Difference between TB and Streetwatch working time is %d minutes", diff),
		"tb.totalTime",
		map[string]interface{}{
			"tbMinutes":          tbMinutes,
			"streetwatchMinutes": swMinutes,
			"differenceMinutes":  diff,
		},
	))
}

// appendTbVsRs compares start, end and break independently; each mismatch is its own issue.
func appendTbVsRs(issues []models.ValidationIssue, tb *models.TbEntry, rs *models.RsEntry) []models.ValidationIssue {
	if tb.StartTime != nil && rs.StartTime != nil && *tb.StartTime != *rs.StartTime {
		issues = append(issues, newIssue(
			models.IssueCodeTbRsStartMismatch,
			models.IssueSeverityWarn,
			"TB and RS start time differ",
			"tb.startTime",
			map[string]interface{}{
				"tbStartTime": tb.StartTime.String(),
				"rsStartTime": rs.StartTime.String(),
			},
		))
	}
	if tb.EndTime != nil && rs.EndTime != nil && *tb.EndTime != *rs.EndTime {
		issues = append(issues, newIssue(
			models.IssueCodeTbRsEndMismatch,
			models.IssueSeverityWarn,
			"TB and RS end time differ",
			"tb.endTime",
			map[string]interface{}{
				"tbEndTime": tb.EndTime.String(),
				"rsEndTime": rs.EndTime.String(),
			},
		))
	}
	if tb.BreakMinutes != nil && rs.BreakMinutes != nil && *tb.BreakMinutes != *rs.BreakMinutes {
		issues = append(issues, newIssue(
			models.IssueCodeTbRsBreakMismatch,
			models.IssueSeverityWarn,
			"TB and RS break minutes differ",
			"tb.breakMinutes",
			map[string]interface{}{
				"tbBreakMinutes": *tb.BreakMinutes,
				"rsBreakMinutes": *rs.BreakMinutes,
			},
		))
	}
	return issues
}
