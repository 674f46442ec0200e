// seed-dev prepares a development tenant: one employee with a TB submission
// for today, a release PIN for the dispatcher user and a JWT to call the API.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-dev
//
// SEED_COMPANY_ID, SEED_USER_ID and SEED_PIN override the defaults below.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/montron/pm_backend/config"
	"github.com/montron/pm_backend/models"
	"github.com/montron/pm_backend/utils"
	"github.com/montron/pm_backend/workflow"
)

const (
	defaultCompanyId = "dev-company"
	defaultUserId    = "dev-dispatcher"
	defaultPin       = "1234"
	employeeExtId    = "dev-employee-1"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	ctx := context.Background()
	companyId := envOr("SEED_COMPANY_ID", defaultCompanyId)
	userId := envOr("SEED_USER_ID", defaultUserId)
	pin := envOr("SEED_PIN", defaultPin)

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fail("database not initialized (config.GetDB returned nil). Set DB_* env vars.")
	}
	if err := models.MigrateTable(db); err != nil {
		fail("failed to migrate: %v", err)
	}

	employee, err := models.UpsertEmployee(db.WithContext(ctx), models.Employee{
		CompanyId:  companyId,
		ExternalId: employeeExtId,
		Username:   "mmuster",
		FirstName:  "Max",
		LastName:   "Muster",
		Department: "Montage",
		Status:     models.EmployeeStatusActive,
	})
	if err != nil {
		fail("failed to upsert employee: %v", err)
	}

	start, end := models.NewTimeOfDay(7, 0), models.NewTimeOfDay(15, 30)
	result, err := workflow.IngestTbSubmission(ctx, db, companyId, workflow.TbSubmission{
		SubmissionId:       "seed-tb-" + time.Now().UTC().Format(models.WorkDateLayout),
		EmployeeExternalId: employeeExtId,
		WorkDate:           time.Now().UTC().Format(models.WorkDateLayout),
		UpdatedAt:          time.Now().UTC(),
		StartTime:          &start,
		EndTime:            &end,
		BreakMinutes:       utils.Ptr(30),
		LicensePlate:       "B-MT 1234",
	})
	if err != nil {
		fail("failed to ingest TB: %v", err)
	}

	pins := workflow.NewPinGuard(db, config.PinPolicyFromEnv(), config.GetLogger())
	if err := pins.SetPin(ctx, companyId, userId, pin); err != nil {
		fail("failed to set pin: %v", err)
	}

	token, err := utils.JwtGenerate(userId, companyId, userId, "dispatcher")
	if err != nil {
		fail("failed to sign token: %v", err)
	}

	fmt.Printf("employee:  %s (%s)\n", employee.ID, employee.DisplayName())
	fmt.Printf("workday:   %s (%s)\n", result.WorkdayId, result.Outcome)
	fmt.Printf("pin:       %s for user %q\n", pin, userId)
	fmt.Printf("token:     %s\n", token)
}
