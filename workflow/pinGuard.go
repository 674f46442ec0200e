package workflow

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/montron/pm_backend/config"
	"github.com/montron/pm_backend/models"
	"github.com/montron/pm_backend/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var pinPattern = regexp.MustCompile(`^\d{4}$`)

// PinGuard verifies release PINs and enforces the failed-attempt lockout.
//
// States per (company, user): no PIN, active, locked. Transitions happen only
// in SetPin and Verify; an expired lock is cleared lazily by the next Verify.
type PinGuard struct {
	DB       *gorm.DB
	Policy   config.PinPolicy
	HashCost int
	Now      func() time.Time
	Logger   *logrus.Logger
}

func NewPinGuard(db *gorm.DB, policy config.PinPolicy, logger *logrus.Logger) *PinGuard {
	return &PinGuard{
		DB:     db,
		Policy: policy,
		Logger: logger,
	}
}

type PinStatus struct {
	IsSet          bool       `json:"is_set"`
	IsLocked       bool       `json:"is_locked"`
	LockedUntil    *time.Time `json:"locked_until"`
	FailedAttempts int        `json:"failed_attempts"`
}

func (g *PinGuard) now() time.Time {
	if g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}

func (g *PinGuard) policy() config.PinPolicy {
	p := g.Policy
	def := config.DefaultPinPolicy()
	if p.MaxFailedAttempts <= 0 {
		p.MaxFailedAttempts = def.MaxFailedAttempts
	}
	if p.LockDuration <= 0 {
		p.LockDuration = def.LockDuration
	}
	return p
}

func validatePinFormat(rawPin string) error {
	if !pinPattern.MatchString(rawPin) {
		return &BadInputError{Field: "pin", Reason: "must be exactly 4 digits"}
	}
	return nil
}

// SetPin registers or replaces the PIN and clears any failed attempts and lockout.
func (g *PinGuard) SetPin(ctx context.Context, companyId, userId, rawPin string) error {
	if err := validatePinFormat(rawPin); err != nil {
		return err
	}
	hash, err := utils.HashPin(rawPin, g.HashCost)
	if err != nil {
		return err
	}
	return g.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := models.FindUserPinForUpdate(tx, companyId, userId)
		if err != nil {
			return err
		}
		if existing == nil {
			return tx.Create(&models.UserPin{
				CompanyId: companyId,
				UserId:    userId,
				PinHash:   hash,
			}).Error
		}
		return tx.Model(&models.UserPin{}).
			Where("company_id = ? AND id = ?", companyId, existing.ID).
			Updates(map[string]interface{}{
				"pin_hash":        hash,
				"failed_attempts": 0,
				"locked_until":    nil,
			}).Error
	})
}

// Verify checks rawPin for the user. The attempt counter and lockout are
// committed before returning, whether the PIN matched or not.
//
// Errors: *BadInputError (format), ErrPinNotConfigured, *PinLockedError,
// *PinInvalidError.
func (g *PinGuard) Verify(ctx context.Context, companyId, userId, rawPin string) error {
	if err := validatePinFormat(rawPin); err != nil {
		return err
	}
	var outcome error
	err := g.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		outcome, err = g.verifyTx(tx, companyId, userId, rawPin)
		return err
	})
	if err != nil {
		return err
	}
	return outcome
}

func (g *PinGuard) verifyTx(tx *gorm.DB, companyId, userId, rawPin string) (outcome error, err error) {
	pin, err := models.FindUserPinForUpdate(tx, companyId, userId)
	if err != nil {
		return nil, err
	}
	if pin == nil {
		return ErrPinNotConfigured, nil
	}

	now := g.now()
	policy := g.policy()
	dirty := false

	if pin.LockedUntil != nil {
		if pin.LockedUntil.After(now) {
			return &PinLockedError{LockedUntil: *pin.LockedUntil}, nil
		}
		pin.LockedUntil = nil
		pin.FailedAttempts = 0
		dirty = true
	}

	cmpErr := utils.ComparePin(pin.PinHash, rawPin)
	if cmpErr != nil && !errors.Is(cmpErr, bcrypt.ErrMismatchedHashAndPassword) {
		return nil, cmpErr
	}

	if cmpErr != nil {
		pin.FailedAttempts++
		if pin.FailedAttempts >= policy.MaxFailedAttempts {
			lockedUntil := now.Add(policy.LockDuration)
			pin.LockedUntil = &lockedUntil
			outcome = &PinLockedError{LockedUntil: lockedUntil}
			config.LoggerOrDefault(g.Logger).WithFields(logrus.Fields{
				"company_id":   companyId,
				"user_id":      userId,
				"locked_until": lockedUntil,
			}).Warn("pin locked after repeated failures")
		} else {
			outcome = &PinInvalidError{RemainingAttempts: policy.MaxFailedAttempts - pin.FailedAttempts}
		}
		return outcome, models.SaveUserPinState(tx, pin)
	}

	if pin.FailedAttempts != 0 || pin.LockedUntil != nil {
		pin.FailedAttempts = 0
		pin.LockedUntil = nil
		dirty = true
	}
	if dirty {
		return nil, models.SaveUserPinState(tx, pin)
	}
	return nil, nil
}

// Status reports the PIN state; an expired lock is reported as unlocked.
func (g *PinGuard) Status(ctx context.Context, companyId, userId string) (PinStatus, error) {
	pin, err := models.FindUserPin(g.DB.WithContext(ctx), companyId, userId)
	if err != nil {
		return PinStatus{}, err
	}
	if pin == nil {
		return PinStatus{}, nil
	}
	status := PinStatus{
		IsSet:          true,
		FailedAttempts: pin.FailedAttempts,
	}
	if pin.LockedUntil != nil && pin.LockedUntil.After(g.now()) {
		until := *pin.LockedUntil
		status.IsLocked = true
		status.LockedUntil = &until
	}
	return status, nil
}
