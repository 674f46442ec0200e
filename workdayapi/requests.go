package workdayapi

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var pinPattern = regexp.MustCompile(`^[0-9]{4}$`)

// PinValidator accepts exactly four ASCII digits.
var PinValidator = func(fl validator.FieldLevel) bool {
	return pinPattern.MatchString(fl.Field().String())
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("pin4", PinValidator)
	return v
}

type PinRequest struct {
	Pin string `json:"pin" validate:"required,pin4"`
}

type ReleaseRequest struct {
	Pin            string `json:"pin" validate:"required,pin4"`
	ForceRelease   bool   `json:"force_release"`
	OverrideReason string `json:"override_reason" validate:"max=1000"`
}
