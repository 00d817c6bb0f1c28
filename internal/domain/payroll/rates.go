package payroll

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RateConfig holds the tenant's statutory rate parameters. Percentages are expressed as 0-100.
type RateConfig struct {
	VDARate             float64 `json:"vdaRate" validate:"gte=0"`
	PLFactor            float64 `json:"plFactor" validate:"gte=0"`
	BonusPercent        float64 `json:"bonusPercent" validate:"gte=0,lte=100"`
	ESIEmployeePercent  float64 `json:"esiEmployeePercent" validate:"gte=0,lte=100"`
	ESIEmployerPercent  float64 `json:"esiEmployerPercent" validate:"gte=0,lte=100"`
	PFEmployeePercent   float64 `json:"pfEmployeePercent" validate:"gte=0,lte=100"`
	PFEmployerPercent   float64 `json:"pfEmployerPercent" validate:"gte=0,lte=100"`
	CommissionPerDay    float64 `json:"commissionPerDay" validate:"gte=0"`
	PPECostPerDay       float64 `json:"ppeCostPerDay" validate:"gte=0"`
	WorkingDaysPerMonth int     `json:"workingDaysPerMonth" validate:"gte=1,lte=31"`
	LWFEmployeeAmount   float64 `json:"lwfEmployeeAmount" validate:"gte=0"`
	LWFEmployerAmount   float64 `json:"lwfEmployerAmount" validate:"gte=0"`
	OvertimeMultiplier  float64 `json:"overtimeMultiplier" validate:"gte=0"`
}

func DefaultRateConfig() RateConfig {
	return RateConfig{
		VDARate:             135.32,
		PLFactor:            1.3,
		BonusPercent:        8.33,
		ESIEmployeePercent:  0.75,
		ESIEmployerPercent:  3.25,
		PFEmployeePercent:   12,
		PFEmployerPercent:   13,
		CommissionPerDay:    25,
		PPECostPerDay:       3,
		WorkingDaysPerMonth: 26,
		LWFEmployeeAmount:   40,
		LWFEmployerAmount:   60,
		OvertimeMultiplier:  2,
	}
}

func (c RateConfig) Validate() error {
	return validateStruct(c)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateStruct(value any) error {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldError{Field: fieldPath(fe), Reason: describeTag(fe)})
	}
	return out
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
