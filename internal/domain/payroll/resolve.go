package payroll

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type field string

const (
	fieldIdentity       field = "identity"
	fieldName           field = "name"
	fieldDailyRate      field = "dailyRate"
	fieldAttendance     field = "attendanceDays"
	fieldEarnedWage     field = "earnedWage"
	fieldVDA            field = "vda"
	fieldVDARate        field = "vdaRate"
	fieldPL             field = "pl"
	fieldBonus          field = "bonus"
	fieldAllowance      field = "allowance"
	fieldDailyAllowance field = "dailyAllowance"
	fieldNHFHDays       field = "nhFhDays"
	fieldNHFHAmount     field = "nhFhAmount"
	fieldOvertimeDays   field = "overtimeDays"
	fieldOvertimeWages  field = "overtimeWages"
	fieldPPECost        field = "ppeCost"
	fieldGross          field = "grossSalary"
	fieldESIEmployee    field = "esiEmployee"
	fieldPFEmployee     field = "pfEmployee"
	fieldUniform        field = "uniformDeduction"
	fieldPT             field = "professionalTax"
	fieldLWFEmployee    field = "lwfEmployee"
	fieldLWFEmployeeOn  field = "lwfEmployeeFlag"
	fieldDeductionTotal field = "deductionTotal"
	fieldESIEmployer    field = "esiEmployer"
	fieldPFEmployer     field = "pfEmployer"
	fieldLWFEmployer    field = "lwfEmployer"
	fieldLWFEmployerOn  field = "lwfEmployerFlag"
	fieldCommission     field = "commission"
	fieldCTC            field = "ctc"
	fieldNet            field = "netSalary"
)

// fieldRules lists, per canonical field, the source keys tried in order.
// The first key holding a usable value wins; formula fallbacks live in derive.go.
var fieldRules = map[field][]string{
	fieldIdentity:       {"employee_id", "emp_id"},
	fieldName:           {"name", "employee_name"},
	fieldDailyRate:      {"daily_salary", "basic_rate"},
	fieldAttendance:     {"attendance_days", "attendance"},
	fieldEarnedWage:     {"monthly_salary", "earned_wage"},
	fieldVDA:            {"vda"},
	fieldVDARate:        {"vda_rate"},
	fieldPL:             {"pl", "pl_daily_rate"},
	fieldBonus:          {"bonus"},
	fieldAllowance:      {"allowance"},
	fieldDailyAllowance: {"daily_allowance"},
	fieldNHFHDays:       {"nh_fh_days"},
	fieldNHFHAmount:     {"nh_fh_amt"},
	fieldOvertimeDays:   {"ot_days"},
	fieldOvertimeWages:  {"ot_wages"},
	fieldPPECost:        {"ppe_cost"},
	fieldGross:          {"total_b", "gross_salary"},
	fieldESIEmployee:    {"esi_employee"},
	fieldPFEmployee:     {"pf_employee"},
	fieldUniform:        {"uniform_deduction"},
	fieldPT:             {"pt", "professional_tax"},
	fieldLWFEmployee:    {"lwf_employee"},
	fieldLWFEmployeeOn:  {"lwf_employee_flag", "lwf_employee_bool"},
	fieldDeductionTotal: {"deduction_total"},
	fieldESIEmployer:    {"esi_employer"},
	fieldPFEmployer:     {"pf_employer"},
	fieldLWFEmployer:    {"lwf_employer"},
	fieldLWFEmployerOn:  {"lwf_employer_flag", "lwf_employer_bool"},
	fieldCommission:     {"commission"},
	fieldCTC:            {"ctc"},
	fieldNet:            {"bank_transfer", "net_salary", "totalPay"},
}

// computedFields are columns that mark a row as already carrying upstream calculations.
var computedFields = []field{
	fieldEarnedWage, fieldVDA, fieldGross, fieldNet, fieldDeductionTotal, fieldESIEmployee, fieldPFEmployee,
}

// resolveNumber returns the first present numeric value for f. Unparsable values count as absent.
func (r RawRecord) resolveNumber(f field) (float64, bool) {
	for _, key := range fieldRules[f] {
		value, ok := r[key]
		if !ok || value == nil {
			continue
		}
		if n, ok := toNumber(value); ok && !math.IsNaN(n) && !math.IsInf(n, 0) {
			return n, true
		}
	}
	return 0, false
}

func (r RawRecord) number(f field) float64 {
	n, _ := r.resolveNumber(f)
	return n
}

func (r RawRecord) resolveText(f field) (string, bool) {
	for _, key := range fieldRules[f] {
		value, ok := r[key]
		if !ok || value == nil {
			continue
		}
		text := strings.TrimSpace(toText(value))
		if text != "" {
			return text, true
		}
	}
	return "", false
}

func (r RawRecord) hasAny(fields ...field) bool {
	for _, f := range fields {
		if _, ok := r.resolveNumber(f); ok {
			return true
		}
	}
	return false
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		n, err := v.Float64()
		return n, err == nil
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		if cleaned == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(cleaned, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func toText(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
