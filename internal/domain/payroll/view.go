package payroll

import (
	"fmt"
	"sort"
	"strings"
)

type sortKey struct {
	text    func(PayrollRecord) string
	numeric func(PayrollRecord) float64
}

var sortKeys = map[string]sortKey{
	"employeeId":       {text: func(r PayrollRecord) string { return r.EmployeeID }},
	"name":             {text: func(r PayrollRecord) string { return r.Name }},
	"company":          {text: func(r PayrollRecord) string { return r.Company }},
	"status":           {numeric: func(r PayrollRecord) float64 { return statusRank(r.Status) }},
	"dailyRate":        {numeric: func(r PayrollRecord) float64 { return r.DailyRate }},
	"attendanceDays":   {numeric: func(r PayrollRecord) float64 { return r.AttendanceDays }},
	"earnedWage":       {numeric: func(r PayrollRecord) float64 { return r.EarnedWage }},
	"vda":              {numeric: func(r PayrollRecord) float64 { return r.VDA }},
	"pl":               {numeric: func(r PayrollRecord) float64 { return r.PL }},
	"bonus":            {numeric: func(r PayrollRecord) float64 { return r.Bonus }},
	"grossSalary":      {numeric: func(r PayrollRecord) float64 { return r.GrossSalary }},
	"esiEmployee":      {numeric: func(r PayrollRecord) float64 { return r.ESIEmployee }},
	"pfEmployee":       {numeric: func(r PayrollRecord) float64 { return r.PFEmployee }},
	"uniformDeduction": {numeric: func(r PayrollRecord) float64 { return r.UniformDeduction }},
	"professionalTax":  {numeric: func(r PayrollRecord) float64 { return r.ProfessionalTax }},
	"lwfEmployee":      {numeric: func(r PayrollRecord) float64 { return r.LWFEmployee }},
	"deductionTotal":   {numeric: func(r PayrollRecord) float64 { return r.DeductionTotal }},
	"esiEmployer":      {numeric: func(r PayrollRecord) float64 { return r.ESIEmployer }},
	"pfEmployer":       {numeric: func(r PayrollRecord) float64 { return r.PFEmployer }},
	"lwfEmployer":      {numeric: func(r PayrollRecord) float64 { return r.LWFEmployer }},
	"commission":       {numeric: func(r PayrollRecord) float64 { return r.Commission }},
	"ctc":              {numeric: func(r PayrollRecord) float64 { return r.CTC }},
	"netSalary":        {numeric: func(r PayrollRecord) float64 { return r.NetSalary }},
}

func statusRank(s Status) float64 {
	if s == StatusPaid {
		return 1
	}
	return 0
}

// View projects the ledger for presentation. The ledger is never modified.
func View(ledger Ledger, q Query) []PayrollRecord {
	search := strings.ToLower(q.Search)
	seen := map[string]struct{}{}
	out := make([]PayrollRecord, 0)
	for _, record := range ledger.Records {
		if record.Period != q.Period {
			continue
		}
		if _, dup := seen[record.EmployeeID]; dup {
			continue
		}
		seen[record.EmployeeID] = struct{}{}
		if !matchesStatus(record.Status, q.Status) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(record.EmployeeID), search) &&
			!strings.Contains(strings.ToLower(record.Name), search) {
			continue
		}
		out = append(out, record)
	}
	if len(out) > 0 {
		out = Ledger{Records: out}.Clone().Records
	}

	key, ok := sortKeys[q.SortField]
	if !ok {
		return out
	}
	desc := q.SortDir == SortDesc
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if desc {
			a, b = b, a
		}
		if key.numeric != nil {
			return key.numeric(a) < key.numeric(b)
		}
		return key.text(a) < key.text(b)
	})
	return out
}

func matchesStatus(s Status, filter StatusFilter) bool {
	switch filter {
	case StatusFilterPaid:
		return s == StatusPaid
	case StatusFilterUnpaid:
		return s != StatusPaid
	default:
		return true
	}
}

func ParseStatusFilter(raw string) (StatusFilter, error) {
	switch StatusFilter(strings.ToLower(strings.TrimSpace(raw))) {
	case "", StatusFilterAll:
		return StatusFilterAll, nil
	case StatusFilterPaid:
		return StatusFilterPaid, nil
	case StatusFilterUnpaid:
		return StatusFilterUnpaid, nil
	}
	return "", &ValidationError{Fields: []FieldError{{Field: "status", Reason: "must be one of all, paid, unpaid"}}}
}

func ParseSortField(raw string) (string, error) {
	field := strings.TrimSpace(raw)
	if field == "" {
		return "", nil
	}
	if _, ok := sortKeys[field]; !ok {
		return "", &ValidationError{Fields: []FieldError{{Field: "sort", Reason: fmt.Sprintf("unknown sort field %q", field)}}}
	}
	return field, nil
}

func ParseSortDirection(raw string) (SortDirection, error) {
	switch SortDirection(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SortAsc:
		return SortAsc, nil
	case SortDesc:
		return SortDesc, nil
	}
	return "", &ValidationError{Fields: []FieldError{{Field: "dir", Reason: "must be asc or desc"}}}
}
