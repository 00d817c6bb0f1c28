package payroll

import "time"

type Status string

type StatusFilter string

type SortDirection string

// RawRecord is one uploaded row keyed by whatever column names the source used.
type RawRecord map[string]any

type SourceGroup struct {
	Name string      `json:"name" validate:"max=200"`
	Rows []RawRecord `json:"rows"`
}

type UploadBatch struct {
	Period string        `json:"period" validate:"required,max=64"`
	Groups []SourceGroup `json:"groups" validate:"dive"`
}

type PayrollRecord struct {
	EmployeeID string `json:"employeeId"`
	Name       string `json:"name"`
	Company    string `json:"company"`
	Period     string `json:"period"`
	Derivation string `json:"derivation"`

	DailyRate      float64 `json:"dailyRate"`
	AttendanceDays float64 `json:"attendanceDays"`

	EarnedWage    float64 `json:"earnedWage"`
	VDA           float64 `json:"vda"`
	PL            float64 `json:"pl"`
	Bonus         float64 `json:"bonus"`
	Allowance     float64 `json:"allowance"`
	NHFHAmount    float64 `json:"nhFhAmount"`
	OvertimeWages float64 `json:"overtimeWages"`
	PPECost       float64 `json:"ppeCost"`
	GrossSalary   float64 `json:"grossSalary"`

	ESIEmployee      float64 `json:"esiEmployee"`
	PFEmployee       float64 `json:"pfEmployee"`
	UniformDeduction float64 `json:"uniformDeduction"`
	ProfessionalTax  float64 `json:"professionalTax"`
	LWFEmployee      float64 `json:"lwfEmployee"`
	DeductionTotal   float64 `json:"deductionTotal"`

	ESIEmployer float64 `json:"esiEmployer"`
	PFEmployer  float64 `json:"pfEmployer"`
	LWFEmployer float64 `json:"lwfEmployer"`
	Commission  float64 `json:"commission"`
	CTC         float64 `json:"ctc"`

	NetSalary float64 `json:"netSalary"`

	Status Status     `json:"status"`
	PaidAt *time.Time `json:"paidAt,omitempty"`
}

// Ledger is the serializable multi-period aggregate. Records keep insertion order.
type Ledger struct {
	Records []PayrollRecord `json:"records"`
}

type Query struct {
	Period    string
	Status    StatusFilter
	Search    string
	SortField string
	SortDir   SortDirection
}

type DeriveResult struct {
	Records []PayrollRecord `json:"-"`
	Dropped map[string]int  `json:"dropped"`
}

type ReconcileResult struct {
	Kept       int `json:"kept"`
	Inserted   int `json:"inserted"`
	Replaced   int `json:"replaced"`
	Duplicates int `json:"duplicates"`
}

type UploadResult struct {
	BatchID  string         `json:"batchId"`
	Period   string         `json:"period"`
	Inserted int            `json:"inserted"`
	Replaced int            `json:"replaced"`
	Dupes    int            `json:"duplicates"`
	Dropped  map[string]int `json:"dropped"`
}

type PeriodInfo struct {
	Period      string `json:"period"`
	RecordCount int    `json:"recordCount"`
	PaidCount   int    `json:"paidCount"`
}

type PeriodSummary struct {
	Period          string   `json:"period"`
	EmployeeCount   int      `json:"employeeCount"`
	PaidCount       int      `json:"paidCount"`
	UnpaidCount     int      `json:"unpaidCount"`
	TotalGross      float64  `json:"totalGross"`
	TotalDeductions float64  `json:"totalDeductions"`
	TotalNet        float64  `json:"totalNet"`
	TotalCTC        float64  `json:"totalCtc"`
	PaidNet         float64  `json:"paidNet"`
	AverageNet      float64  `json:"averageNet"`
	PreviousPeriod  string   `json:"previousPeriod,omitempty"`
	Changes         *Changes `json:"changes,omitempty"`
}

// Changes holds percentage deltas against the previous period.
type Changes struct {
	Employees  float64 `json:"employees"`
	TotalNet   float64 `json:"totalNet"`
	AverageNet float64 `json:"averageNet"`
}
