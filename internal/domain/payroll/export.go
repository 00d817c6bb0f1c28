package payroll

import (
	"encoding/csv"
	"fmt"
	"io"
)

var registerHeader = []string{
	"employee_id", "name", "company", "attendance_days", "earned_wage", "vda", "pl", "bonus", "gross_salary",
	"esi_employee", "pf_employee", "uniform_deduction", "pt", "lwf_employee", "deduction_total",
	"esi_employer", "pf_employer", "lwf_employer", "commission", "ctc", "net_salary", "status",
}

// WriteRegister writes the salary register for records as CSV.
func WriteRegister(w io.Writer, records []PayrollRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(registerHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.EmployeeID, r.Name, r.Company, money(r.AttendanceDays),
			money(r.EarnedWage), money(r.VDA), money(r.PL), money(r.Bonus), money(r.GrossSalary),
			money(r.ESIEmployee), money(r.PFEmployee), money(r.UniformDeduction), money(r.ProfessionalTax),
			money(r.LWFEmployee), money(r.DeductionTotal),
			money(r.ESIEmployer), money(r.PFEmployer), money(r.LWFEmployer), money(r.Commission), money(r.CTC),
			money(r.NetSalary), string(r.Status),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
