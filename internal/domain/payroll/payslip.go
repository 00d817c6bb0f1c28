package payroll

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.English)

type payslipLine struct {
	label  string
	amount float64
}

// WritePayslip renders a single-page PDF payslip for record.
func WritePayslip(w io.Writer, record PayrollRecord) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s (%s)", record.Name, record.EmployeeID))
	pdf.Ln(7)
	if record.Company != "" {
		pdf.Cell(0, 8, fmt.Sprintf("Company: %s", record.Company))
		pdf.Ln(7)
	}
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s", record.Period))
	pdf.Ln(7)
	pdf.Cell(0, 8, amountPrinter.Sprintf("Attendance: %.1f days at %.2f per day", record.AttendanceDays, record.DailyRate))
	pdf.Ln(10)

	writeSection(pdf, "Earnings", []payslipLine{
		{"Earned wage", record.EarnedWage},
		{"VDA", record.VDA},
		{"Allowance", record.Allowance},
		{"Paid leave", record.PL},
		{"Bonus", record.Bonus},
		{"NH/FH", record.NHFHAmount},
		{"Overtime", record.OvertimeWages},
		{"PPE", record.PPECost},
	}, "Gross (Total-B)", record.GrossSalary)

	writeSection(pdf, "Deductions", []payslipLine{
		{"ESI", record.ESIEmployee},
		{"PF", record.PFEmployee},
		{"Uniform", record.UniformDeduction},
		{"Professional tax", record.ProfessionalTax},
		{"LWF", record.LWFEmployee},
	}, "Total deductions", record.DeductionTotal)

	writeSection(pdf, "Employer contributions", []payslipLine{
		{"ESI", record.ESIEmployer},
		{"PF", record.PFEmployer},
		{"LWF", record.LWFEmployer},
		{"Commission", record.Commission},
	}, "Cost to company", record.CTC)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 9, amountPrinter.Sprintf("Net pay (bank transfer): %.2f", record.NetSalary))
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Status: %s", record.Status))

	return pdf.Output(w)
}

func writeSection(pdf *gofpdf.Fpdf, title string, lines []payslipLine, totalLabel string, total float64) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, title)
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range lines {
		if line.amount == 0 {
			continue
		}
		pdf.Cell(80, 7, line.label)
		pdf.CellFormat(40, 7, amountPrinter.Sprintf("%.2f", line.amount), "", 0, "R", false, 0, "")
		pdf.Ln(6)
	}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(80, 7, totalLabel)
	pdf.CellFormat(40, 7, amountPrinter.Sprintf("%.2f", total), "", 0, "R", false, 0, "")
	pdf.Ln(10)
}
