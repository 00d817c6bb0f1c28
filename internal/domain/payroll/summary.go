package payroll

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var periodLayouts = []string{"January 2006", "Jan 2006", "01/2006", "1/2006", "2006-01"}

// Summarize totals one period and compares it with the period before it.
func Summarize(ledger Ledger, period string) (PeriodSummary, error) {
	current := View(ledger, Query{Period: period})
	if len(current) == 0 {
		return PeriodSummary{}, ErrNotFound
	}
	summary := summarizeRecords(period, current)

	prevPeriod, ok := previousPeriod(ledger.Periods(), period)
	if !ok {
		return summary, nil
	}
	prev := summarizeRecords(prevPeriod, View(ledger, Query{Period: prevPeriod}))
	summary.PreviousPeriod = prevPeriod
	summary.Changes = &Changes{
		Employees:  percentChange(float64(prev.EmployeeCount), float64(summary.EmployeeCount)),
		TotalNet:   percentChange(prev.TotalNet, summary.TotalNet),
		AverageNet: percentChange(prev.AverageNet, summary.AverageNet),
	}
	return summary, nil
}

// previousPeriod picks the latest period whose month falls before period's.
// A period without a recognisable month compares with the one listed before
// it in the ledger.
func previousPeriod(periods []PeriodInfo, period string) (string, bool) {
	month, ok := parsePeriod(period)
	if !ok {
		for i, info := range periods {
			if info.Period == period && i > 0 {
				return periods[i-1].Period, true
			}
		}
		return "", false
	}

	var best string
	var bestMonth time.Time
	for _, info := range periods {
		at, ok := parsePeriod(info.Period)
		if !ok || !at.Before(month) {
			continue
		}
		if best == "" || at.After(bestMonth) {
			best, bestMonth = info.Period, at
		}
	}
	return best, best != ""
}

func parsePeriod(period string) (time.Time, bool) {
	period = strings.Join(strings.Fields(period), " ")
	for _, layout := range periodLayouts {
		if at, err := time.Parse(layout, period); err == nil {
			return at, true
		}
	}
	return time.Time{}, false
}

func summarizeRecords(period string, records []PayrollRecord) PeriodSummary {
	var gross, deductions, net, ctc, paidNet decimal.Decimal
	out := PeriodSummary{Period: period, EmployeeCount: len(records)}
	for _, r := range records {
		gross = gross.Add(decimal.NewFromFloat(r.GrossSalary))
		deductions = deductions.Add(decimal.NewFromFloat(r.DeductionTotal))
		net = net.Add(decimal.NewFromFloat(r.NetSalary))
		ctc = ctc.Add(decimal.NewFromFloat(r.CTC))
		if r.Status == StatusPaid {
			out.PaidCount++
			paidNet = paidNet.Add(decimal.NewFromFloat(r.NetSalary))
		} else {
			out.UnpaidCount++
		}
	}
	out.TotalGross = gross.Round(2).InexactFloat64()
	out.TotalDeductions = deductions.Round(2).InexactFloat64()
	out.TotalNet = net.Round(2).InexactFloat64()
	out.TotalCTC = ctc.Round(2).InexactFloat64()
	out.PaidNet = paidNet.Round(2).InexactFloat64()
	if len(records) > 0 {
		out.AverageNet = net.Div(decimal.NewFromInt(int64(len(records)))).Round(2).InexactFloat64()
	}
	return out
}

// percentChange is rounded to one decimal place; a zero baseline reports 0.
func percentChange(before, after float64) float64 {
	if before == 0 {
		return 0
	}
	b := decimal.NewFromFloat(before)
	return decimal.NewFromFloat(after).Sub(b).Div(b).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
}
