package payroll

import (
	"fmt"
	"strconv"
	"time"
)

var statusTransitions = map[Status][]Status{
	StatusUnpaid: {StatusPaid},
	StatusPaid:   {},
}

func CanTransition(from, to Status) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// MarkPaid moves the record for (employeeID, period) to Paid. Already paid
// records are left untouched and reported with changed=false.
func MarkPaid(ledger Ledger, employeeID, period string, at time.Time) (Ledger, bool, error) {
	for i, record := range ledger.Records {
		if record.Period != period || record.EmployeeID != employeeID {
			continue
		}
		if record.Status == StatusPaid {
			return ledger, false, nil
		}
		if !CanTransition(record.Status, StatusPaid) {
			return ledger, false, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, record.Status, StatusPaid)
		}
		out := ledger.Clone()
		out.Records[i].Status = StatusPaid
		paidAt := at.UTC()
		out.Records[i].PaidAt = &paidAt
		return out, true, nil
	}
	return ledger, false, fmt.Errorf("%w: %s in %s", ErrNotFound, employeeID, period)
}

// MarkAllPaid moves every Unpaid record of period to Paid and reports how many changed.
func MarkAllPaid(ledger Ledger, period string, at time.Time) (Ledger, int) {
	out := ledger.Clone()
	paidAt := at.UTC()
	count := 0
	for i := range out.Records {
		record := &out.Records[i]
		if record.Period != period || !CanTransition(record.Status, StatusPaid) {
			continue
		}
		record.Status = StatusPaid
		stamp := paidAt
		record.PaidAt = &stamp
		count++
	}
	if count == 0 {
		return ledger, 0
	}
	return out, count
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
