package payroll

// Reconcile replaces the records of period with records, keeping the first
// occurrence of each employee id. Records of other periods are carried over in
// their existing order. Replaced records start over as Unpaid; prior payment
// status for the period is not preserved.
func Reconcile(ledger Ledger, period string, records []PayrollRecord) (Ledger, ReconcileResult) {
	var result ReconcileResult
	out := Ledger{Records: make([]PayrollRecord, 0, len(ledger.Records)+len(records))}
	for _, existing := range ledger.Records {
		if existing.Period == period {
			result.Replaced++
			continue
		}
		out.Records = append(out.Records, existing)
		result.Kept++
	}

	seen := make(map[string]struct{}, len(records))
	for _, record := range records {
		if _, dup := seen[record.EmployeeID]; dup {
			result.Duplicates++
			continue
		}
		seen[record.EmployeeID] = struct{}{}
		record.Period = period
		record.Status = StatusUnpaid
		record.PaidAt = nil
		out.Records = append(out.Records, record)
		result.Inserted++
	}
	return out, result
}

// Periods lists distinct periods in first-seen ledger order.
func (l Ledger) Periods() []PeriodInfo {
	index := map[string]int{}
	var out []PeriodInfo
	for _, record := range l.Records {
		pos, ok := index[record.Period]
		if !ok {
			pos = len(out)
			index[record.Period] = pos
			out = append(out, PeriodInfo{Period: record.Period})
		}
		out[pos].RecordCount++
		if record.Status == StatusPaid {
			out[pos].PaidCount++
		}
	}
	return out
}

// Find returns the first record matching employeeID and period.
func (l Ledger) Find(employeeID, period string) (PayrollRecord, bool) {
	for _, record := range l.Records {
		if record.Period == period && record.EmployeeID == employeeID {
			return record, true
		}
	}
	return PayrollRecord{}, false
}

// Clone returns a deep copy safe to hand out of the owning service.
func (l Ledger) Clone() Ledger {
	out := Ledger{Records: make([]PayrollRecord, len(l.Records))}
	copy(out.Records, l.Records)
	for i := range out.Records {
		if out.Records[i].PaidAt != nil {
			paidAt := *out.Records[i].PaidAt
			out.Records[i].PaidAt = &paidAt
		}
	}
	return out
}

// Validate checks the uniqueness invariant, used when restoring snapshots.
func (l Ledger) Validate() error {
	seen := map[[2]string]struct{}{}
	verr := &ValidationError{}
	for i, record := range l.Records {
		if record.EmployeeID == "" || record.Period == "" {
			verr.Fields = append(verr.Fields, FieldError{Field: recordField(i), Reason: "employeeId and period are required"})
			continue
		}
		if record.Status != StatusPaid && record.Status != StatusUnpaid {
			verr.Fields = append(verr.Fields, FieldError{Field: recordField(i), Reason: "status must be Paid or Unpaid"})
		}
		key := [2]string{record.EmployeeID, record.Period}
		if _, dup := seen[key]; dup {
			verr.Fields = append(verr.Fields, FieldError{Field: recordField(i), Reason: "duplicate employeeId for period"})
			continue
		}
		seen[key] = struct{}{}
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func recordField(i int) string {
	return "records[" + itoa(i) + "]"
}
