package payroll

import "strings"

// Derive turns one raw row into a PayrollRecord for period. The second return
// value is false when the row is excluded or blank and must not enter the ledger.
func Derive(raw RawRecord, company, period string, cfg RateConfig, ids *IdentityNormalizer) (PayrollRecord, bool) {
	record, reason := derive(raw, company, period, cfg, ids)
	return record, reason == ""
}

// DeriveBatch derives every row of every group. Groups named as samples are skipped whole.
func DeriveBatch(batch UploadBatch, cfg RateConfig, ids *IdentityNormalizer) DeriveResult {
	result := DeriveResult{Dropped: map[string]int{}}
	for _, group := range batch.Groups {
		if strings.Contains(group.Name, groupExclusionMarker) {
			result.Dropped[DropReasonSampleGroup] += len(group.Rows)
			continue
		}
		for _, raw := range group.Rows {
			record, reason := derive(raw, group.Name, batch.Period, cfg, ids)
			if reason != "" {
				result.Dropped[reason]++
				continue
			}
			result.Records = append(result.Records, record)
		}
	}
	return result
}

func derive(raw RawRecord, company, period string, cfg RateConfig, ids *IdentityNormalizer) (PayrollRecord, string) {
	rawID, _ := raw.resolveText(fieldIdentity)
	if hasExclusionMarker(rawID) {
		return PayrollRecord{}, DropReasonMarker
	}
	name, hasName := raw.resolveText(fieldName)

	var record PayrollRecord
	if raw.number(fieldDailyRate) > 0 && !raw.hasAny(computedFields...) {
		record = computeStatutory(raw, cfg)
	} else {
		record = mergeSupplied(raw, cfg)
	}
	if record.EarnedWage <= 0 && !hasName {
		return PayrollRecord{}, DropReasonBlank
	}

	if !hasName {
		name = UnknownEmployeeName
	}
	record.EmployeeID = ids.Normalize(rawID)
	record.Name = name
	record.Company = company
	record.Period = period
	record.Status = StatusUnpaid
	return record, ""
}

// mergeSupplied trusts upstream computed columns and only fills gaps with
// additive fallbacks; statutory percentages are not applied here.
func mergeSupplied(raw RawRecord, cfg RateConfig) PayrollRecord {
	r := PayrollRecord{Derivation: DerivationSupplied}
	r.DailyRate = raw.number(fieldDailyRate)
	r.AttendanceDays = attendance(raw, cfg)

	r.EarnedWage = raw.number(fieldEarnedWage)
	r.VDA = raw.number(fieldVDA)
	r.PL = raw.number(fieldPL)
	r.Bonus = raw.number(fieldBonus)
	r.Allowance = raw.number(fieldAllowance)
	r.NHFHAmount = raw.number(fieldNHFHAmount)
	r.OvertimeWages = raw.number(fieldOvertimeWages)
	r.PPECost = raw.number(fieldPPECost)
	if gross, ok := raw.resolveNumber(fieldGross); ok {
		r.GrossSalary = gross
	} else {
		r.GrossSalary = r.EarnedWage + r.VDA + r.PL + r.Bonus
	}

	r.ESIEmployee = raw.number(fieldESIEmployee)
	r.PFEmployee = raw.number(fieldPFEmployee)
	r.UniformDeduction = raw.number(fieldUniform)
	r.ProfessionalTax = raw.number(fieldPT)
	r.LWFEmployee = raw.number(fieldLWFEmployee)
	if total, ok := raw.resolveNumber(fieldDeductionTotal); ok {
		r.DeductionTotal = total
	} else {
		r.DeductionTotal = r.ESIEmployee + r.PFEmployee + r.UniformDeduction + r.ProfessionalTax + r.LWFEmployee
	}

	r.ESIEmployer = raw.number(fieldESIEmployer)
	r.PFEmployer = raw.number(fieldPFEmployer)
	r.LWFEmployer = raw.number(fieldLWFEmployer)
	r.Commission = raw.number(fieldCommission)
	if ctc, ok := raw.resolveNumber(fieldCTC); ok {
		r.CTC = ctc
	} else {
		r.CTC = employerCost(r)
	}

	if net, ok := raw.resolveNumber(fieldNet); ok {
		r.NetSalary = net
	} else {
		r.NetSalary = r.GrossSalary - r.DeductionTotal
	}
	return r
}

func attendance(raw RawRecord, cfg RateConfig) float64 {
	if days, ok := raw.resolveNumber(fieldAttendance); ok {
		return days
	}
	return float64(cfg.WorkingDaysPerMonth)
}

func employerCost(r PayrollRecord) float64 {
	return r.Commission + r.PFEmployer + r.ESIEmployer + r.GrossSalary + r.LWFEmployer
}

func hasExclusionMarker(id string) bool {
	for _, marker := range identityExclusionMarkers {
		if strings.Contains(id, marker) {
			return true
		}
	}
	return false
}
