package payroll

import "github.com/shopspring/decimal"

const (
	plAccrualDays   = 30
	plAccrualFactor = 1.5
)

// computeStatutory builds every component from the daily rate and attendance
// using the tenant rate parameters. Only used for rows without computed columns.
func computeStatutory(raw RawRecord, cfg RateConfig) PayrollRecord {
	r := PayrollRecord{Derivation: DerivationComputed}
	daily := raw.number(fieldDailyRate)
	att := attendance(raw, cfg)
	r.DailyRate = daily
	r.AttendanceDays = att

	vdaRate := cfg.VDARate
	if v, ok := raw.resolveNumber(fieldVDARate); ok {
		vdaRate = v
	}
	dailyAllowance := raw.number(fieldDailyAllowance)
	nhDays := raw.number(fieldNHFHDays)
	otDays := raw.number(fieldOvertimeDays)

	plDay := (daily + vdaRate) / plAccrualDays * plAccrualFactor
	bonusRate := (daily + vdaRate) * cfg.BonusPercent / 100

	r.EarnedWage = daily * att
	r.VDA = vdaRate * att
	r.Allowance = dailyAllowance * att
	r.Bonus = bonusRate * att
	r.PL = (r.EarnedWage + r.VDA) * cfg.PLFactor / float64(cfg.WorkingDaysPerMonth)
	r.NHFHAmount = (daily + vdaRate + plDay + bonusRate) * nhDays
	r.OvertimeWages = (daily + vdaRate + dailyAllowance) * otDays * cfg.OvertimeMultiplier
	r.PPECost = att * cfg.PPECostPerDay
	r.GrossSalary = r.EarnedWage + r.VDA + r.Allowance + r.PL + r.Bonus + r.NHFHAmount + r.OvertimeWages + r.PPECost

	esiBase := (att+nhDays)*(daily+vdaRate+dailyAllowance+plDay+cfg.PPECostPerDay) + r.OvertimeWages
	pfBase := (att + nhDays) * (daily + vdaRate + dailyAllowance)

	r.ESIEmployee = esiBase * cfg.ESIEmployeePercent / 100
	r.PFEmployee = pfBase * cfg.PFEmployeePercent / 100
	r.UniformDeduction = raw.number(fieldUniform)
	r.ProfessionalTax = raw.number(fieldPT)
	if raw.number(fieldLWFEmployeeOn) == 1 {
		r.LWFEmployee = cfg.LWFEmployeeAmount
	}
	r.DeductionTotal = r.ESIEmployee + r.PFEmployee + r.UniformDeduction + r.ProfessionalTax + r.LWFEmployee

	r.ESIEmployer = esiBase * cfg.ESIEmployerPercent / 100
	r.PFEmployer = pfBase * cfg.PFEmployerPercent / 100
	if raw.number(fieldLWFEmployerOn) == 1 {
		r.LWFEmployer = cfg.LWFEmployerAmount
	}
	r.Commission = cfg.CommissionPerDay * att
	r.CTC = employerCost(r)

	r.NetSalary = roundWhole(r.GrossSalary - r.DeductionTotal)
	return r
}

// roundWhole rounds half away from zero to a whole currency unit.
func roundWhole(v float64) float64 {
	return decimal.NewFromFloat(v).Round(0).InexactFloat64()
}
