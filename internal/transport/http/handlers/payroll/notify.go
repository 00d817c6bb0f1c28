package payrollhandler

import (
	"context"
	"fmt"
	"log/slog"

	"payledger/internal/domain/payroll"
	"payledger/internal/platform/email"
)

// Notifier mails a short report when a payslip batch completes.
type Notifier struct {
	Mailer email.Mailer
	From   string
	To     string
}

func (n *Notifier) batchDone(ctx context.Context, tenantID string, batch payroll.PayslipBatch, runErr error) {
	if n == nil || n.Mailer == nil || n.To == "" {
		return
	}
	subject := fmt.Sprintf("Payslips ready: %s", batch.Period)
	body := fmt.Sprintf("Tenant %s\nPeriod %s\nGenerated %d payslips.\n", tenantID, batch.Period, batch.Generated)
	if runErr != nil {
		subject = fmt.Sprintf("Payslip generation failed: %s", batch.Period)
		body += fmt.Sprintf("Error: %v\n", runErr)
	}
	if err := n.Mailer.Send(ctx, n.From, n.To, subject, body); err != nil {
		slog.Warn("payslip notification failed", "err", err, "tenantId", tenantID, "period", batch.Period)
	}
}
