package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/galley-erp/galley-erp/internal/ncr"
	"github.com/galley-erp/galley-erp/internal/observability"
)

// Notifier turns domain events into queued emails. Enqueue failures are
// returned to the caller, which logs and moves on; notifications never block
// or fail a posting.
type Notifier struct {
	client  *Client
	to      string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewNotifier constructs Notifier. to is the operations mailbox.
func NewNotifier(client *Client, to string, metrics *observability.Metrics, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{client: client, to: to, metrics: metrics, logger: logger}
}

// PeriodClosed emails the close confirmation with the snapshot count.
func (n *Notifier) PeriodClosed(ctx context.Context, periodName string, snapshotCount int) error {
	if n.client == nil || n.to == "" {
		return nil
	}
	_, err := n.client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      n.to,
		Subject: fmt.Sprintf("Period %s closed", periodName),
		Body:    fmt.Sprintf("Period %s has been closed. %d closing stock snapshots were recorded.", periodName, snapshotCount),
	})
	return err
}

// NCRCreated emails a new non-conformance report and counts auto-generated
// price variances.
func (n *Notifier) NCRCreated(ctx context.Context, report ncr.NCR) error {
	if report.Type == ncr.TypePriceVariance {
		n.metrics.CountVariance()
	}
	if n.client == nil || n.to == "" {
		return nil
	}
	_, err := n.client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      n.to,
		Subject: fmt.Sprintf("NCR #%d (%s) raised", report.ID, report.Type),
		Body: fmt.Sprintf("NCR #%d raised at location %d against supplier %d.\nValue: %s\nReason: %s",
			report.ID, report.LocationID, report.SupplierID, report.Value.StringFixed(2), report.Reason),
	})
	return err
}
