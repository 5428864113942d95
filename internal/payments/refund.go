package payments

import (
	"potwatch/internal/config"
	"potwatch/internal/models"
)

// refundPayment is a polarity-inverted payment: it watches for money in at
// the exact configured amount, and counts as paid the moment any match
// exists, with no cycle gating.
type refundPayment struct {
	basePayment
}

func newRefund(kind Kind, cfg config.PaymentConfig, deps Deps) (Payment, error) {
	b, err := newBase(kind, cfg, deps, true, []float64{cfg.Amount}, true)
	if err != nil {
		return nil, err
	}
	return &refundPayment{basePayment: *b}, nil
}

func (r *refundPayment) Status() string {
	if r.lastPayment != nil || r.olderLastPayment != nil {
		return models.StatusPaid
	}
	cycle := r.deps.Cycle
	if r.cfg.DueAfter != nil && cycle.Next.Before(dateOnly(*r.cfg.DueAfter)) {
		return models.StatusSkipped
	}
	if due := r.DueDate(); due != nil && !due.Before(cycle.Next) {
		return models.StatusSkipped
	}
	return models.StatusDue
}
