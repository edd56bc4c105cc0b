package appointment

import "time"

// RefundQuote is what the payment collaborator acts on at cancellation.
// ManualReview marks the late-cancellation tier that has no automatic
// refund and goes to an operator instead.
type RefundQuote struct {
	Percent      int
	AmountCents  int64
	ManualReview bool
}

// refundPercent implements the cancellation refund tiers as a pure function
// of the time remaining before the scheduled start:
//
//	> 24h           100%
//	> 2h and <= 24h  50%
//	<= 2h             0%, flagged for manual adjudication
func refundPercent(scheduledAt, now time.Time) (percent int, manual bool) {
	lead := scheduledAt.Sub(now)
	switch {
	case lead > 24*time.Hour:
		return 100, false
	case lead > 2*time.Hour:
		return 50, false
	default:
		return 0, true
	}
}

// QuoteRefund computes the refund owed if the appointment were cancelled at
// the given instant. It never moves money.
func QuoteRefund(a *Appointment, now time.Time) RefundQuote {
	percent, manual := refundPercent(a.ScheduledAt, now)
	return RefundQuote{
		Percent:      percent,
		AmountCents:  a.AmountCents * int64(percent) / 100,
		ManualReview: manual,
	}
}
