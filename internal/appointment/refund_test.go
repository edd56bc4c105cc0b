package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefundPercentTiers(t *testing.T) {
	startsAt := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		lead    time.Duration
		percent int
		manual  bool
	}{
		{"a week out", 7 * 24 * time.Hour, 100, false},
		{"just over 24h", 24*time.Hour + time.Second, 100, false},
		{"exactly 24h", 24 * time.Hour, 50, false},
		{"12h out", 12 * time.Hour, 50, false},
		{"just over 2h", 2*time.Hour + time.Second, 50, false},
		{"exactly 2h", 2 * time.Hour, 0, true},
		{"30m out", 30 * time.Minute, 0, true},
		{"already started", -time.Hour, 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			percent, manual := refundPercent(startsAt, startsAt.Add(-tc.lead))
			assert.Equal(t, tc.percent, percent)
			assert.Equal(t, tc.manual, manual)
		})
	}
}

func TestQuoteRefundAmounts(t *testing.T) {
	startsAt := time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)
	appt := &Appointment{ScheduledAt: startsAt, AmountCents: 7999}

	full := QuoteRefund(appt, startsAt.Add(-48*time.Hour))
	assert.Equal(t, 100, full.Percent)
	assert.Equal(t, int64(7999), full.AmountCents)
	assert.False(t, full.ManualReview)

	// Integer cents, truncated toward zero.
	half := QuoteRefund(appt, startsAt.Add(-12*time.Hour))
	assert.Equal(t, 50, half.Percent)
	assert.Equal(t, int64(3999), half.AmountCents)

	none := QuoteRefund(appt, startsAt.Add(-time.Hour))
	assert.Equal(t, 0, none.Percent)
	assert.Equal(t, int64(0), none.AmountCents)
	assert.True(t, none.ManualReview)
}
