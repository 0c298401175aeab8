package economy

import (
	"math"
	"testing"
)

func TestEscalationSaturates(t *testing.T) {
	cases := []struct {
		name     string
		escalate func(*Command)
		from     int64
		want     int64
	}{
		{"purchase", escalateAfterPurchase, 5, 5 + PurchaseIncrement},
		{"purchase at max", escalateAfterPurchase, math.MaxInt64, math.MaxInt64},
		{"share", escalateAfterShare, 3, 3 * ShareMultiplier},
		{"share past half", escalateAfterShare, 1 << 62, math.MaxInt64},
		{"share at max", escalateAfterShare, math.MaxInt64, math.MaxInt64},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Command{Name: "clap", Cost: tc.from}
			tc.escalate(&c)
			if c.Cost != tc.want {
				t.Fatalf("cost = %d, want %d", c.Cost, tc.want)
			}
		})
	}
}
