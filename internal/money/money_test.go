package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCentsRoundsHalfUp(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"10.00", 1000},
		{"10.005", 1001},
		{"10.004", 1000},
		{"0.01", 1},
		{"0", 0},
		{"25.555", 2556},
	}
	for _, tc := range cases {
		d, err := decimal.NewFromString(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, ToCents(d), "ToCents(%s)", tc.in)
	}
}

func TestFromCentsRoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 1, 99, 100, 2500, 1234567} {
		assert.Equal(t, cents, ToCents(FromCents(cents)))
	}
}

func TestSplitProportionalNoLeak(t *testing.T) {
	cases := []struct {
		amount, part, total int64
		wantShare           int64
	}{
		{1500, 1000, 1500, 1000}, // refund $15 against {legacy:$10, platform:$5}
		{1000, 333, 1000, 333},
		{1000, 1, 3, 333},
		{999, 500, 1000, 500}, // 499.5 rounds up
		{100, 0, 100, 0},
		{100, 100, 100, 100},
		{100, 150, 100, 100}, // part beyond total caps at amount
	}
	for _, tc := range cases {
		share, remainder := SplitProportional(tc.amount, tc.part, tc.total)
		assert.Equal(t, tc.wantShare, share, "share for %+v", tc)
		assert.Equal(t, tc.amount, share+remainder, "leak for %+v", tc)
	}
}

func TestSplitProportionalZeroTotal(t *testing.T) {
	share, remainder := SplitProportional(500, 0, 0)
	assert.Zero(t, share)
	assert.Equal(t, int64(500), remainder)
}
