package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		in   Inputs
		want Regime
	}{
		{
			name: "volatility expansion wins over trend",
			in:   Inputs{EMASpreadPct: 0.8, ATRRatio: 1.3, BBWidthRatio: 1.2},
			want: Volatile,
		},
		{
			name: "wide spread with expanding ATR is a breakout",
			in:   Inputs{EMASpreadPct: 0.7, ATRRatio: 1.1, BBWidthRatio: 1.0},
			want: Breakout,
		},
		{
			name: "wide spread with contracting ATR is a strong trend",
			in:   Inputs{EMASpreadPct: -0.7, ATRRatio: 0.9, BBWidthRatio: 1.0},
			want: TrendingStrong,
		},
		{
			name: "moderate spread is a weak trend",
			in:   Inputs{EMASpreadPct: 0.4, ATRRatio: 0.9, BBWidthRatio: 1.0},
			want: TrendingWeak,
		},
		{
			name: "flat EMAs are ranging",
			in:   Inputs{EMASpreadPct: 0.1, ATRRatio: 0.9, BBWidthRatio: 0.9},
			want: Ranging,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.in))
		})
	}
}

func TestStopMultiplier(t *testing.T) {
	assert.Equal(t, 1.5, StopMultiplier(TrendingStrong))
	assert.Equal(t, 2.0, StopMultiplier(TrendingWeak))
	assert.Equal(t, 2.5, StopMultiplier(Breakout))
	assert.Equal(t, 2.5, StopMultiplier(Volatile))
	assert.Equal(t, 1.5, StopMultiplier(Ranging))
}
