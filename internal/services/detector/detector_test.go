package detector

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotrader/internal/entity"
)

func TestDetect(t *testing.T) {
	d := New(decimal.Decimal{}, decimal.Decimal{})

	tests := []struct {
		name        string
		lastRate    int64
		currentRate int64
		btcBalance  int64
		eurBalance  int64
		want        entity.Action
	}{
		{
			name:        "price dropped 6 percent, BTC on hand, sell",
			lastRate:    575000,
			currentRate: 542452,
			btcBalance:  19620000,
			want:        entity.ActionSell,
		},
		{
			name:        "price inside the band, no action",
			lastRate:    575000,
			currentRate: 560000,
			btcBalance:  19620000,
			eurBalance:  100000,
			want:        entity.ActionNull,
		},
		{
			// 575000/610638 is 0.94165, just above the buy threshold
			name:        "price rose but ratio stays above 0.94, no action",
			lastRate:    575000,
			currentRate: 610638,
			eurBalance:  100000,
			want:        entity.ActionNull,
		},
		{
			name:        "price rose past the band, EUR on hand, buy",
			lastRate:    575000,
			currentRate: 650000,
			eurBalance:  100000,
			want:        entity.ActionBuy,
		},
		{
			name:        "sell threshold is inclusive",
			lastRate:    106,
			currentRate: 100,
			btcBalance:  1,
			want:        entity.ActionSell,
		},
		{
			name:        "buy threshold is inclusive",
			lastRate:    94,
			currentRate: 100,
			eurBalance:  1,
			want:        entity.ActionBuy,
		},
		{
			name:        "sell point but no BTC to sell",
			lastRate:    575000,
			currentRate: 542452,
			eurBalance:  100000,
			want:        entity.ActionNull,
		},
		{
			name:        "buy point but no EUR to spend",
			lastRate:    575000,
			currentRate: 650000,
			btcBalance:  19620000,
			want:        entity.ActionNull,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ratio, err := d.Detect(tt.lastRate, tt.currentRate, tt.btcBalance, tt.eurBalance)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			want := decimal.NewFromInt(tt.lastRate).Div(decimal.NewFromInt(tt.currentRate))
			assert.True(t, ratio.Equal(want), "ratio %s, want %s", ratio, want)
		})
	}
}

// Both balances positive is an unusual ledger state; the ratio test
// cannot satisfy both thresholds on the same tick, so exactly one side
// fires at most.
func TestDetect_BothBalancesPositive(t *testing.T) {
	d := New(decimal.Decimal{}, decimal.Decimal{})

	act, _, err := d.Detect(575000, 542452, 19620000, 100000)
	require.NoError(t, err)
	assert.Equal(t, entity.ActionSell, act)

	act, _, err = d.Detect(575000, 650000, 19620000, 100000)
	require.NoError(t, err)
	assert.Equal(t, entity.ActionBuy, act)

	act, ratio, err := d.Detect(575000, 575000, 19620000, 100000)
	require.NoError(t, err)
	assert.Equal(t, entity.ActionNull, act)
	assert.True(t, ratio.Equal(decimal.NewFromInt(1)))
}

func TestDetect_CustomThresholds(t *testing.T) {
	// a 10% band
	d := New(decimal.RequireFromString("1.10"), decimal.RequireFromString("0.90"))

	act, _, err := d.Detect(575000, 542452, 19620000, 0)
	require.NoError(t, err)
	assert.Equal(t, entity.ActionNull, act, "6 percent drop must not trigger a 10 percent band")

	act, _, err = d.Detect(660000, 600000, 19620000, 0)
	require.NoError(t, err)
	assert.Equal(t, entity.ActionSell, act)
}

func TestDetect_NonPositiveRates(t *testing.T) {
	d := New(decimal.Decimal{}, decimal.Decimal{})

	_, _, err := d.Detect(0, 575000, 1, 1)
	require.Error(t, err)

	_, _, err = d.Detect(575000, 0, 1, 1)
	require.Error(t, err)
}
