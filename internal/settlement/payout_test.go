package settlement

import (
	"testing"

	"group-wager-go/internal/models"
	"group-wager-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var feeRate = decimal.RequireFromString("0.03")

func participation(user, outcome, amount string) models.Participation {
	return models.Participation{Id: "p-" + user, UserId: user, OutcomeId: outcome, Amount: decimal.RequireFromString(amount)}
}

func TestComputeDistribution_ThreeStakers(t *testing.T) {
	ps := []models.Participation{
		participation("A", "X", "20"),
		participation("B", "Y", "20"),
		participation("C", "X", "40"),
	}

	d, err := ComputeDistribution(ps, "X", feeRate, 2)
	require.NoError(t, err)

	assert.Equal(t, "80", d.Pot.String())
	assert.Equal(t, "2.4", d.Fee.String())
	assert.Equal(t, "77.6", d.NetPot.String())
	assert.True(t, d.NetPot.Add(d.Fee).Equal(d.Pot))
	assert.True(t, d.Distributed.Equal(d.NetPot))
	assert.True(t, d.Absorbed.IsZero())

	require.Len(t, d.Shares, 2)
	// Largest stake first; it absorbs the truncation remainder
	assert.Equal(t, "C", d.Shares[0].Participation.UserId)
	assert.Equal(t, "51.74", d.Shares[0].Amount.StringFixed(2))
	assert.Equal(t, "A", d.Shares[1].Participation.UserId)
	assert.Equal(t, "25.86", d.Shares[1].Amount.StringFixed(2))
	assert.True(t, d.Shares[0].Amount.Add(d.Shares[1].Amount).Equal(decimal.RequireFromString("77.60")))
}

func TestComputeDistribution_NoWinners(t *testing.T) {
	ps := []models.Participation{
		participation("A", "X", "20"),
		participation("B", "Y", "30"),
	}

	d, err := ComputeDistribution(ps, "Z", feeRate, 2)
	require.NoError(t, err)

	assert.Empty(t, d.Shares)
	assert.True(t, d.Distributed.IsZero())
	assert.Equal(t, "48.5", d.Absorbed.String())
	assert.Equal(t, "1.5", d.Fee.String())
}

func TestComputeDistribution_EmptyPot(t *testing.T) {
	d, err := ComputeDistribution(nil, "X", feeRate, 2)
	require.NoError(t, err)

	assert.True(t, d.Pot.IsZero())
	assert.True(t, d.Fee.IsZero())
	assert.True(t, d.Absorbed.IsZero())
}

func TestComputeDistribution_TieBreakByUserId(t *testing.T) {
	ps := []models.Participation{
		participation("zoe", "X", "10"),
		participation("amy", "X", "10"),
		participation("bob", "X", "10"),
	}

	d, err := ComputeDistribution(ps, "X", decimal.Zero, 2)
	require.NoError(t, err)

	require.Len(t, d.Shares, 3)
	assert.Equal(t, []string{"amy", "bob", "zoe"}, []string{
		d.Shares[0].Participation.UserId,
		d.Shares[1].Participation.UserId,
		d.Shares[2].Participation.UserId,
	})
	assert.Equal(t, "10", d.Shares[0].Amount.String())
	assert.True(t, d.Distributed.Equal(decimal.NewFromInt(30)))
}

func TestComputeDistribution_RemainderNeverDrifts(t *testing.T) {
	cases := []struct {
		name    string
		stakes  []string
		feeRate string
	}{
		{"thirds", []string{"10", "10", "10"}, "0.03"},
		{"uneven", []string{"13.37", "7.01", "99.99", "0.01"}, "0.03"},
		{"sevenths", []string{"1", "1", "1", "1", "1", "1", "1"}, "0.03"},
		{"no fee", []string{"33.33", "66.67"}, "0"},
		{"large", []string{"123456.78", "0.02", "999.99"}, "0.125"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ps []models.Participation
			for i, s := range tc.stakes {
				ps = append(ps, participation(string(rune('a'+i)), "W", s))
			}
			ps = append(ps, participation("loser", "L", "5"))

			d, err := ComputeDistribution(ps, "W", decimal.RequireFromString(tc.feeRate), 2)
			require.NoError(t, err)

			sum := decimal.Zero
			for _, s := range d.Shares {
				assert.True(t, s.Amount.Equal(s.Amount.Truncate(2)), "share %s has sub-cent digits", s.Amount)
				assert.False(t, s.Amount.IsNegative())
				sum = sum.Add(s.Amount)
			}
			assert.True(t, sum.Equal(d.NetPot), "sum %s != net pot %s", sum, d.NetPot)
			assert.True(t, d.NetPot.Add(d.Fee).Equal(d.Pot))
		})
	}
}

func TestComputeDistribution_RejectsBadPolicy(t *testing.T) {
	_, err := ComputeDistribution(nil, "X", decimal.NewFromInt(1), 2)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = ComputeDistribution(nil, "X", decimal.NewFromInt(-1), 2)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = ComputeDistribution(nil, "X", feeRate, -1)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}
