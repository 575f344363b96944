package settlement

import (
	"fmt"
	"sort"

	"group-wager-go/internal/models"
	"group-wager-go/internal/store"

	"github.com/shopspring/decimal"
)

// Share is one winner's slice of the net pot
type Share struct {
	Participation models.Participation
	Amount        decimal.Decimal
}

// Distribution is the full pari-mutuel split of a pot
type Distribution struct {
	Pot         decimal.Decimal
	Fee         decimal.Decimal
	NetPot      decimal.Decimal
	Distributed decimal.Decimal
	Absorbed    decimal.Decimal
	Shares      []Share
}

// ComputeDistribution splits the pot of participations between the stakers
// on winningOutcomeId in proportion to their stakes.
//
// The fee is pot*feeRate rounded half-up to scale. Shares are truncated to
// scale and whatever truncation leaves over goes to the first winner ordered
// by stake descending, then user id ascending, so Distributed == NetPot
// exactly. With no winners the whole net pot is Absorbed.
func ComputeDistribution(participations []models.Participation, winningOutcomeId string, feeRate decimal.Decimal, scale int32) (Distribution, error) {
	if feeRate.IsNegative() || feeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Distribution{}, fmt.Errorf("%w: fee rate must be in [0, 1), got %s", store.ErrInvalidArgument, feeRate.String())
	}
	if scale < 0 {
		return Distribution{}, fmt.Errorf("%w: money scale cannot be negative, got %d", store.ErrInvalidArgument, scale)
	}

	pot := decimal.Zero
	var winners []models.Participation
	for _, p := range participations {
		pot = pot.Add(p.Amount)
		if p.OutcomeId == winningOutcomeId {
			winners = append(winners, p)
		}
	}

	fee := pot.Mul(feeRate).Round(scale)
	netPot := pot.Sub(fee)

	d := Distribution{
		Pot:         pot,
		Fee:         fee,
		NetPot:      netPot,
		Distributed: decimal.Zero,
		Absorbed:    decimal.Zero,
	}

	if len(winners) == 0 {
		d.Absorbed = netPot
		return d, nil
	}

	sort.SliceStable(winners, func(i, j int) bool {
		if c := winners[i].Amount.Cmp(winners[j].Amount); c != 0 {
			return c > 0
		}
		return winners[i].UserId < winners[j].UserId
	})

	totalWinningStake := decimal.Zero
	for _, w := range winners {
		totalWinningStake = totalWinningStake.Add(w.Amount)
	}
	if !totalWinningStake.IsPositive() {
		return Distribution{}, fmt.Errorf("%w: winning stake total is %s", store.ErrInternal, totalWinningStake.String())
	}

	d.Shares = make([]Share, 0, len(winners))
	for _, w := range winners {
		// QuoRem truncates at exactly scale digits, no intermediate rounding
		share, _ := w.Amount.Mul(netPot).QuoRem(totalWinningStake, scale)
		d.Shares = append(d.Shares, Share{Participation: w, Amount: share})
		d.Distributed = d.Distributed.Add(share)
	}

	remainder := netPot.Sub(d.Distributed)
	if remainder.IsNegative() {
		return Distribution{}, fmt.Errorf("%w: shares %s exceed net pot %s", store.ErrInternal, d.Distributed.String(), netPot.String())
	}
	d.Shares[0].Amount = d.Shares[0].Amount.Add(remainder)
	d.Distributed = d.Distributed.Add(remainder)

	return d, nil
}
