package formance

import (
	"context"
	"math/big"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UserBalance returns the mirrored balance of a user wallet. Used by the
// report to spot drift between the mirror and the local ledger.
func (m *Mirror) UserBalance(ctx context.Context, userId string) (decimal.Decimal, error) {
	return m.accountBalance(ctx, userAccount(userId))
}

// EscrowBalance returns what the mirror still holds for a bet
func (m *Mirror) EscrowBalance(ctx context.Context, betId string) (decimal.Decimal, error) {
	return m.accountBalance(ctx, escrowAccount(betId))
}

func (m *Mirror) accountBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	resp, err := m.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  m.ledger,
		Address: address,
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		if isNotFoundError(err) {
			return decimal.Zero, nil
		}
		zap.L().Warn("Failed to get account volumes", zap.String("address", address), zap.Error(err))
		return decimal.Zero, err
	}

	bal := volumeBalance(resp.V2AccountResponse.Data.Volumes, m.asset)
	return bigIntToDecimal(bal, m.scale), nil
}

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, asset string) *big.Int {
	vol, ok := vols[asset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}

// bigIntToDecimal converts a *big.Int in smallest-unit to a human-readable decimal.
func bigIntToDecimal(raw *big.Int, scale int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -scale)
}
