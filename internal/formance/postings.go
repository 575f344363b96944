package formance

import (
	"context"
	"fmt"

	"group-wager-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

// numscriptMovement mirrors one wallet movement. Metadata is set inside the
// script so the Formance transaction is self-describing.
const numscriptMovement = `vars {
  asset $asset
  number $amount
  account $source
  account $destination
  string $kind
  string $user_id
  string $bet_id
  string $ledger_tx_id
  string $amount_human
}

send [$asset $amount] (
  source = $source allowing unbounded overdraft
  destination = $destination
)

set_tx_meta("event_type", $kind)
set_tx_meta("user_id", $user_id)
set_tx_meta("bet_id", $bet_id)
set_tx_meta("ledger_tx_id", $ledger_tx_id)
set_tx_meta("amount_human", $amount_human)
`

const worldAccount = "world"

func userAccount(userId string) string { return "users:" + userId }
func escrowAccount(betId string) string { return "bets:" + betId + ":escrow" }
func feeAccount(userId string) string  { return "platform:fees:" + userId }

// postingFor maps a wallet movement onto a source and destination account.
// Stakes fill the bet escrow; payouts, refunds and fees drain it.
func postingFor(e models.LedgerEvent) (source, destination string, err error) {
	if e.UserId == "" {
		return "", "", fmt.Errorf("wallet movement without user id")
	}

	switch e.Kind {
	case models.KindDeposit:
		return worldAccount, userAccount(e.UserId), nil
	case models.KindWithdrawal:
		if e.BetId != "" {
			return escrowAccount(e.BetId), userAccount(e.UserId), nil
		}
		return userAccount(e.UserId), worldAccount, nil
	case models.KindStake:
		return userAccount(e.UserId), escrowAccount(e.BetId), nil
	case models.KindPayout:
		return escrowAccount(e.BetId), userAccount(e.UserId), nil
	case models.KindFee:
		return escrowAccount(e.BetId), feeAccount(e.UserId), nil
	default:
		return "", "", fmt.Errorf("unknown movement kind %q", e.Kind)
	}
}

// Publish posts wallet movements; every other event type is ignored. The
// local transaction id is the Formance reference, so a replayed event is a
// no-op.
func (m *Mirror) Publish(ctx context.Context, e models.LedgerEvent) error {
	if e.Type != models.EventWalletMovement {
		return nil
	}

	source, destination, err := postingFor(e)
	if err != nil {
		return err
	}

	amount := e.Amount.Abs()
	smallAmt := amount.Shift(m.scale).BigInt().String()

	_, err = m.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger: m.ledger,
		V2PostTransaction: shared.V2PostTransaction{
			Reference: strPtr(e.Reference),
			Script: &shared.V2PostTransactionScript{
				Plain: numscriptMovement,
				Vars: map[string]string{
					"asset":        m.asset,
					"amount":       smallAmt,
					"source":       source,
					"destination":  destination,
					"kind":         string(e.Kind),
					"user_id":      e.UserId,
					"bet_id":       e.BetId,
					"ledger_tx_id": e.Reference,
					"amount_human": amount.StringFixed(m.scale),
				},
			},
		},
	})
	if err != nil {
		if isConflictError(err) {
			zap.L().Debug("Movement already mirrored", zap.String("reference", e.Reference))
			return nil
		}
		return fmt.Errorf("error mirroring %s movement: %w", e.Kind, err)
	}

	zap.L().Debug("Movement mirrored to Formance",
		zap.String("reference", e.Reference),
		zap.String("source", source),
		zap.String("destination", destination),
		zap.String("amount", amount.String()))
	return nil
}
