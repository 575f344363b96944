package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"group-wager-go/internal/models"
	"group-wager-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Debit atomically decreases the user's balance and appends a negative transaction.
// Fails with ErrInsufficientFunds when the balance would go below zero.
func (s *SubledgerService) Debit(ctx context.Context, q store.Querier, params store.MovementParams) (*models.Transaction, error) {
	if err := validateMovement(params); err != nil {
		return nil, err
	}
	return s.run(ctx, q, params, params.Amount.Neg())
}

// Credit atomically increases the user's balance and appends a positive transaction.
func (s *SubledgerService) Credit(ctx context.Context, q store.Querier, params store.MovementParams) (*models.Transaction, error) {
	if err := validateMovement(params); err != nil {
		return nil, err
	}
	return s.run(ctx, q, params, params.Amount)
}

// run applies the movement on q, or in a transaction of its own when q is nil
func (s *SubledgerService) run(ctx context.Context, q store.Querier, params store.MovementParams, signed decimal.Decimal) (*models.Transaction, error) {
	if q != nil {
		return s.processTransaction(ctx, q, params, signed)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	transaction, err := s.processTransaction(ctx, tx, params, signed)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit transaction: %v", store.ErrInternal, err)
	}
	return transaction, nil
}

func validateMovement(params store.MovementParams) error {
	if params.UserId == "" {
		return fmt.Errorf("%w: user id is required", store.ErrInvalidArgument)
	}
	if !params.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", store.ErrInvalidArgument, params.Amount.String())
	}
	if !params.Kind.Valid() {
		return fmt.Errorf("%w: unknown transaction kind %q", store.ErrInvalidArgument, params.Kind)
	}
	return nil
}

// processTransaction updates balance and records the transaction using q, which
// is normally the caller's *sql.Tx so the movement commits or rolls back with
// the rest of the operation.
func (s *SubledgerService) processTransaction(ctx context.Context, q store.Querier, params store.MovementParams, signed decimal.Decimal) (*models.Transaction, error) {
	zap.L().Debug("Processing transaction",
		zap.String("user_id", params.UserId),
		zap.String("kind", string(params.Kind)),
		zap.String("amount", signed.String()),
		zap.String("bet_id", params.BetId))

	// Get current balance and version for the optimistic update below
	var currentBalanceStr string
	var version int64
	err := q.QueryRowContext(ctx, s.dialect.rebind(queryGetAccountBalance), params.UserId).Scan(&currentBalanceStr, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, params.UserId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current balance: %w", err)
	}

	currentBalance, err := decimal.NewFromString(currentBalanceStr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse current balance '%s': %v", store.ErrInternal, currentBalanceStr, err)
	}

	// Calculate new balance
	newBalance := currentBalance.Add(signed)
	if newBalance.IsNegative() {
		return nil, fmt.Errorf("%w: balance %s is less than %s", store.ErrInsufficientFunds, currentBalance.String(), signed.Neg().String())
	}

	// The account version the update below consumes numbers the user's movements
	now := time.Now().UTC()
	transaction := &models.Transaction{
		Id:            uuid.New().String(),
		UserId:        params.UserId,
		Kind:          params.Kind,
		Amount:        signed,
		BalanceBefore: currentBalance,
		BalanceAfter:  newBalance,
		BetId:         params.BetId,
		Description:   params.Description,
		Sequence:      version,
		CreatedAt:     now,
	}

	_, err = q.ExecContext(ctx, s.dialect.rebind(queryInsertTransaction),
		transaction.Id, transaction.UserId, string(transaction.Kind),
		signed.String(), currentBalance.String(), newBalance.String(),
		transaction.BetId, transaction.Description, transaction.Sequence, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	// Update balance (with optimistic locking)
	result, err := q.ExecContext(ctx, s.dialect.rebind(queryUpdateAccountBalance), newBalance.String(), transaction.Id, now, params.UserId, version)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("%w: balance update failed - %w", store.ErrInternal, store.ErrConcurrentModification)
	}

	if err := s.addJournalEntries(ctx, q, transaction); err != nil {
		return nil, fmt.Errorf("failed to add journal entries: %w", err)
	}

	zap.L().Info("Transaction recorded",
		zap.String("transaction_id", transaction.Id),
		zap.String("user_id", params.UserId),
		zap.String("kind", string(params.Kind)),
		zap.String("old_balance", currentBalance.String()),
		zap.String("new_balance", newBalance.String()))

	return transaction, nil
}

type journalEntry struct {
	accountType  string
	accountId    string
	debitAmount  decimal.Decimal
	creditAmount decimal.Decimal
}

// journalFor returns the balanced pair of entries for a movement. Stakes move
// money from the user into the bet escrow; payouts and refunds move it back;
// deposits and withdrawals cross the platform boundary.
func journalFor(transaction *models.Transaction) []journalEntry {
	user := fmt.Sprintf("user_%s", transaction.UserId)
	abs := transaction.Amount.Abs()

	var counter journalEntry
	switch transaction.Kind {
	case models.KindStake, models.KindPayout:
		counter = journalEntry{accountType: "bet_escrow", accountId: fmt.Sprintf("bet_%s", transaction.BetId)}
	case models.KindFee:
		counter = journalEntry{accountType: "platform_revenue", accountId: fmt.Sprintf("fees_%s", transaction.BetId)}
	default:
		counter = journalEntry{accountType: "system_liability", accountId: "user_deposits"}
	}
	if transaction.Kind == models.KindWithdrawal && transaction.BetId != "" {
		// cancellation refund comes out of the bet escrow
		counter = journalEntry{accountType: "bet_escrow", accountId: fmt.Sprintf("bet_%s", transaction.BetId)}
	}

	if transaction.Amount.IsPositive() {
		// User account increases (debit), counter account gives it up (credit)
		counter.creditAmount = abs
		counter.debitAmount = decimal.Zero
		return []journalEntry{
			{accountType: "user_wallet", accountId: user, debitAmount: abs, creditAmount: decimal.Zero},
			counter,
		}
	}

	counter.debitAmount = abs
	counter.creditAmount = decimal.Zero
	return []journalEntry{
		{accountType: "user_wallet", accountId: user, debitAmount: decimal.Zero, creditAmount: abs},
		counter,
	}
}

// addJournalEntries creates double-entry bookkeeping entries
func (s *SubledgerService) addJournalEntries(ctx context.Context, q store.Querier, transaction *models.Transaction) error {
	requestId := ""
	if rc := models.GetRequestContext(ctx); rc != nil {
		requestId = rc.RequestId
	}

	for _, entry := range journalFor(transaction) {
		_, err := q.ExecContext(ctx, s.dialect.rebind(queryInsertJournalEntry),
			uuid.New().String(), transaction.Id, entry.accountType, entry.accountId,
			entry.debitAmount.String(), entry.creditAmount.String(), requestId, transaction.CreatedAt)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetTransactionHistory returns paginated transaction history for a user, newest
// first by per-user sequence, so movements sharing a timestamp keep commit order
func (s *SubledgerService) GetTransactionHistory(ctx context.Context, userId string, limit, offset int) ([]models.Transaction, error) {
	zap.L().Debug("Getting transaction history",
		zap.String("user_id", userId),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(queryGetTransactionHistory), userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var transactions []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		var kind, amountStr, balanceBeforeStr, balanceAfterStr string
		err := rows.Scan(&tx.Id, &tx.UserId, &kind,
			&amountStr, &balanceBeforeStr, &balanceAfterStr,
			&tx.BetId, &tx.Description, &tx.Sequence, &tx.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Kind = models.TransactionKind(kind)

		tx.Amount, err = decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
		}

		tx.BalanceBefore, err = decimal.NewFromString(balanceBeforeStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance before '%s': %w", balanceBeforeStr, err)
		}

		tx.BalanceAfter, err = decimal.NewFromString(balanceAfterStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance after '%s': %w", balanceAfterStr, err)
		}

		transactions = append(transactions, tx)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	return transactions, nil
}

// GetMostRecentTransactionTime returns the most recent transaction timestamp,
// or the zero time when the log is empty
func (s *SubledgerService) GetMostRecentTransactionTime(ctx context.Context) (time.Time, error) {
	var raw any
	err := s.db.QueryRowContext(ctx, queryGetMostRecentTransactionTime).Scan(&raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get most recent transaction time: %w", err)
	}

	switch v := raw.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case []byte:
		return parseTimestamp(string(v))
	case string:
		return parseTimestamp(v)
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", raw)
	}
}

// parseTimestamp handles the formats SQLite hands back for MAX() over TIMESTAMP columns
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	layouts := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05-07:00",
		"2006-01-02 15:04:05.999999999+00:00",
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
		time.RFC3339,
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse timestamp %q", value)
}
