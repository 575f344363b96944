package api

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"group-wager-go/internal/models"
	"group-wager-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateUser registers a wallet. A positive opening balance is booked as a
// DEPOSIT so the balance always equals the sum of the transaction log.
func (s *WagerService) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	started := time.Now()
	user, err := s.createUser(ctx, req)
	s.metrics.Observe("create_user", started, err)
	return user, err
}

func (s *WagerService) createUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	if req.OpeningBalance.IsNegative() {
		return nil, fmt.Errorf("%w: opening balance cannot be negative", store.ErrInvalidArgument)
	}
	if req.OpeningBalance.IsPositive() {
		if err := s.checkAmount("opening balance", req.OpeningBalance); err != nil {
			return nil, err
		}
	}

	user, err := s.store.CreateUser(ctx, req.Id, req.Name, req.Email)
	if err != nil {
		return nil, err
	}
	if !req.OpeningBalance.IsPositive() {
		return user, nil
	}

	if _, err := s.Deposit(ctx, user.Id, req.OpeningBalance, "Opening balance"); err != nil {
		zap.L().Error("User created without opening balance",
			zap.String("user_id", user.Id),
			zap.String("opening_balance", req.OpeningBalance.String()),
			zap.Error(err))
		return nil, err
	}
	return s.store.GetUserById(ctx, user.Id)
}

// EnsureFeeAccount creates the configured fee account if it does not exist yet
func (s *WagerService) EnsureFeeAccount(ctx context.Context) error {
	id := s.config.FeeAccountId
	if id == "" {
		return nil
	}

	_, err := s.store.GetUserById(ctx, id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	_, err = s.store.CreateUser(ctx, id, "Platform fees", id+"@platform.local")
	if err != nil && !errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("failed to create fee account %s: %w", id, err)
	}
	zap.L().Info("Fee account ready", zap.String("user_id", id))
	return nil
}

// Deposit credits a wallet from outside the platform
func (s *WagerService) Deposit(ctx context.Context, userId string, amount decimal.Decimal, description string) (*models.WalletResult, error) {
	if description == "" {
		description = "Test funds deposit"
	}
	return s.moveFunds(ctx, "deposit", userId, models.KindDeposit, amount, description)
}

// Withdraw debits a wallet to outside the platform
func (s *WagerService) Withdraw(ctx context.Context, userId string, amount decimal.Decimal, description string) (*models.WalletResult, error) {
	if description == "" {
		description = "Withdrawal"
	}
	return s.moveFunds(ctx, "withdraw", userId, models.KindWithdrawal, amount, description)
}

func (s *WagerService) moveFunds(ctx context.Context, operation, userId string, kind models.TransactionKind, amount decimal.Decimal, description string) (*models.WalletResult, error) {
	started := time.Now()

	zap.L().Info("Processing wallet movement",
		zap.String("operation", operation),
		zap.String("user_id", userId),
		zap.String("amount", amount.String()))

	if err := s.checkAmount("amount", amount); err != nil {
		s.metrics.Observe(operation, started, err)
		return nil, err
	}

	unlock := s.locks.Users(userId)
	params := store.MovementParams{UserId: userId, Kind: kind, Amount: amount, Description: description}
	var transaction *models.Transaction
	var err error
	if kind == models.KindDeposit {
		transaction, err = s.store.Credit(ctx, nil, params)
	} else {
		transaction, err = s.store.Debit(ctx, nil, params)
	}
	unlock()

	s.metrics.Observe(operation, started, err)
	if err != nil {
		zap.L().Warn("Wallet movement rejected",
			zap.String("operation", operation),
			zap.String("user_id", userId),
			zap.String("amount", amount.String()),
			zap.String("kind", store.Kind(err)),
			zap.Error(err))
		return nil, err
	}

	s.metrics.Moved(kind, amount)
	s.publish(ctx, movementEvent(transaction, ""))

	return &models.WalletResult{
		UserId:        userId,
		Kind:          kind,
		Amount:        amount,
		NewBalance:    transaction.BalanceAfter,
		TransactionId: transaction.Id,
	}, nil
}

// BalanceOf returns the current balance of a wallet
func (s *WagerService) BalanceOf(ctx context.Context, userId string) (decimal.Decimal, error) {
	if userId == "" {
		return decimal.Zero, fmt.Errorf("%w: user id is required", store.ErrInvalidArgument)
	}
	return s.store.BalanceOf(ctx, nil, userId)
}

// GetUser returns a user with its current balance
func (s *WagerService) GetUser(ctx context.Context, userId string) (*models.User, error) {
	return s.store.GetUserById(ctx, userId)
}

func (s *WagerService) GetUsers(ctx context.Context) ([]models.User, error) {
	return s.store.GetUsers(ctx)
}

// Leaderboard ranks wallets by balance, richest first. Ties share a rank and
// are listed by name. The platform fee account is not a player and is left out.
func (s *WagerService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	users, err := s.store.GetUsers(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]models.LeaderboardEntry, 0, len(users))
	for _, u := range users {
		if s.config.FeeAccountId != "" && u.Id == s.config.FeeAccountId {
			continue
		}
		entries = append(entries, models.LeaderboardEntry{UserId: u.Id, Name: u.Name, Balance: u.Balance})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if c := entries[i].Balance.Cmp(entries[j].Balance); c != 0 {
			return c > 0
		}
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].UserId < entries[j].UserId
	})

	for i := range entries {
		entries[i].Rank = i + 1
		if i > 0 && entries[i].Balance.Equal(entries[i-1].Balance) {
			entries[i].Rank = entries[i-1].Rank
		}
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// TransactionHistory returns a page of a user's transactions, newest first
func (s *WagerService) TransactionHistory(ctx context.Context, userId string, limit, offset int) ([]models.TransactionRecord, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user id is required", store.ErrInvalidArgument)
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	if _, err := s.store.GetUserById(ctx, userId); err != nil {
		return nil, err
	}

	transactions, err := s.store.GetTransactionHistory(ctx, userId, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get transaction history", zap.String("user_id", userId), zap.Error(err))
		return nil, err
	}

	result := make([]models.TransactionRecord, len(transactions))
	for i, t := range transactions {
		result[i] = models.TransactionRecord{
			Id:          t.Id,
			Kind:        t.Kind,
			Amount:      t.Amount,
			Balance:     t.BalanceAfter,
			BetId:       t.BetId,
			Description: t.Description,
			Timestamp:   t.CreatedAt,
		}
	}
	return result, nil
}
