/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"group-wager-go/internal/common"
	"group-wager-go/internal/config"
	"group-wager-go/internal/models"
	"group-wager-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type fundsRequest struct {
	email       string
	amount      decimal.Decimal
	withdraw    bool
	description string
}

func parseAndValidateFlags() (*fundsRequest, error) {
	emailFlag := flag.String("email", "", "User email (required)")
	amountFlag := flag.String("amount", "", "Amount to move (required)")
	withdrawFlag := flag.Bool("withdraw", false, "Withdraw instead of deposit")
	descriptionFlag := flag.String("description", "", "Optional transaction description")
	flag.Parse()

	if *emailFlag == "" || *amountFlag == "" {
		return nil, fmt.Errorf("both flags are required: --email, --amount")
	}

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	return &fundsRequest{
		email:       *emailFlag,
		amount:      amount,
		withdraw:    *withdrawFlag,
		description: *descriptionFlag,
	}, nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	req, err := parseAndValidateFlags()
	if err != nil {
		zap.L().Fatal("Invalid arguments", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg, nil)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	ctx = models.WithRequestContext(ctx, &models.RequestContext{Source: "cli"})

	user, err := services.DbService.GetUserByEmail(ctx, req.email)
	if err != nil {
		zap.L().Fatal("User not found", zap.String("email", req.email), zap.Error(err))
	}

	var result *models.WalletResult
	title := "DEPOSIT"
	if req.withdraw {
		title = "WITHDRAWAL"
		result, err = services.WagerService.Withdraw(ctx, user.Id, req.amount, req.description)
	} else {
		result, err = services.WagerService.Deposit(ctx, user.Id, req.amount, req.description)
	}
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			zap.L().Fatal("Insufficient balance",
				zap.String("user_id", user.Id),
				zap.String("balance", user.Balance.String()),
				zap.String("requested", req.amount.String()))
		}
		zap.L().Fatal("Failed to move funds", zap.Error(err))
	}

	scale := cfg.Settlement.MoneyScale
	fmt.Println()
	common.PrintHeader(title+" RECORDED", common.DefaultWidth)
	fmt.Printf("User:           %s (%s)\n", user.Name, user.Email)
	fmt.Printf("Amount:         %s\n", common.Money(result.Amount, scale))
	fmt.Printf("Previous:       %s\n", common.Money(user.Balance, scale))
	fmt.Printf("New Balance:    %s\n", common.Money(result.NewBalance, scale))
	fmt.Printf("Transaction ID: %s\n", result.TransactionId)
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()
}
