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
	"flag"
	"fmt"
	"os"
	"strconv"

	"group-wager-go/internal/audit"
	"group-wager-go/internal/common"
	"group-wager-go/internal/config"
	"group-wager-go/internal/models"

	"go.uber.org/zap"
)

func formatId(id string) string {
	if id == "" {
		return "none"
	}
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

func printBalances(users []common.UserInfo, scale int32) {
	common.PrintHeader("USER BALANCES", common.DefaultWidth)
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{formatId(u.Id), u.Name, u.Email, common.Money(u.Balance, scale)})
	}
	common.RenderTable(os.Stdout, []string{"ID", "Name", "Email", "Balance"}, rows)
}

func printLeaderboard(ctx context.Context, services *common.Services, limit int, scale int32) {
	board, err := services.WagerService.Leaderboard(ctx, limit)
	if err != nil {
		zap.L().Error("Failed to build leaderboard", zap.Error(err))
		return
	}

	common.PrintHeader("LEADERBOARD", common.DefaultWidth)
	rows := make([][]string, 0, len(board))
	for _, e := range board {
		rows = append(rows, []string{strconv.Itoa(e.Rank), e.Name, common.Money(e.Balance, scale)})
	}
	common.RenderTable(os.Stdout, []string{"Rank", "Name", "Balance"}, rows)
}

func printHistory(ctx context.Context, services *common.Services, users []common.UserInfo, limit int, scale int32) {
	for _, u := range users {
		history, err := services.WagerService.TransactionHistory(ctx, u.Id, limit, 0)
		if err != nil {
			zap.L().Error("Failed to get transaction history", zap.String("user_id", u.Id), zap.Error(err))
			continue
		}
		if len(history) == 0 {
			continue
		}

		fmt.Printf("\n┌─ %s (%s)\n", u.Name, u.Email)
		rows := make([][]string, 0, len(history))
		for _, t := range history {
			rows = append(rows, []string{
				t.Timestamp.Format("2006-01-02 15:04:05"),
				string(t.Kind),
				common.Money(t.Amount, scale),
				common.Money(t.Balance, scale),
				formatId(t.BetId),
				t.Description,
			})
		}
		common.RenderTable(os.Stdout, []string{"Time", "Kind", "Amount", "Balance", "Bet", "Description"}, rows)
	}
}

func printOpenBets(ctx context.Context, services *common.Services, groupId string, scale int32) {
	bets, err := services.WagerService.ListBets(ctx, groupId, models.BetStatusOpen)
	if err != nil {
		zap.L().Error("Failed to list open bets", zap.Error(err))
		return
	}

	common.PrintHeader("OPEN BETS", common.DefaultWidth)
	rows := make([][]string, 0, len(bets))
	for _, bet := range bets {
		totals, err := services.WagerService.OutcomeTotals(ctx, bet.Id)
		if err != nil {
			zap.L().Error("Failed to get outcome totals", zap.String("bet_id", bet.Id), zap.Error(err))
			continue
		}
		for i, total := range totals {
			title, pot := "", ""
			if i == 0 {
				title, pot = bet.Title, common.Money(bet.TotalPot, scale)
			}
			rows = append(rows, []string{
				formatId(bet.Id),
				title,
				pot,
				total.Label,
				strconv.Itoa(total.Stakers),
				common.Money(total.Amount, scale),
			})
		}
	}
	common.RenderTable(os.Stdout, []string{"Bet", "Title", "Pot", "Outcome", "Stakers", "Staked"}, rows)
}

func printReconciliation(report *audit.Report) {
	common.PrintHeader("RECONCILIATION", common.DefaultWidth)
	fmt.Printf("Users checked:  %d\n", report.UsersChecked)
	fmt.Printf("Open bets:      %d\n", report.OpenBets)
	fmt.Printf("Overdue bets:   %d\n", len(report.OverdueBets))
	if report.Healthy() {
		fmt.Println("All balances match their transaction logs and all pots match their stakes")
		return
	}
	rows := make([][]string, 0, len(report.Findings))
	for _, f := range report.Findings {
		rows = append(rows, []string{f.Check, f.EntityId, f.Err.Error()})
	}
	common.RenderTable(os.Stdout, []string{"Check", "Entity", "Error"}, rows)
}

// printMirrorDrift compares local balances with the Formance mirror
func printMirrorDrift(ctx context.Context, services *common.Services, users []common.UserInfo, scale int32) {
	common.PrintHeader("FORMANCE MIRROR", common.DefaultWidth)
	rows := make([][]string, 0, len(users))
	drifted := 0
	for _, u := range users {
		mirrored, err := services.Mirror.UserBalance(ctx, u.Id)
		if err != nil {
			rows = append(rows, []string{u.Name, common.Money(u.Balance, scale), "error", err.Error()})
			continue
		}
		status := "ok"
		if !mirrored.Equal(u.Balance) {
			status = "DRIFT " + common.Money(u.Balance.Sub(mirrored), scale)
			drifted++
		}
		rows = append(rows, []string{u.Name, common.Money(u.Balance, scale), common.Money(mirrored, scale), status})
	}
	common.RenderTable(os.Stdout, []string{"User", "Local", "Mirror", "Status"}, rows)

	bets, err := services.WagerService.ListBets(ctx, "", models.BetStatusOpen)
	if err != nil {
		zap.L().Error("Failed to list open bets", zap.Error(err))
		return
	}
	escrowRows := make([][]string, 0, len(bets))
	for _, bet := range bets {
		escrow, err := services.Mirror.EscrowBalance(ctx, bet.Id)
		if err != nil {
			escrowRows = append(escrowRows, []string{formatId(bet.Id), common.Money(bet.TotalPot, scale), "error", err.Error()})
			continue
		}
		status := "ok"
		if !escrow.Equal(bet.TotalPot) {
			status = "DRIFT " + common.Money(bet.TotalPot.Sub(escrow), scale)
			drifted++
		}
		escrowRows = append(escrowRows, []string{formatId(bet.Id), common.Money(bet.TotalPot, scale), common.Money(escrow, scale), status})
	}
	common.RenderTable(os.Stdout, []string{"Bet", "Pot", "Escrow", "Status"}, escrowRows)

	if drifted > 0 {
		zap.L().Warn("Formance mirror drift detected", zap.Int("accounts", drifted))
	}
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	groupFlag := flag.String("group", "", "Only list open bets of this group (optional)")
	historyFlag := flag.Int("history", 0, "Also print the last N transactions per user")
	topFlag := flag.Int("top", 10, "Leaderboard size (0 for every user)")
	flag.Parse()

	logger.Info("Starting ledger report")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg, nil)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	users, err := common.InitializeUsers(ctx, services.DbService, *emailFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	scale := cfg.Settlement.MoneyScale
	printBalances(users, scale)
	if *emailFlag == "" {
		printLeaderboard(ctx, services, *topFlag, scale)
	}
	if *historyFlag > 0 {
		printHistory(ctx, services, users, *historyFlag, scale)
	}
	printOpenBets(ctx, services, *groupFlag, scale)

	report, err := audit.NewAuditor(audit.Config{Store: services.DbService}).RunOnce(ctx)
	if err != nil {
		logger.Fatal("Reconciliation failed to run", zap.Error(err))
	}
	printReconciliation(report)

	if services.Mirror != nil {
		printMirrorDrift(ctx, services, users, scale)
	}

	common.PrintFooter(fmt.Sprintf("SUMMARY: %d users, %d open bets, %d findings",
		len(users), report.OpenBets, len(report.Findings)), common.DefaultWidth)
}
