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

	"go.uber.org/zap"
)

type seedStats struct {
	created  int
	existing int
	failed   []string
}

// seedUser creates one user, treating an existing id or email as already seeded
func seedUser(ctx context.Context, services *common.Services, req models.CreateUserRequest) (bool, error) {
	zap.L().Info("Seeding user",
		zap.String("id", req.Id),
		zap.String("name", req.Name),
		zap.String("email", req.Email),
		zap.String("opening_balance", req.OpeningBalance.String()))

	_, err := services.WagerService.CreateUser(ctx, req)
	if errors.Is(err, store.ErrConflict) {
		zap.L().Info("User already exists", zap.String("id", req.Id), zap.String("email", req.Email))
		return false, nil
	}
	if err != nil {
		zap.L().Error("Error creating user", zap.String("id", req.Id), zap.Error(err))
		return false, err
	}
	return true, nil
}

func seedUsers(ctx context.Context, services *common.Services, seedFile string) seedStats {
	zap.L().Info("Loading seed users", zap.String("file", seedFile))
	requests, err := common.LoadSeedUsers(seedFile)
	if err != nil {
		zap.L().Fatal("Failed to load seed users", zap.Error(err))
	}
	zap.L().Info("Seed users loaded", zap.Int("count", len(requests)))

	var stats seedStats
	for _, req := range requests {
		created, err := seedUser(ctx, services, req)
		switch {
		case err != nil:
			stats.failed = append(stats.failed, req.Id)
		case created:
			stats.created++
		default:
			stats.existing++
		}
	}

	if len(stats.failed) > 0 {
		zap.L().Warn("Seeding completed with some failures",
			zap.Int("created", stats.created),
			zap.Int("existing", stats.existing),
			zap.Strings("failed_users", stats.failed))
	} else {
		zap.L().Info("Seeding completed successfully",
			zap.Int("created", stats.created),
			zap.Int("existing", stats.existing))
	}
	return stats
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	seedFlag := flag.String("users", "", "Seed users file (default: SEED_FILE or users.yaml)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	// Opening the services creates the schema and the fee account
	services, err := common.InitializeServices(ctx, cfg, nil)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	seedFile := cfg.Server.SeedFile
	if *seedFlag != "" {
		seedFile = *seedFlag
	}

	ctx = models.WithRequestContext(ctx, &models.RequestContext{Source: "cli"})
	stats := seedUsers(ctx, services, seedFile)

	common.PrintHeader("SETUP SUMMARY", common.DefaultWidth)
	fmt.Printf("Created:  %d\n", stats.created)
	fmt.Printf("Existing: %d\n", stats.existing)
	fmt.Printf("Failed:   %d\n", len(stats.failed))
	common.PrintSeparator("=", common.DefaultWidth)
}
