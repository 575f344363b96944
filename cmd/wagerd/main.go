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
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"group-wager-go/internal/audit"
	"group-wager-go/internal/common"
	"group-wager-go/internal/config"
	"group-wager-go/internal/httpapi"
	"group-wager-go/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting group wager daemon",
		zap.String("driver", cfg.Database.Driver),
		zap.String("fee_rate", cfg.Settlement.FeeRate.String()),
		zap.Bool("fee_account", cfg.Settlement.FeeAccountId != ""))

	services, err := common.InitializeServices(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	metricsSrv := metrics.StartServer(cfg.Server.MetricsPort, services.WagerService.HealthCheck)
	zap.L().Info("Metrics server listening", zap.String("port", cfg.Server.MetricsPort))

	auditor := audit.NewAuditor(audit.Config{
		Store:    services.DbService,
		Metrics:  services.Metrics,
		Interval: cfg.Server.AuditInterval,
	})
	if err := auditor.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start auditor", zap.Error(err))
	}

	apiSrv := &http.Server{
		Addr:              ":" + cfg.Server.HTTPPort,
		Handler:           httpapi.NewServer(services.WagerService).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("HTTP server stopped", zap.Error(err))
		}
	}()

	zap.L().Info("Wager API listening", zap.String("port", cfg.Server.HTTPPort))
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping servers...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			if err := apiSrv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("HTTP server shutdown", zap.Error(err))
			}
		}()
		go func() {
			defer wg.Done()
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("Metrics server shutdown", zap.Error(err))
			}
		}()
		go func() {
			defer wg.Done()
			auditor.Stop()
		}()
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Daemon stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}
}
