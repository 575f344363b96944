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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"group-wager-go/internal/models"

	"github.com/shopspring/decimal"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	auditInterval, err := getEnvDuration("AUDIT_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	feeRate, err := getEnvDecimal("PLATFORM_FEE_RATE", decimal.RequireFromString("0.03"))
	if err != nil {
		return nil, err
	}
	if feeRate.IsNegative() || feeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("PLATFORM_FEE_RATE must be in [0, 1), got %s", feeRate.String())
	}

	moneyScale := getEnvInt("MONEY_SCALE", 2)
	if moneyScale < 0 || moneyScale > 8 {
		return nil, fmt.Errorf("MONEY_SCALE must be between 0 and 8, got %d", moneyScale)
	}

	driver := getEnvString("DATABASE_DRIVER", "sqlite3")
	path := getEnvString("DATABASE_PATH", "wager.db")
	if driver == "postgres" {
		path = getEnvString("DATABASE_DSN", path)
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Driver:           driver,
			Path:             path,
			MaxOpenConns:     getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  connMaxLifetime,
			ConnMaxIdleTime:  connMaxIdleTime,
			PingTimeout:      pingTimeout,
			CreateDummyUsers: getEnvBool("CREATE_DUMMY_USERS", false),
		},
		Settlement: models.SettlementConfig{
			FeeRate:      feeRate,
			MoneyScale:   int32(moneyScale),
			FeeAccountId: getEnvString("FEE_ACCOUNT_ID", ""),
		},
		Events: models.EventsConfig{
			KafkaBrokers:       getEnvString("KAFKA_BROKERS", ""),
			KafkaTopic:         getEnvString("KAFKA_TOPIC_LEDGER", "wager_ledger_events"),
			RedisAddr:          getEnvString("REDIS_ADDR", ""),
			RedisChannelPrefix: getEnvString("REDIS_CHANNEL_PREFIX", "group:"),
		},
		Formance: models.FormanceConfig{
			StackURL:     getEnvString("FORMANCE_STACK_URL", ""),
			ClientID:     getEnvString("FORMANCE_CLIENT_ID", ""),
			ClientSecret: getEnvString("FORMANCE_CLIENT_SECRET", ""),
			LedgerName:   getEnvString("FORMANCE_LEDGER", "group-wager"),
		},
		Server: models.ServerConfig{
			HTTPPort:      getEnvString("HTTP_PORT", "8080"),
			MetricsPort:   getEnvString("METRICS_PORT", "9095"),
			AuditInterval: auditInterval,
			SeedFile:      getEnvString("SEED_FILE", "users.yaml"),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	if value := os.Getenv(key); value != "" {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q (%w)", key, value, err)
		}
		return d, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
