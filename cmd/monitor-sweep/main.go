// monitor-sweep runs one cash-gap monitor cycle for every active user.
// Intended to run on a schedule (Cloud Scheduler / cron), separate from the
// API service so a slow sweep never blocks request traffic.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... REDIS_ADDRESS=... go run ./cmd/monitor-sweep
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/cashlens/forecast_backend/config"
	"bitbucket.org/cashlens/forecast_backend/models"
	"bitbucket.org/cashlens/forecast_backend/monitor"
	"bitbucket.org/cashlens/forecast_backend/utils"
	"github.com/google/uuid"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	ctx = utils.SetCorrelationIdInContext(ctx, "sweep-"+uuid.NewString())

	userIds, err := models.ListActiveUserIds(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list active users: %v\n", err)
		os.Exit(1)
	}

	mon := monitor.NewMonitor()
	swept, failed := 0, 0
	for _, userId := range userIds {
		userCtx := utils.SetUserIdInContext(ctx, userId)
		result, err := mon.MonitorCashGaps(userCtx, userId)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "sweep failed for user %s: %v\n", userId, err)
			continue
		}
		swept++
		fmt.Printf("user=%s created=%d updated=%d resolved=%d notified=%d\n",
			userId, result.Created, result.Updated, result.Resolved, result.Notified)
	}

	fmt.Printf("sweep complete: users=%d swept=%d failed=%d\n", len(userIds), swept, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
