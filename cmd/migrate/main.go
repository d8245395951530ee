// migrate runs AutoMigrate as a standalone job, for deployments that start the
// API with SKIP_MIGRATIONS=true.
package main

import (
	"fmt"
	"os"

	"bitbucket.org/cashlens/forecast_backend/config"
	"bitbucket.org/cashlens/forecast_backend/models"
)

func main() {
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()
	fmt.Println("migrations complete")
}
