package models

import (
	"log"

	"bitbucket.org/cashlens/forecast_backend/config"
)

func MigrateTable() {
	db := config.GetDB()
	err := db.AutoMigrate(
		&User{},
		&Invoice{},
		&ClientProfile{},
		&RecurringExpense{},
		&PaymentHistory{},
		&CashBalance{},
		&AlertSettings{},
		&WeeklyForecast{},
		&CashGapAlert{},
	)
	if err != nil {
		log.Printf("auto migrate failed: %v", err)
	}
}
