package main

import (
	"fmt"
	"log"

	"github.com/secagent/go-api/secagent/postgres"
	"github.com/secagent/go-api/secagent/postgres/models"
)

func main() {
	log.Println("Starting scan record store connection test...")

	db, err := postgres.NewConnection(postgres.ConfigFromEnv())
	if err != nil {
		log.Fatalf("❌ Failed to establish database connection: %v", err)
	}

	// Try to execute a simple query
	var result int
	if err := db.Raw("SELECT 1").Scan(&result).Error; err != nil {
		log.Fatalf("❌ Failed to execute query: %v", err)
	}

	// The scan record schema should be migrated and queryable
	var count int64
	if err := db.Model(&models.ScanRecord{}).Count(&count).Error; err != nil {
		log.Fatalf("❌ Failed to query scan records: %v", err)
	}

	// Success!
	fmt.Println("✅ Scan record store connection test successful!")
	fmt.Printf("✅ Schema migrated, %d scan records present\n", count)
}
