package persistence_test

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

func init() {
	// Load .env so integration-style tests can reach a real database when one
	// is configured. Unit tests run on sqlmock and don't need it.
	paths := []string{
		"../../../.env", // project root from internal/infrastructure/persistence/
		"../../.env",
		"../.env",
		".env",
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err == nil {
				log.Printf("📁 Loaded .env from %s for tests", p)
				return
			}
		}
	}

	log.Println("⚠️  No .env file found for tests - database tests may fail")
}
