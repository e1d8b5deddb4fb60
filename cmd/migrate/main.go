package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
	"github.com/saviobatista/trackrescue/internal/config"
	"github.com/saviobatista/trackrescue/internal/db/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	dbURL := flag.String("db", cfg.DBConnStr, "Database connection string")
	rollback := flag.Bool("rollback", false, "Rollback the last migration")
	flag.Parse()

	if err := run(*dbURL, *rollback); err != nil {
		log.Printf("Migration failed: %v", err)
		os.Exit(1)
	}
}

func run(dbURL string, rollback bool) error {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return migrate(db, rollback)
}

func migrate(db *sql.DB, rollback bool) error {
	migrator := migrations.New(db)
	if rollback {
		return migrator.Down(migrations.All())
	}
	return migrator.Up(migrations.All())
}
