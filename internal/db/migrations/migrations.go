package migrations

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

// Migration represents a database migration
type Migration struct {
	ID        string
	Name      string
	UpSQL     string
	DownSQL   string
	CreatedAt time.Time
}

// All lists the migrations in the order they are applied
func All() []*Migration {
	return []*Migration{
		InitialSchema,
		QueryIndexes,
	}
}

// Migrator manages database migrations
type Migrator struct {
	db *sql.DB
}

// New creates a new Migrator
func New(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the migrations table if it doesn't exist
func (m *Migrator) Initialize() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	_, err := m.db.Exec(query)
	return err
}

// Applied returns the names of applied migrations
func (m *Migrator) Applied() (map[string]bool, error) {
	rows, err := m.db.Query(`SELECT name FROM schema_migrations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// Pending returns the migrations from list that have not been applied
func (m *Migrator) Pending(list []*Migration) ([]*Migration, error) {
	applied, err := m.Applied()
	if err != nil {
		return nil, err
	}
	var pending []*Migration
	for _, migration := range list {
		if !applied[migration.Name] {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}

// run executes one migration body and its bookkeeping statement in a transaction
func (m *Migrator) run(migration *Migration, body, record string) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(body); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", migration.Name, err)
	}
	if _, err := tx.Exec(record, migration.Name); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", migration.Name, err)
	}

	return tx.Commit()
}

// Up applies all pending migrations
func (m *Migrator) Up(list []*Migration) error {
	if err := m.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	pending, err := m.Pending(list)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range pending {
		if err := m.run(migration, migration.UpSQL, "INSERT INTO schema_migrations (name) VALUES ($1)"); err != nil {
			return err
		}
		log.Printf("Applied migration: %s", migration.Name)
	}
	return nil
}

// Down rolls back the most recently applied migration
func (m *Migrator) Down(list []*Migration) error {
	applied, err := m.Applied()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for i := len(list) - 1; i >= 0; i-- {
		migration := list[i]
		if !applied[migration.Name] {
			continue
		}
		if err := m.run(migration, migration.DownSQL, "DELETE FROM schema_migrations WHERE name = $1"); err != nil {
			return err
		}
		log.Printf("Rolled back migration: %s", migration.Name)
		return nil
	}

	return fmt.Errorf("no migrations to rollback")
}
