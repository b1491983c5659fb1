// Package migrations embeds and applies the goose migrations backing
// pkg/directory's two databases: "clients" (caller profiles) and "tickets"
// (ticket history). Grounded on NeboLoop-nebo's internal/db migration
// runner, adapted from its sqlite/modernc driver to jackc/pgx/v5's stdlib
// adapter and split into two embedded sets since the two databases are
// separate DSNs (§6 DB_CLIENTS_DSN/DB_TICKETS_DSN).
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed clients/*.sql
var clientsFS embed.FS

//go:embed tickets/*.sql
var ticketsFS embed.FS

// RunClients applies the clients-database migrations to db.
func RunClients(db *sql.DB) error {
	return run(db, clientsFS, "clients")
}

// RunTickets applies the tickets-database migrations to db.
func RunTickets(db *sql.DB) error {
	return run(db, ticketsFS, "tickets")
}

func run(db *sql.DB, fsys embed.FS, label string) error {
	goose.SetBaseFS(fsys)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("migrations: %s: set dialect: %w", label, err)
	}
	if err := goose.Up(db, label); err != nil {
		return fmt.Errorf("migrations: %s: up: %w", label, err)
	}
	return nil
}
