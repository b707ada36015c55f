// Package postgres implements every store.Repository against a single
// Postgres database through database/sql and github.com/lib/pq — the
// Postgres driver the retrieval pack carries in
// jimmarino/dataplane-sdk-go's go.mod, the one repo in the pack that wires
// Postgres to a dataspace-protocol-shaped store (see DESIGN.md).
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open connects to Postgres using a lib/pq DSN assembled from the
// DB_{URL,PORT,USER,PASSWORD,DATABASE} environment group (spec.md §6).
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	var db, err = sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: opening connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}
	return db, nil
}

// Migrate applies every embedded migration file in lexical order. Files
// are plain, idempotent (CREATE TABLE IF NOT EXISTS) SQL rather than a
// migration framework: no migration library appeared anywhere in the
// retrieval pack, so ordered .sql files plus database/sql is the grounded
// minimum (see DESIGN.md; never fabricate a dependency that isn't real).
func Migrate(ctx context.Context, db *sql.DB) error {
	var entries, err = migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("postgres: reading embedded migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, ent := range entries {
		b, err := migrationsFS.ReadFile("migrations/" + ent.Name())
		if err != nil {
			return fmt.Errorf("postgres: reading migration %s: %w", ent.Name(), err)
		}
		if _, err := db.ExecContext(ctx, string(b)); err != nil {
			return fmt.Errorf("postgres: applying migration %s: %w", ent.Name(), err)
		}
		logrus.WithField("migration", ent.Name()).Info("applied migration")
	}
	return nil
}

// DSN assembles a lib/pq connection string from the DB_* environment group.
func DSN(host string, port int, user, password, database string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, database)
}
