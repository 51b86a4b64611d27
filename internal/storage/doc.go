// Package storage opens the relational backends, applies goose migrations, and
// classifies driver errors into the conflict/busy cases the stores care about.
//
// PostgreSQL is the production backend (pgx/v5). SQLite (modernc.org/sqlite)
// serves local runs and tests with no external services.
package storage
