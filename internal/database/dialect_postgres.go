package database

import "fmt"

// PostgresDialect implements the Dialect interface for PostgreSQL review
// databases.
type PostgresDialect struct{}

func (d *PostgresDialect) DriverName() string             { return "pgx" }
func (d *PostgresDialect) DSN(pathOrConnStr string) string { return pathOrConnStr }
func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (d *PostgresDialect) CreateTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS triage_events (
		id SERIAL PRIMARY KEY,
		datetime TIMESTAMP, event_id INT, provider TEXT, category TEXT,
		host TEXT, source_file TEXT, description TEXT
	)`
}

func (d *PostgresDialect) CreateIndexSQL(indexName, tableName, column string) string {
	return fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s (%s)", indexName, tableName, column)
}

func (d *PostgresDialect) InsertEntrySQL() string {
	return `INSERT INTO triage_events (
		datetime, event_id, provider, category, host, source_file, description
	) VALUES ($1, $2, $3, $4, $5, $6, $7)`
}
