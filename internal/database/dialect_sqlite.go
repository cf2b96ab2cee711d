package database

import "fmt"

// SQLiteDialect implements the Dialect interface for SQLite review
// databases.
type SQLiteDialect struct{}

func (d *SQLiteDialect) DriverName() string             { return "sqlite" }
func (d *SQLiteDialect) DSN(pathOrConnStr string) string { return pathOrConnStr }
func (d *SQLiteDialect) Placeholder(index int) string    { return "?" }

func (d *SQLiteDialect) CreateTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS triage_events (
		datetime DATETIME, event_id INT, provider TEXT, category TEXT,
		host TEXT, source_file TEXT, description TEXT
	)`
}

func (d *SQLiteDialect) CreateIndexSQL(indexName, tableName, column string) string {
	return fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s (%s)", indexName, tableName, column)
}

func (d *SQLiteDialect) InsertEntrySQL() string {
	return `INSERT INTO triage_events (
		datetime, event_id, provider, category, host, source_file, description
	) VALUES (?, ?, ?, ?, ?, ?, ?)`
}
