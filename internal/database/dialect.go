package database

// Dialect abstracts the database-specific SQL for the review schema.
// SQLite and PostgreSQL each implement it.
type Dialect interface {
	// DriverName returns the database/sql driver name.
	DriverName() string

	// DSN returns the data source name for opening a connection. For
	// SQLite this is the file path; for PostgreSQL a connection string.
	DSN(pathOrConnStr string) string

	// Placeholder returns the parameter placeholder for the given
	// 1-based index. SQLite: "?", PostgreSQL: "$1", "$2", ...
	Placeholder(index int) string

	// CreateTableSQL returns the DDL for the triage_events table.
	CreateTableSQL() string

	// CreateIndexSQL returns DDL to create an index on a table column.
	CreateIndexSQL(indexName, tableName, column string) string

	// InsertEntrySQL returns the parameterized INSERT for a single row.
	InsertEntrySQL() string
}

// indexedColumns are the review-table columns that get an index; the
// review UI filters on time and identifier.
var indexedColumns = []string{"datetime", "event_id", "category"}
