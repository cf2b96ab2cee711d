package database

import "fmt"

// CreateStore creates (or opens) a review database using the specified
// driver. For SQLite, pathOrConnStr is the file path for the .db file.
// For PostgreSQL, pathOrConnStr is a connection string; the database
// itself must already exist.
func CreateStore(driver, pathOrConnStr string) (Store, error) {
	switch driver {
	case "sqlite":
		return CreateSQLite(pathOrConnStr)
	case "postgres":
		return CreatePostgres(pathOrConnStr)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
}
