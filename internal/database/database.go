package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore manages a SQLite review database. It implements the Store
// interface.
type SQLiteStore struct {
	path    string
	conn    *sql.DB
	dialect Dialect
}

// CreateSQLite creates (or opens) a SQLite review database at path and
// ensures the triage_events schema exists.
func CreateSQLite(path string) (*SQLiteStore, error) {
	d := &SQLiteDialect{}

	conn, err := sql.Open(d.DriverName(), d.DSN(path))
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	db := &SQLiteStore{path: path, conn: conn, dialect: d}

	if err := db.createSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *SQLiteStore) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the file path of the database.
func (db *SQLiteStore) Path() string {
	return db.path
}

// createSchema builds the triage_events table and its indexes.
func (db *SQLiteStore) createSchema() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(db.dialect.CreateTableSQL())
	if err != nil {
		return fmt.Errorf("creating triage_events table: %w", err)
	}

	for _, column := range indexedColumns {
		_, err = tx.Exec(db.dialect.CreateIndexSQL(column+"_idx", "triage_events", column))
		if err != nil {
			return fmt.Errorf("creating index on %s: %w", column, err)
		}
	}

	return tx.Commit()
}

// InsertEntries loads a batch of entries inside a single transaction.
// The onProgress callback is called every 10,000 rows with the current count.
// Pass nil for onProgress if you don't need progress updates.
func (db *SQLiteStore) InsertEntries(entries []Entry, onProgress func(count int)) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(db.dialect.InsertEntrySQL())
	if err != nil {
		return 0, fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range entries {
		_, err := stmt.Exec(
			e.Datetime, e.EventID, e.Provider, e.Category,
			e.Host, e.SourceFile, e.Description,
		)
		if err != nil {
			return inserted, fmt.Errorf("inserting entry %d: %w", inserted+1, err)
		}
		inserted++
		if onProgress != nil && inserted%10000 == 0 {
			onProgress(inserted)
		}
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("committing transaction: %w", err)
	}

	return inserted, nil
}

// CountEntries returns the total number of rows in the triage_events table.
func (db *SQLiteStore) CountEntries() (int64, error) {
	var count int64
	err := db.conn.QueryRow("SELECT COUNT(*) FROM triage_events").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return count, nil
}
