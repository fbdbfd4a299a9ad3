package shared

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

// NewDatabase opens the SQLite database backing the metadata cache. The path
// can be ":memory:" for an in-memory database; file-backed databases get WAL
// journaling and a busy timeout so concurrent workers do not trip over each
// other's writes.
func NewDatabase(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		params := url.Values{}
		params.Add("_journal_mode", "WAL")
		params.Add("_busy_timeout", "5000")
		dsn = fmt.Sprintf("file:%s?%s", path, params.Encode())
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
}
