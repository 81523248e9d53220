package db

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// optionalColumns lists columns added after the first release. Stores created
// by an older version are upgraded in place by adding them with a NULL default.
var optionalColumns = []string{"screenshot", "enrichment_data"}

type DB struct {
	db     *sql.DB
	logger *zap.Logger

	mu             sync.RWMutex
	eventListeners map[EventKind][]EventListener
}

func NewSQLiteDB(path string, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers anyway; a single connection also keeps
	// ":memory:" databases from splitting across pool connections.
	db.SetMaxOpenConns(1)
	return &DB{
		db:             db,
		logger:         logger,
		eventListeners: make(map[EventKind][]EventListener),
	}, nil
}

func dsn(path string) string {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path
	}
	return "file:" + path + "?_busy_timeout=5000&_foreign_keys=on"
}

func (db *DB) Migrate() error {
	// Create migrations tracking table if it doesn't exist
	_, err := db.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		migrations = append(migrations, entry.Name())
	}

	sort.Strings(migrations)

	for _, migration := range migrations {
		version := strings.TrimSuffix(migration, ".sql")
		if version == "" {
			db.logger.Warn("invalid migration file name", zap.String("file", migration))
			continue
		}

		var exists bool
		if err := db.db.QueryRow(`
		    SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = ?)
		`, version).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check if migration has been applied: %w", err)
		}
		if exists {
			db.logger.Debug("migration already applied", zap.String("version", version))
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + migration)
		if err != nil {
			return fmt.Errorf("failed to read migration file: %w", err)
		}

		tx, err := db.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to apply migration %s: %w", version, err)
		}

		if _, err := tx.Exec(`
		    INSERT INTO schema_migrations (version) VALUES (?)
		`, version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to mark migration as applied: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}

		db.logger.Info("migration applied", zap.String("version", version))
	}

	return db.ensureOptionalColumns()
}

// ensureOptionalColumns adds any optional column missing from a bookmarks
// table that predates it. Existing rows get NULL. Nothing is ever dropped.
func (db *DB) ensureOptionalColumns() error {
	existing, err := db.columns("bookmarks")
	if err != nil {
		return err
	}
	for _, col := range optionalColumns {
		if existing[col] {
			continue
		}
		if _, err := db.db.Exec("ALTER TABLE bookmarks ADD COLUMN " + col + " TEXT"); err != nil {
			return fmt.Errorf("failed to add column %s: %w", col, err)
		}
		db.logger.Info("added missing column", zap.String("column", col))
	}
	return nil
}

func (db *DB) columns(table string) (map[string]bool, error) {
	rows, err := db.db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return nil, fmt.Errorf("failed to read table info: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan table info: %w", err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read table info: %w", err)
	}
	return cols, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}
