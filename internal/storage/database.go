package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"daftarchat/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the database selected by dbType using the matching entry
// in the configuration.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			dbCfg.Username,
			dbCfg.Password,
			dbCfg.Host,
			dbCfg.Port,
			dbCfg.DBName,
			dbCfg.Params,
		)
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				tenant TEXT NOT NULL DEFAULT 'default',
				username TEXT NOT NULL,
				password_hash TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				UNIQUE(tenant, username)
			)`,
			`CREATE TABLE IF NOT EXISTS user_tokens (
				token TEXT PRIMARY KEY,
				user_id INTEGER NOT NULL,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_user_tokens_user ON user_tokens(user_id)`,
			`CREATE TABLE IF NOT EXISTS provider_prefs (
				user_id INTEGER PRIMARY KEY,
				provider TEXT NOT NULL,
				model TEXT NOT NULL DEFAULT '',
				updated_at DATETIME NOT NULL,
				FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS ui_prefs (
				tenant TEXT NOT NULL,
				user_id INTEGER NOT NULL,
				theme TEXT NOT NULL DEFAULT 'light',
				updated_at DATETIME NOT NULL,
				PRIMARY KEY (tenant, user_id)
			)`,
			`CREATE TABLE IF NOT EXISTS parties (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				tenant TEXT NOT NULL,
				role TEXT NOT NULL,
				name TEXT NOT NULL,
				phone TEXT NOT NULL DEFAULT '',
				category TEXT NOT NULL DEFAULT 'general',
				created_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_parties_tenant_role ON parties(tenant, role)`,
			`CREATE TABLE IF NOT EXISTS products (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				tenant TEXT NOT NULL,
				name TEXT NOT NULL,
				price REAL NOT NULL DEFAULT 0,
				stock REAL NOT NULL DEFAULT 0,
				sellable INTEGER NOT NULL DEFAULT 1,
				purchasable INTEGER NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_products_tenant ON products(tenant)`,
			`CREATE TABLE IF NOT EXISTS expenses (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				tenant TEXT NOT NULL,
				description TEXT NOT NULL,
				amount REAL NOT NULL,
				currency TEXT NOT NULL,
				payment_method TEXT NOT NULL,
				created_by INTEGER NOT NULL,
				created_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS vouchers (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				tenant TEXT NOT NULL,
				kind TEXT NOT NULL,
				party_id INTEGER NOT NULL,
				amount REAL NOT NULL,
				currency TEXT NOT NULL,
				created_by INTEGER NOT NULL,
				created_at DATETIME NOT NULL,
				FOREIGN KEY(party_id) REFERENCES parties(id)
			)`,
			`CREATE TABLE IF NOT EXISTS currencies (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				tenant TEXT NOT NULL,
				code TEXT NOT NULL,
				name TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				UNIQUE(tenant, code)
			)`,
			`CREATE TABLE IF NOT EXISTS exchange_rates (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				tenant TEXT NOT NULL,
				base_code TEXT NOT NULL,
				quote_code TEXT NOT NULL,
				rate REAL NOT NULL,
				created_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS accounts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				tenant TEXT NOT NULL,
				name TEXT NOT NULL,
				kind TEXT NOT NULL DEFAULT 'account',
				balance REAL NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS memories (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				tenant TEXT NOT NULL,
				user_id INTEGER NOT NULL,
				mem_key TEXT NOT NULL,
				content TEXT NOT NULL,
				updated_at DATETIME NOT NULL,
				UNIQUE(tenant, user_id, mem_key)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(tenant, user_id, updated_at DESC)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				tenant VARCHAR(100) NOT NULL DEFAULT 'default',
				username VARCHAR(255) NOT NULL,
				password_hash VARCHAR(255) NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				UNIQUE KEY uniq_tenant_username (tenant, username)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS user_tokens (
				token VARCHAR(255) NOT NULL PRIMARY KEY,
				user_id BIGINT UNSIGNED NOT NULL,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				INDEX idx_user_tokens_user (user_id),
				CONSTRAINT fk_user_tokens_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS provider_prefs (
				user_id BIGINT UNSIGNED NOT NULL PRIMARY KEY,
				provider VARCHAR(100) NOT NULL,
				model VARCHAR(255) NOT NULL DEFAULT '',
				updated_at DATETIME NOT NULL,
				CONSTRAINT fk_provider_prefs_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS ui_prefs (
				tenant VARCHAR(100) NOT NULL,
				user_id BIGINT UNSIGNED NOT NULL,
				theme VARCHAR(50) NOT NULL DEFAULT 'light',
				updated_at DATETIME NOT NULL,
				PRIMARY KEY (tenant, user_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS parties (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				tenant VARCHAR(100) NOT NULL,
				role VARCHAR(50) NOT NULL,
				name VARCHAR(255) NOT NULL,
				phone VARCHAR(100) NOT NULL DEFAULT '',
				category VARCHAR(100) NOT NULL DEFAULT 'general',
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_parties_tenant_role (tenant, role)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS products (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				tenant VARCHAR(100) NOT NULL,
				name VARCHAR(255) NOT NULL,
				price DOUBLE NOT NULL DEFAULT 0,
				stock DOUBLE NOT NULL DEFAULT 0,
				sellable TINYINT(1) NOT NULL DEFAULT 1,
				purchasable TINYINT(1) NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_products_tenant (tenant)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS expenses (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				tenant VARCHAR(100) NOT NULL,
				description TEXT NOT NULL,
				amount DOUBLE NOT NULL,
				currency VARCHAR(20) NOT NULL,
				payment_method VARCHAR(50) NOT NULL,
				created_by BIGINT UNSIGNED NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_expenses_tenant (tenant)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS vouchers (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				tenant VARCHAR(100) NOT NULL,
				kind VARCHAR(20) NOT NULL,
				party_id BIGINT UNSIGNED NOT NULL,
				amount DOUBLE NOT NULL,
				currency VARCHAR(20) NOT NULL,
				created_by BIGINT UNSIGNED NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_vouchers_tenant (tenant)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS currencies (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				tenant VARCHAR(100) NOT NULL,
				code VARCHAR(20) NOT NULL,
				name VARCHAR(100) NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				UNIQUE KEY uniq_tenant_code (tenant, code)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS exchange_rates (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				tenant VARCHAR(100) NOT NULL,
				base_code VARCHAR(20) NOT NULL,
				quote_code VARCHAR(20) NOT NULL,
				rate DOUBLE NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS accounts (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				tenant VARCHAR(100) NOT NULL,
				name VARCHAR(255) NOT NULL,
				kind VARCHAR(50) NOT NULL DEFAULT 'account',
				balance DOUBLE NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS memories (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				tenant VARCHAR(100) NOT NULL,
				user_id BIGINT UNSIGNED NOT NULL,
				mem_key VARCHAR(255) NOT NULL,
				content MEDIUMTEXT NOT NULL,
				updated_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				UNIQUE KEY uniq_memories_key (tenant, user_id, mem_key),
				INDEX idx_memories_user (tenant, user_id, updated_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
