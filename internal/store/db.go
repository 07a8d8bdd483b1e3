package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"go-sales-etl/internal/config"
)

const timeLayout = "2006-01-02 15:04:05"

// Store is the explicitly constructed client for the target relational
// store. It is built once and passed down to the pipeline; there is no
// package-level connection.
type Store struct {
	db      *sql.DB
	driver  string
	timeout time.Duration
	builder sq.StatementBuilderType
}

// Open connects to the configured store. Supported drivers: "mysql" and
// "sqlite3" (the latter also backs the test suites).
func Open(cfg config.DatabaseConfig) (*Store, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout())
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s store: %w", cfg.Driver, err)
	}

	return &Store{
		db:      db,
		driver:  cfg.Driver,
		timeout: cfg.StoreTimeout(),
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func buildDSN(cfg config.DatabaseConfig) (string, error) {
	switch cfg.Driver {
	case "mysql":
		port := cfg.Port
		if port == 0 {
			port = 3306
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
			cfg.User, cfg.Password, cfg.Host, port, cfg.Name), nil
	case "sqlite3":
		return cfg.Name, nil
	default:
		return "", fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

// EnsureSchema creates the target tables if they do not exist yet. The
// schema itself is owned by the store collaborator; this only bootstraps
// empty databases (local runs, tests).
func (s *Store) EnsureSchema(ctx context.Context) error {
	var ddl string
	if s.driver == "mysql" {
		ddl = mysqlSchema
	} else {
		ddl = sqliteSchema
	}
	for _, stmt := range strings.Split(ddl, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

const mysqlSchema = `
CREATE TABLE IF NOT EXISTS sales (
	id INT AUTO_INCREMENT PRIMARY KEY,
	date DATE NOT NULL,
	product VARCHAR(100) NOT NULL,
	category VARCHAR(50) NOT NULL,
	quantity INT NOT NULL,
	unit_price DECIMAL(10,2) NOT NULL,
	total DECIMAL(12,2) NOT NULL,
	customer_id VARCHAR(20),
	region VARCHAR(50) NOT NULL,
	vendor VARCHAR(100),
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	KEY idx_sales_date (date),
	KEY idx_sales_product (product),
	KEY idx_sales_category (category),
	KEY idx_sales_region (region),
	KEY idx_sales_customer (customer_id)
);
CREATE TABLE IF NOT EXISTS rejected_sales (
	id INT AUTO_INCREMENT PRIMARY KEY,
	execution_id VARCHAR(36) NOT NULL,
	raw_data TEXT,
	rejection_reason VARCHAR(50) NOT NULL,
	rejected_at DATETIME NOT NULL,
	KEY idx_rejected_execution (execution_id),
	KEY idx_rejected_reason (rejection_reason)
);
CREATE TABLE IF NOT EXISTS execution_log (
	id INT AUTO_INCREMENT PRIMARY KEY,
	execution_id VARCHAR(36) NOT NULL,
	stage VARCHAR(20) NOT NULL,
	status VARCHAR(20) NOT NULL,
	records_processed INT DEFAULT 0,
	records_rejected INT DEFAULT 0,
	error_message TEXT,
	started_at DATETIME NOT NULL,
	completed_at DATETIME NULL,
	duration_seconds DOUBLE DEFAULT 0,
	KEY idx_log_execution (execution_id),
	KEY idx_log_stage (stage),
	KEY idx_log_status (status)
)`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sales (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date DATE NOT NULL,
	product TEXT NOT NULL,
	category TEXT NOT NULL,
	quantity INTEGER NOT NULL,
	unit_price REAL NOT NULL,
	total REAL NOT NULL,
	customer_id TEXT,
	region TEXT NOT NULL,
	vendor TEXT,
	created_at DATETIME DEFAULT (strftime('%Y-%m-%d %H:%M:%S', 'now')),
	updated_at DATETIME DEFAULT (strftime('%Y-%m-%d %H:%M:%S', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_sales_date ON sales (date);
CREATE INDEX IF NOT EXISTS idx_sales_product ON sales (product);
CREATE INDEX IF NOT EXISTS idx_sales_category ON sales (category);
CREATE INDEX IF NOT EXISTS idx_sales_region ON sales (region);
CREATE INDEX IF NOT EXISTS idx_sales_customer ON sales (customer_id);
CREATE TABLE IF NOT EXISTS rejected_sales (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	execution_id TEXT NOT NULL,
	raw_data TEXT,
	rejection_reason TEXT NOT NULL,
	rejected_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rejected_execution ON rejected_sales (execution_id);
CREATE INDEX IF NOT EXISTS idx_rejected_reason ON rejected_sales (rejection_reason);
CREATE TABLE IF NOT EXISTS execution_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	execution_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	status TEXT NOT NULL,
	records_processed INTEGER DEFAULT 0,
	records_rejected INTEGER DEFAULT 0,
	error_message TEXT,
	started_at DATETIME NOT NULL,
	completed_at DATETIME NULL,
	duration_seconds REAL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_log_execution ON execution_log (execution_id);
CREATE INDEX IF NOT EXISTS idx_log_stage ON execution_log (stage);
CREATE INDEX IF NOT EXISTS idx_log_status ON execution_log (status)`
