package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mstgnz/telepay/infra/logger"
)

// Call is one inbound API call
type Call struct {
	RequestID    string
	Method       string
	Endpoint     string
	StatusCode   int
	DurationMs   int64
	MerchOrderID string
	ClientIP     string
	CreatedAt    time.Time
}

// Notification is one webhook body as received
type Notification struct {
	ID             int64     `json:"id"`
	MerchOrderID   string    `json:"merch_order_id"`
	PaymentOrderID string    `json:"payment_order_id,omitempty"`
	TradeStatus    string    `json:"trade_status,omitempty"`
	Payload        string    `json:"payload"`
	ReceivedAt     time.Time `json:"received_at"`
}

// SQLiteJournal is an append-only audit trail of API calls and webhook bodies
type SQLiteJournal struct {
	db   *sql.DB
	path string
}

// NewSQLiteJournal opens (or creates) the journal database at dbPath
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_timeout=20000&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	j := &SQLiteJournal{db: db, path: dbPath}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite journal initialized", logger.LogContext{Fields: map[string]any{"path": dbPath}})
	return j, nil
}

func (j *SQLiteJournal) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS api_calls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		method TEXT NOT NULL,
		endpoint TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		merch_order_id TEXT,
		client_ip TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		merch_order_id TEXT,
		payment_order_id TEXT,
		trade_status TEXT,
		payload TEXT NOT NULL,
		received_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_order ON notifications(merch_order_id);
	`

	_, err := j.db.Exec(query)
	return err
}

// retryOperation executes a database operation with retry logic for SQLITE_BUSY errors
func (j *SQLiteJournal) retryOperation(operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if !strings.Contains(err.Error(), "SQLITE_BUSY") && !strings.Contains(err.Error(), "database is locked") {
			return err
		}

		lastErr = err
		if attempt < maxRetries {
			// 10ms, 20ms, 40ms, ...
			time.Sleep(time.Duration(10*(1<<attempt)) * time.Millisecond)
		}
	}

	return fmt.Errorf("operation failed after %d retries, last error: %w", maxRetries+1, lastErr)
}

// RecordCall appends an API call
func (j *SQLiteJournal) RecordCall(ctx context.Context, c Call) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return j.retryOperation(func() error {
		_, err := j.db.ExecContext(ctx,
			`INSERT INTO api_calls (request_id, method, endpoint, status_code, duration_ms, merch_order_id, client_ip, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.RequestID, c.Method, c.Endpoint, c.StatusCode, c.DurationMs, c.MerchOrderID, c.ClientIP, c.CreatedAt,
		)
		return err
	}, 3)
}

// RecordNotification appends a webhook body and returns its row id
func (j *SQLiteJournal) RecordNotification(ctx context.Context, n Notification) (int64, error) {
	if n.ReceivedAt.IsZero() {
		n.ReceivedAt = time.Now().UTC()
	}

	var id int64
	err := j.retryOperation(func() error {
		res, err := j.db.ExecContext(ctx,
			`INSERT INTO notifications (merch_order_id, payment_order_id, trade_status, payload, received_at)
			 VALUES (?, ?, ?, ?, ?)`,
			n.MerchOrderID, n.PaymentOrderID, n.TradeStatus, n.Payload, n.ReceivedAt,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	}, 3)
	return id, err
}

// Notifications returns the notifications received for a merchant order, oldest first
func (j *SQLiteJournal) Notifications(ctx context.Context, merchOrderID string) ([]Notification, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, merch_order_id, payment_order_id, trade_status, payload, received_at
		 FROM notifications WHERE merch_order_id = ? ORDER BY id`, merchOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.MerchOrderID, &n.PaymentOrderID, &n.TradeStatus, &n.Payload, &n.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// callCount returns the number of recorded API calls for an endpoint
func (j *SQLiteJournal) callCount(ctx context.Context, endpoint string) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM api_calls WHERE endpoint = ?`, endpoint).Scan(&n)
	return n, err
}

// Ping checks the database connection
func (j *SQLiteJournal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// Close closes the database connection
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
