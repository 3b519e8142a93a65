package cache

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/constants"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/models"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/storage"
	"github.com/sirupsen/logrus"
)

var _ storage.TransitionStore = (*ClickHouseStore)(nil)

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouseStore archives every phase transition.
type ClickHouseStore struct {
	conn   driver.Conn
	logger *logrus.Logger
}

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig, logger *logrus.Logger) (*ClickHouseStore, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Username == "" {
		cfg.Username = "default"
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test connection
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.WithFields(logrus.Fields{"addr": cfg.Addr, "database": cfg.Database}).Info("connected to ClickHouse")

	return &ClickHouseStore{conn: conn, logger: logger}, nil
}

// EnsureSchema creates the transitions table if it does not exist.
func (c *ClickHouseStore) EnsureSchema(ctx context.Context) error {
	if err := c.conn.Exec(ctx, createTransitionsTable); err != nil {
		return fmt.Errorf("failed to create %s: %w", constants.TransitionsTable, err)
	}
	return nil
}

func (c *ClickHouseStore) InsertTransition(ctx context.Context, ev *models.TransitionEvent) error {
	err := c.conn.Exec(ctx, insertTransition,
		ev.SessionID,
		ev.Seq,
		ev.Timestamp,
		ev.From,
		ev.To,
		ev.Reason,
		ev.InputMint,
		ev.OutputMint,
		ev.AmountAtomic,
		ev.QuoteRequestedAtMs,
		ev.Signature,
		ev.Status,
		ev.ExecutionTime,
		ev.ErrorPreview,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transition: %w", err)
	}
	return nil
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}

var createTransitionsTable = `
	CREATE TABLE IF NOT EXISTS ` + constants.TransitionsTable + ` (
		session_id            String,
		seq                   UInt64,
		timestamp             DateTime64(3, 'UTC'),
		from_phase            LowCardinality(String),
		to_phase              LowCardinality(String),
		reason                String,
		input_mint            String,
		output_mint           String,
		amount_atomic         UInt64,
		quote_requested_at_ms Int64,
		signature             String,
		status                String,
		execution_time        String,
		error_preview         String
	) ENGINE = MergeTree
	ORDER BY (session_id, seq)
`

var insertTransition = `
	INSERT INTO ` + constants.TransitionsTable + ` (
		session_id, seq, timestamp, from_phase, to_phase, reason,
		input_mint, output_mint, amount_atomic, quote_requested_at_ms,
		signature, status, execution_time, error_preview
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
