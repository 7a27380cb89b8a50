package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"TradeGate/internal/domain/models"
	"TradeGate/internal/domain/repository"
	pkgkafka "TradeGate/pkg/kafka"
)

// ClickHouseAuditStore implements AuditStore for ClickHouse.
type ClickHouseAuditStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseAuditStore creates ClickHouse audit storage.
func NewClickHouseAuditStore(db *sql.DB, table string) repository.AuditStore {
	return &ClickHouseAuditStore{db: db, table: table}
}

// SchemaStatements returns the idempotent DDL for the audit table.
func SchemaStatements(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			ts DateTime64(3),
			broker String,
			op String,
			symbol String,
			side String,
			units Float64,
			correlation_id String,
			success UInt8,
			order_id String,
			filled_price Float64,
			error String,
			request String
		) ENGINE=MergeTree ORDER BY (broker, ts)`, table),
	}
}

func (s *ClickHouseAuditStore) StoreAudit(ctx context.Context, e models.AuditEntry) error {
	req, err := json.Marshal(e.Request)
	if err != nil {
		return fmt.Errorf("marshal audit request: %w", err)
	}
	success := uint8(0)
	if e.Result.Success {
		success = 1
	}
	q := fmt.Sprintf(`INSERT INTO %s
		(ts, broker, op, symbol, side, units, correlation_id, success, order_id, filled_price, error, request)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	_, err = s.db.ExecContext(ctx, q,
		e.At,
		e.Broker,
		e.Op,
		e.Request.Symbol,
		string(e.Request.Side),
		e.Request.Units,
		e.Request.CorrelationID,
		success,
		e.Result.OrderID,
		e.Result.FilledPrice,
		e.Result.Error,
		string(req),
	)
	return err
}

// RecentAudit returns the latest stored entries for one broker, newest
// first. Empty broker means all venues.
func (s *ClickHouseAuditStore) RecentAudit(ctx context.Context, broker string, limit int) ([]models.AuditEntry, error) {
	q := fmt.Sprintf("SELECT ts, broker, op, success, order_id, filled_price, error, request FROM %s", s.table)
	args := make([]interface{}, 0, 2)
	if broker != "" {
		q += " WHERE broker = ?"
		args = append(args, broker)
	}
	q += " ORDER BY ts DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		var (
			e       models.AuditEntry
			ts      time.Time
			success uint8
			req     string
		)
		if err := rows.Scan(&ts, &e.Broker, &e.Op, &success, &e.Result.OrderID, &e.Result.FilledPrice, &e.Result.Error, &req); err != nil {
			return nil, err
		}
		e.At = ts
		e.Result.Success = success == 1
		_ = json.Unmarshal([]byte(req), &e.Request)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *ClickHouseAuditStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseAuditStore) Close() error {
	return nil // Managed by pkg
}

// KafkaEventSink implements EventSink for Kafka. Keying by pair keeps
// per-instrument ordering under the hash balancer.
type KafkaEventSink struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaEventSink creates a Kafka event sink.
func NewKafkaEventSink(producer *pkgkafka.Producer, topic string) repository.EventSink {
	return &KafkaEventSink{producer: producer, topic: topic}
}

func (k *KafkaEventSink) Publish(ctx context.Context, ev models.Event) error {
	key := ev.Pair
	if key == "" {
		key = ev.Type
	}
	return k.producer.Publish(ctx, k.topic, []byte(key), ev)
}

func (k *KafkaEventSink) Close() error {
	if k.producer != nil {
		return k.producer.Close()
	}
	return nil
}
