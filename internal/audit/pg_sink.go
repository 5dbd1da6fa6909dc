package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgSink stores entries in the event_logs table.
type PgSink struct {
	pool *pgxpool.Pool
}

func NewPgSink(pool *pgxpool.Pool) *PgSink {
	return &PgSink{pool: pool}
}

func (s *PgSink) Record(ctx context.Context, e Entry) error {
	var payload []byte
	if len(e.Payload) > 0 {
		data, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("marshal audit payload: %w", err)
		}
		payload = data
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, actor_kind, actor_id, description, payload, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
	`, e.EventType, e.AppointmentID, e.ActorKind, e.ActorID, e.Description, payload, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func (s *PgSink) ListEntries(ctx context.Context, q Query) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_type, appointment_id, COALESCE(actor_kind, ''), actor_id, description, payload, created_at
		FROM event_logs
		WHERE $1::text = '' OR event_type ILIKE '%' || $1::text || '%'
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, q.EventType, q.limit())
	if err != nil {
		return nil, fmt.Errorf("query event logs: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.ID, &e.EventType, &e.AppointmentID, &e.ActorKind, &e.ActorID, &e.Description, &e.Payload, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan event logs: %w", err)
	}
	return entries, nil
}
