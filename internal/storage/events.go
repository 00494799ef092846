package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/faceid/internal/models"
)

// CreateEvent stores a recognition event. ID and CreatedAt are assigned when
// unset.
func (s *PostgresStore) CreateEvent(ctx context.Context, ev *models.RecognitionEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO recognition_events (id, probe_id, room, outcome, identity_id, name, confidence, embedding_version, source, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.ProbeID, ev.Room, ev.Outcome, ev.IdentityID, ev.Name,
		ev.Confidence, ev.EmbeddingVersion, ev.Source, ev.Error, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// ListEvents returns the newest events first.
func (s *PostgresStore) ListEvents(ctx context.Context, filter models.EventFilter) ([]models.RecognitionEvent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	where := "WHERE TRUE"
	var args []any
	argIdx := 1
	if filter.Room != "" {
		where += fmt.Sprintf(" AND room = $%d", argIdx)
		args = append(args, filter.Room)
		argIdx++
	}
	if filter.Outcome != "" {
		where += fmt.Sprintf(" AND outcome = $%d", argIdx)
		args = append(args, filter.Outcome)
		argIdx++
	}

	query := fmt.Sprintf(
		`SELECT id, probe_id, room, outcome, identity_id, name, confidence, embedding_version, source, error, created_at
		 FROM recognition_events %s ORDER BY created_at DESC LIMIT $%d`, where, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []models.RecognitionEvent
	for rows.Next() {
		var ev models.RecognitionEvent
		if err := rows.Scan(&ev.ID, &ev.ProbeID, &ev.Room, &ev.Outcome, &ev.IdentityID, &ev.Name,
			&ev.Confidence, &ev.EmbeddingVersion, &ev.Source, &ev.Error, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
