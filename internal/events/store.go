package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MemoryStore keeps events in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[uuid.UUID][]Event
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[uuid.UUID][]Event)}
}

func (m *MemoryStore) Insert(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[ev.AggregateID] = append(m.events[ev.AggregateID], ev)
	return nil
}

func (m *MemoryStore) ListByAggregate(_ context.Context, aggregateID uuid.UUID) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Event, len(m.events[aggregateID]))
	copy(out, m.events[aggregateID])
	return out, nil
}

// PGStore persists events in the sale_events table.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore over pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const (
	insertEventSQL = `INSERT INTO sale_events (id, topic, aggregate_id, payload, occurred_at)
VALUES ($1, $2, $3, $4, $5)`
	listEventsSQL = `SELECT id, topic, aggregate_id, payload, occurred_at
FROM sale_events
WHERE aggregate_id = $1
ORDER BY occurred_at, id`
)

func (p *PGStore) Insert(ctx context.Context, ev Event) error {
	if _, err := p.pool.Exec(ctx, insertEventSQL, ev.ID, ev.Topic, ev.AggregateID, []byte(ev.Payload), ev.OccurredAt); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (p *PGStore) ListByAggregate(ctx context.Context, aggregateID uuid.UUID) ([]Event, error) {
	rows, err := p.pool.Query(ctx, listEventsSQL, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var (
			ev      Event
			payload []byte
		)
		if err := row.Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &payload, &ev.OccurredAt); err != nil {
			return Event{}, err
		}
		ev.Payload = json.RawMessage(payload)
		return ev, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return out, nil
}
