package sale

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps sales in process memory. Used when no database is
// configured and in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	sales map[uuid.UUID]*Sale
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sales: make(map[uuid.UUID]*Sale)}
}

func (m *MemoryStore) Create(_ context.Context, s *Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sales[s.ID]; exists {
		return fmt.Errorf("sale %s already exists", s.ID)
	}
	m.sales[s.ID] = clone(s)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sales[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (m *MemoryStore) Update(_ context.Context, s *Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sales[s.ID]; !ok {
		return ErrNotFound
	}
	m.sales[s.ID] = clone(s)
	return nil
}

func (m *MemoryStore) List(_ context.Context, f ListFilter) ([]Sale, int64, error) {
	m.mu.RLock()
	matched := make([]*Sale, 0, len(m.sales))
	for _, s := range m.sales {
		if f.Branch != "" && s.Branch != f.Branch {
			continue
		}
		if f.PaymentStatus != "" && s.PaymentStatus != f.PaymentStatus {
			continue
		}
		if f.PickupStatus != "" && s.PickupStatus != f.PickupStatus {
			continue
		}
		matched = append(matched, s)
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() > matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := f.offset()
	if start >= len(matched) {
		return []Sale{}, total, nil
	}
	end := len(matched)
	if f.PerPage > 0 && start+f.PerPage < end {
		end = start + f.PerPage
	}
	out := make([]Sale, 0, end-start)
	for _, s := range matched[start:end] {
		out = append(out, *clone(s))
	}
	return out, total, nil
}

func clone(s *Sale) *Sale {
	cp := *s
	cp.Lines = append(cp.Lines[:0:0], s.Lines...)
	cp.Payments = append(cp.Payments[:0:0], s.Payments...)
	if s.DeliveryDate != nil {
		d := *s.DeliveryDate
		cp.DeliveryDate = &d
	}
	return &cp
}
