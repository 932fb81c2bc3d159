package journey

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// It is used when no database is configured and in tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewInMemoryRepository creates a new in-memory history repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		entries: make(map[string]*Entry),
	}
}

// Save stores a new entry.
func (r *InMemoryRepository) Save(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *e
	r.entries[e.ID] = &cpy
	return nil
}

// Get retrieves an entry by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}

	cpy := *e
	return &cpy, nil
}

// List returns entries newest first.
func (r *InMemoryRepository) List(_ context.Context, opts ListOptions) (*ListResult, error) {
	r.mu.RLock()
	entries := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		cpy := *e
		entries = append(entries, &cpy)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID > entries[j].ID
	})

	if opts.Cursor != "" {
		start := len(entries)
		for i, e := range entries {
			if e.ID == opts.Cursor {
				start = i + 1
				break
			}
		}
		entries = entries[start:]
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	result := &ListResult{
		Items: entries,
	}

	if len(entries) > limit {
		result.Items = entries[:limit]
		result.NextCursor = entries[limit-1].ID
	}

	return result, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
