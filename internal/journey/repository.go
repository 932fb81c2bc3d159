package journey

import "context"

// DefaultListLimit is the page size when none is given.
const DefaultListLimit = 50

// ListOptions contains options for listing history entries.
type ListOptions struct {
	Limit  int
	Cursor string
}

// ListResult contains one page of history entries, newest first.
type ListResult struct {
	Items      []*Entry
	NextCursor string
}

// Repository persists the journey history.
type Repository interface {
	// Save stores a new entry.
	Save(ctx context.Context, entry *Entry) error

	// Get retrieves an entry by ID.
	Get(ctx context.Context, id string) (*Entry, error)

	// List returns entries newest first. Cursor is the ID of the last entry
	// of the previous page.
	List(ctx context.Context, opts ListOptions) (*ListResult, error)
}
