package journal

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists journal entries
type Repository interface {
	// Record stores the entry; a second entry with the same event id yields ErrDuplicateEntry.
	Record(ctx context.Context, entry *Entry) error
	Exists(ctx context.Context, eventID string) (bool, error)
	ListByTransaction(ctx context.Context, externalID uuid.UUID, limit int) ([]*Entry, error)
}

// ErrDuplicateEntry indicates event id uniqueness violation
type ErrDuplicateEntry struct {
	EventID string
}

func (e ErrDuplicateEntry) Error() string {
	return "journal entry already recorded: " + e.EventID
}

// Is matches any ErrDuplicateEntry when the target event id is empty
func (e ErrDuplicateEntry) Is(target error) bool {
	t, ok := target.(ErrDuplicateEntry)
	if !ok {
		return false
	}
	return t.EventID == "" || t.EventID == e.EventID
}
