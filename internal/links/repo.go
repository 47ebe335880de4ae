package links

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence operations for Link entities.
// Mutating operations are atomic: each runs as a single transaction.
type Repository interface {
	// Create inserts link and, when poolSize > 0 and the table now holds more
	// than poolSize rows, evicts the oldest other link. It reports whether
	// a link was evicted.
	Create(ctx context.Context, link Link, poolSize int) (Link, bool, error)
	Get(ctx context.Context, id uuid.UUID) (Link, error)
	// List expects normalized params (Page >= 1, PerPage >= 1).
	List(ctx context.Context, params ListParams) (Page, error)
	Update(ctx context.Context, id uuid.UUID, patch LinkPatch) (Link, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteMany deletes the given ids, ignoring unknown ones. When
	// replacements is non-nil it is called with the number of deleted rows
	// and its links are inserted in the same transaction.
	DeleteMany(ctx context.Context, ids []uuid.UUID, replacements func(n int) ([]Link, error)) (int, error)
	// Track increments clicks of the oldest ACTIVE link matching shortCode.
	Track(ctx context.Context, shortCode string, mode MatchMode) (Link, error)
	// Seed replaces every link with the given ones.
	Seed(ctx context.Context, links []Link) (int, error)
	ShortCodes(ctx context.Context) ([]string, error)
}
