package thesis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tesis/backend/internal/domain/shared"
)

// Repository defines the interface for thesis persistence.
// Implementations load and store sections together with the thesis.
type Repository interface {
	// Save inserts a new thesis with its sections
	Save(ctx context.Context, t *Thesis) error

	// Update stores changes when t.Version still matches the stored row,
	// then bumps t.Version. A stale version yields CONCURRENCY_CONFLICT.
	Update(ctx context.Context, t *Thesis) error

	FindByID(ctx context.Context, id uuid.UUID) (*Thesis, error)
	FindByIDForOwner(ctx context.Context, ownerID, id uuid.UUID) (*Thesis, error)

	// FindAllForOwner lists theses without sections, newest first by default.
	// filter.Search matches the title.
	FindAllForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) ([]*Thesis, error)
	CountForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) (int64, error)

	// FindStaleGenerating returns GENERATING theses, with sections, last
	// updated before the cutoff. At most limit rows, oldest first.
	FindStaleGenerating(ctx context.Context, before time.Time, limit int) ([]*Thesis, error)

	// Delete removes a thesis and its sections; a missing row yields NOT_FOUND
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteForOwner(ctx context.Context, ownerID, id uuid.UUID) error
}
