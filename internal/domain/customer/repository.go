package customer

import (
	"context"
)

// Repository defines the interface for customer persistence.
// Implementations report persistence failures as shared storage errors.
type Repository interface {
	// Create persists a new customer and assigns its ID and CreatedAt
	Create(ctx context.Context, c *Customer) error

	// FindByID finds a customer by its ID, returning a not-found error if absent
	FindByID(ctx context.Context, id int64) (*Customer, error)

	// FindAll returns every customer ordered by ID
	FindAll(ctx context.Context) ([]Customer, error)

	// FindRecent returns up to limit customers, newest first
	FindRecent(ctx context.Context, limit int) ([]Customer, error)

	// Search returns customers whose name or email contains query, ignoring case
	Search(ctx context.Context, query string) ([]Customer, error)

	// Update merges a normalized patch into the stored customer in a single
	// transaction and returns the merged record
	Update(ctx context.Context, id int64, patch Patch) (*Customer, error)
}
