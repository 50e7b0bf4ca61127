// Package registry reads and conditionally enriches the provider
// registry. The registry owns the provider records; this subsystem only
// reads per-department snapshots and writes sparse field updates.
package registry

import "context"

// Provider is one registry entity. Phone is empty when no phone is on
// file.
type Provider struct {
	ID          string
	Name        string
	Phone       string
	Rating      float64
	ReviewCount int
}

// Update is a sparse enrichment write. Zero-valued fields are not
// written. A phone write only lands when the provider's phone is still
// empty at write time.
type Update struct {
	ProviderID  string
	Phone       string
	Rating      float64
	ReviewCount int
	Website     string
}

// IsZero reports whether the update carries no fields worth writing.
func (u Update) IsZero() bool {
	return u.Phone == "" && u.Rating == 0 && u.Website == ""
}

// Store is the narrow contract against the provider registry.
type Store interface {
	// ProvidersByDepartment returns the active, registry-sourced
	// providers of one department.
	ProvidersByDepartment(ctx context.Context, dept string) ([]Provider, error)
	// KnownPhones returns every distinct phone already on file for an
	// active provider. Seeds the run's dedup set.
	KnownPhones(ctx context.Context) ([]string, error)
	// ApplyUpdate writes the update's non-zero fields.
	ApplyUpdate(ctx context.Context, upd Update) error
}
