package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"truconn/internal/consent/models"
)

// DefaultTypeNames are the consent categories provisioned on first boot.
var DefaultTypeNames = []string{"location", "health", "financial", "biometric"}

type typeWriter interface {
	SaveType(ctx context.Context, ct *models.ConsentType) error
	ListTypes(ctx context.Context) ([]*models.ConsentType, error)
}

// SeedTypes provisions any missing default consent types. Existing types are
// left untouched.
func SeedTypes(ctx context.Context, store typeWriter, now time.Time) error {
	existing, err := store.ListTypes(ctx)
	if err != nil {
		return fmt.Errorf("listing consent types: %w", err)
	}
	present := make(map[string]bool, len(existing))
	for _, ct := range existing {
		present[ct.Name] = true
	}
	for _, name := range DefaultTypeNames {
		if present[name] {
			continue
		}
		ct := &models.ConsentType{ID: uuid.New(), Name: name, CreatedAt: now}
		if err := store.SaveType(ctx, ct); err != nil {
			return fmt.Errorf("seeding consent type %q: %w", name, err)
		}
	}
	return nil
}
