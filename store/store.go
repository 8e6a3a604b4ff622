package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/procura/procura/internal/profile"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// Migrate brings the schema of the configured driver up to date.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.driver.Migrate(ctx); err != nil {
		return errors.Wrapf(err, "failed to migrate %s database", s.profile.Driver)
	}
	return nil
}

func (s *Store) Close() error {
	return s.driver.Close()
}
