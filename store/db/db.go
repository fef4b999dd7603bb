package db

import (
	"github.com/pkg/errors"

	"github.com/apsa-ai/nexus/internal/profile"
	"github.com/apsa-ai/nexus/store"
	"github.com/apsa-ai/nexus/store/db/postgres"
	"github.com/apsa-ai/nexus/store/db/sqlite"
)

// NewDBDriver creates a new db driver based on the profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	switch profile.Driver {
	case "sqlite":
		return sqlite.NewDB(profile)
	case "postgres":
		return postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver: %s", profile.Driver)
	}
}
