package migration

import "context"

// Migrator creates or updates the history database schema
type Migrator interface {
	Run(ctx context.Context, fresh bool) error
}
