package repository

import (
	"time"

	"github.com/Konsultn-Engineering/txscope/schema"
)

const (
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
	ColumnDeletedAt = "deleted_at"
)

type config struct {
	schema     string
	idColumn   string
	timestamps bool
	softDelete bool
	generator  schema.IDGenerator
	now        func() time.Time
}

func defaultConfig() config {
	return config{
		idColumn:  "id",
		generator: schema.UUIDGenerator{},
		now:       time.Now,
	}
}

// Option configures a Repository.
type Option func(*config)

// WithSchema qualifies the table with a database schema, as in
// "tenant.users".
func WithSchema(name string) Option {
	return func(c *config) {
		c.schema = name
	}
}

// WithIDColumn names the primary key column. Default "id".
func WithIDColumn(column string) Option {
	return func(c *config) {
		c.idColumn = column
	}
}

// WithIDGenerator sets the generator used when a created entity has no id.
// Default schema.UUIDGenerator. A nil generator leaves ids to the database.
func WithIDGenerator(g schema.IDGenerator) Option {
	return func(c *config) {
		c.generator = g
	}
}

// WithTimestamps maintains created_at and updated_at.
func WithTimestamps() Option {
	return func(c *config) {
		c.timestamps = true
	}
}

// WithSoftDelete turns deletes into updates of deleted_at and hides deleted
// rows from reads unless WithTrashed or OnlyTrashed is used.
func WithSoftDelete() Option {
	return func(c *config) {
		c.softDelete = true
	}
}

// WithClock replaces the time source for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}
