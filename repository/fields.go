package repository

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/Konsultn-Engineering/txscope/schema"
)

// insertFields returns the columns to insert for e: its own fields plus a
// generated id and timestamps where they are missing or zero.
func (r *Repository[T]) insertFields(e T) ([]schema.Field, error) {
	fields := slices.Clone(e.Fields())

	if r.cfg.generator != nil {
		if v, ok := schema.Lookup(fields, r.cfg.idColumn); !ok || isZero(v) {
			id, err := r.cfg.generator.Generate()
			if err != nil {
				return nil, err
			}
			fields = schema.Set(fields, r.cfg.idColumn, id)
		}
	}

	if r.cfg.timestamps {
		now := r.cfg.now().UTC()
		for _, col := range []string{ColumnCreatedAt, ColumnUpdatedAt} {
			if v, ok := schema.Lookup(fields, col); !ok || isZero(v) {
				fields = schema.Set(fields, col, now)
			}
		}
	}

	if r.cfg.softDelete {
		if _, ok := schema.Lookup(fields, ColumnDeletedAt); !ok {
			fields = append(fields, schema.F(ColumnDeletedAt, nil))
		}
	}
	return fields, nil
}

// updateFields orders changes by column name and stamps updated_at unless
// the caller set it.
func (r *Repository[T]) updateFields(changes map[string]any) []schema.Field {
	if len(changes) == 0 {
		return nil
	}
	fields := make([]schema.Field, 0, len(changes)+1)
	for name, v := range changes {
		fields = append(fields, schema.F(name, v))
	}
	if r.cfg.timestamps {
		if v, ok := changes[ColumnUpdatedAt]; !ok || isZero(v) {
			fields = schema.Set(fields, ColumnUpdatedAt, r.cfg.now().UTC())
		}
	}
	slices.SortFunc(fields, func(a, b schema.Field) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return fields
}

func isZero(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case int:
		return val == 0
	case int64:
		return val == 0
	case int32:
		return val == 0
	case uuid.UUID:
		return val == uuid.Nil
	case ulid.ULID:
		return val.Compare(ulid.ULID{}) == 0
	case time.Time:
		return val.IsZero()
	case *time.Time:
		return val == nil || val.IsZero()
	}
	return false
}
