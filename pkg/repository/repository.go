package repository

import (
	"context"

	"github.com/smallbiznis/customsledger/pkg/db/option"
)

// Repository is a generic gorm-backed store. Zero-valued fields of the query
// struct are ignored when filtering.
type Repository[T any] interface {
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	// FindOne returns nil, nil when nothing matches.
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Update(ctx context.Context, resourceID any, resource any) error
	// Delete removes the row with the given id and returns the rows affected.
	Delete(ctx context.Context, resourceID any) (int64, error)
	Count(ctx context.Context, query *T) (int64, error)
	BatchCreate(ctx context.Context, resources []*T) error
}
