package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/customsledger/internal/procedure/domain"
	"github.com/smallbiznis/customsledger/pkg/db"
	"github.com/smallbiznis/customsledger/pkg/db/option"
	"github.com/smallbiznis/customsledger/pkg/db/pagination"
	"github.com/smallbiznis/customsledger/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func store(db *gorm.DB) repository.Repository[domain.Procedure] {
	return repository.ProvideStore[domain.Procedure](db)
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, procedure *domain.Procedure) error {
	return store(db).Create(ctx, procedure)
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Procedure, error) {
	if id == 0 {
		return nil, nil
	}
	return store(db).FindOne(ctx, &domain.Procedure{ID: id})
}

func (r *repo) FindByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.Procedure, error) {
	if reference == "" {
		return nil, nil
	}
	return store(db).FindOne(ctx, &domain.Procedure{Reference: reference})
}

func (r *repo) LockByReference(ctx context.Context, tx *gorm.DB, reference string) (*domain.Procedure, error) {
	if reference == "" {
		return nil, nil
	}
	return store(db.ForUpdate(tx)).FindOne(ctx, &domain.Procedure{Reference: reference})
}

func (r *repo) List(ctx context.Context, db *gorm.DB, page pagination.Pagination, cursor *pagination.Cursor) ([]*domain.Procedure, error) {
	opts := []option.QueryOption{}
	if cursor != nil {
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, err
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.CreatedBefore(createdAt, int64(id)))
	}
	opts = append(opts,
		option.WithOrder("created_at desc, id desc"),
		option.ApplyPagination(page),
	)
	return store(db).Find(ctx, &domain.Procedure{}, opts...)
}

func (r *repo) ListAll(ctx context.Context, db *gorm.DB) ([]*domain.Procedure, error) {
	return store(db).Find(ctx, &domain.Procedure{}, option.WithOrder("reference asc"))
}

func (r *repo) UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	return store(db).Update(ctx, id, fields)
}
