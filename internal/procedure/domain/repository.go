package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/customsledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, procedure *Procedure) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Procedure, error)
	FindByReference(ctx context.Context, db *gorm.DB, reference string) (*Procedure, error)
	// LockByReference loads the row FOR UPDATE where the dialect supports it.
	LockByReference(ctx context.Context, db *gorm.DB, reference string) (*Procedure, error)
	List(ctx context.Context, db *gorm.DB, page pagination.Pagination, cursor *pagination.Cursor) ([]*Procedure, error)
	ListAll(ctx context.Context, db *gorm.DB) ([]*Procedure, error)
	UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
}
