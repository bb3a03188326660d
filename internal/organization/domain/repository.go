package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Organization, error)
	ListIDs(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error)
}
