package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Customer, error)
	// ListIDs pages customer IDs for an org in stable order. A zero afterID
	// starts from the beginning.
	ListIDs(ctx context.Context, db *gorm.DB, orgID snowflake.ID, afterID snowflake.ID, limit int) ([]snowflake.ID, error)
}
