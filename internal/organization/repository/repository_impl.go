package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditcore/internal/organization/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, created_at, updated_at
		 FROM organizations WHERE id = ?`,
		id,
	).Scan(&org).Error
	if err != nil {
		return nil, err
	}
	if org.ID == 0 {
		return nil, nil
	}
	return &org, nil
}

func (r *repo) ListIDs(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM organizations ORDER BY id`,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
