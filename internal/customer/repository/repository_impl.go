package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditcore/internal/customer/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, name, email, currency, created_at, updated_at
		 FROM customers WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) ListIDs(ctx context.Context, db *gorm.DB, orgID snowflake.ID, afterID snowflake.ID, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	stmt := db.WithContext(ctx).
		Model(&domain.Customer{}).
		Select("id").
		Order("id asc").
		Limit(limit)
	if orgID != 0 {
		stmt = stmt.Where("org_id = ?", orgID)
	}
	if afterID != 0 {
		stmt = stmt.Where("id > ?", afterID)
	}
	if err := stmt.Find(&ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
