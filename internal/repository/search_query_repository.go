package repository

import (
	"fmt"

	"gorm.io/gorm"

	"policychat/internal/model"
)

type SearchQueryRepository struct {
	db *gorm.DB
}

func NewSearchQueryRepository(db *gorm.DB) *SearchQueryRepository {
	return &SearchQueryRepository{db: db}
}

func (r *SearchQueryRepository) Create(q *model.SearchQuery) error {
	if err := r.db.Create(q).Error; err != nil {
		return fmt.Errorf("create search query record failed: %w", err)
	}
	return nil
}
