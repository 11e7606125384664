package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"policychat/internal/model"
)

type SegmentRepository struct {
	db *gorm.DB
}

func NewSegmentRepository(db *gorm.DB) *SegmentRepository {
	return &SegmentRepository{db: db}
}

// ReplaceForDocument deletes any existing segments of the document and
// inserts the new batch in one transaction, so a reprocessed document never
// exposes a half-replaced segment set to readers.
func (r *SegmentRepository) ReplaceForDocument(documentID string, segments []model.Segment) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&model.Segment{}).Error; err != nil {
			return err
		}
		if len(segments) == 0 {
			return nil
		}
		return tx.CreateInBatches(&segments, 500).Error
	})
	if err != nil {
		return fmt.Errorf("replace segments failed: %w", err)
	}
	return nil
}

func (r *SegmentRepository) GetByIDAndTenant(id, tenantID string) (*model.Segment, error) {
	var seg model.Segment
	if err := r.db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&seg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get segment failed: %w", err)
	}
	return &seg, nil
}

// RetrievalCandidate is a segment joined with its parent document's title,
// restricted to what the retrieval service is allowed to rank.
type RetrievalCandidate struct {
	model.Segment
	DocumentTitle string `gorm:"column:document_title"`
}

// ListCandidates returns embedded segments of the tenant's active documents.
// documentIDs, when non-empty, restricts the candidate set to those documents.
func (r *SegmentRepository) ListCandidates(tenantID string, documentIDs []string) ([]RetrievalCandidate, error) {
	q := r.db.Table("segments").
		Select("segments.*, documents.title AS document_title").
		Joins("INNER JOIN documents ON documents.id = segments.document_id").
		Where("segments.tenant_id = ?", tenantID).
		Where("segments.embedding <> ''").
		Where("documents.is_active = ?", true)
	if len(documentIDs) > 0 {
		q = q.Where("segments.document_id IN ?", documentIDs)
	}

	var candidates []RetrievalCandidate
	if err := q.Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("list retrieval candidates failed: %w", err)
	}
	return candidates, nil
}

func (r *SegmentRepository) CountByDocument(documentID string) (int64, error) {
	var n int64
	if err := r.db.Model(&model.Segment{}).Where("document_id = ?", documentID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count segments failed: %w", err)
	}
	return n, nil
}
