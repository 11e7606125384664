package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"policychat/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(id string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ?", id).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByIDAndTenant(id, tenantID string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByTenant(tenantID string) ([]model.Document, error) {
	var list []model.Document
	if err := r.db.Where("tenant_id = ?", tenantID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

// ListActiveByTenant returns active, fully processed documents for the tenant,
// ordered by category then title (the order the corpus listing renders in).
func (r *DocumentRepository) ListActiveByTenant(tenantID string) ([]model.Document, error) {
	var list []model.Document
	err := r.db.
		Where("tenant_id = ? AND is_active = ? AND status = ?", tenantID, true, model.StatusCompleted).
		Order("category ASC, title ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list active documents failed: %w", err)
	}
	return list, nil
}

func (r *DocumentRepository) MarkProcessing(id string) error {
	err := r.db.Model(&model.Document{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.StatusProcessing,
			"error_message": "",
		}).Error
	if err != nil {
		return fmt.Errorf("mark document processing failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) MarkCompleted(doc *model.Document) error {
	now := time.Now()
	doc.Status = model.StatusCompleted
	doc.ErrorMessage = ""
	doc.ProcessedAt = &now
	if err := r.db.Save(doc).Error; err != nil {
		return fmt.Errorf("mark document completed failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) MarkFailed(id, message string) error {
	err := r.db.Model(&model.Document{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.StatusFailed,
			"error_message": message,
		}).Error
	if err != nil {
		return fmt.Errorf("mark document failed failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) SetActive(id, tenantID string, active bool) error {
	err := r.db.Model(&model.Document{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Update("is_active", active).Error
	if err != nil {
		return fmt.Errorf("update document active flag failed: %w", err)
	}
	return nil
}

// Delete removes the document and its segments in one transaction.
func (r *DocumentRepository) Delete(id, tenantID string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&model.Segment{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND tenant_id = ?", id, tenantID).Delete(&model.Document{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}
