package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"policychat/internal/model"
	"policychat/internal/pkg/logger"
	"policychat/internal/repository"
)

// JobPublisher enqueues a document for asynchronous processing.
type JobPublisher interface {
	PublishProcessJob(ctx context.Context, documentID string) error
}

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// DocumentService owns the document lifecycle around ingestion: upload,
// listing, activation, reprocessing, deletion.
type DocumentService struct {
	docRepo        *repository.DocumentRepository
	segRepo        *repository.SegmentRepository
	publisher      JobPublisher
	uploadDir      string
	maxUploadBytes int64
}

func NewDocumentService(
	docRepo *repository.DocumentRepository,
	segRepo *repository.SegmentRepository,
	publisher JobPublisher,
	uploadDir string,
	maxUploadMB int64,
) *DocumentService {
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &DocumentService{
		docRepo:        docRepo,
		segRepo:        segRepo,
		publisher:      publisher,
		uploadDir:      uploadDir,
		maxUploadBytes: maxUploadMB << 20,
	}
}

type UploadDocumentInput struct {
	TenantID   string
	Title      string
	Category   string
	SourceName string
	Data       []byte
}

// Upload stores the raw file, creates the pending document record, and
// enqueues processing.
func (s *DocumentService) Upload(ctx context.Context, input UploadDocumentInput) (*model.Document, error) {
	if input.TenantID == "" || len(input.Data) == 0 {
		return nil, ErrInvalidInput
	}
	if int64(len(input.Data)) > s.maxUploadBytes {
		return nil, ErrFileTooLarge
	}
	if !supportedUpload(input.Data) {
		return nil, ErrUnsupportedFile
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = filenameStem(input.SourceName)
	}
	if title == "" {
		return nil, ErrInvalidInput
	}

	doc := &model.Document{
		ID:         uuid.NewString(),
		TenantID:   input.TenantID,
		Title:      title,
		Category:   strings.TrimSpace(input.Category),
		Status:     model.StatusPending,
		IsActive:   true,
		SourceName: filepath.Base(input.SourceName),
	}

	path, err := s.storeFile(doc.ID, input.SourceName, input.Data)
	if err != nil {
		return nil, err
	}
	doc.FilePath = path

	if err := s.docRepo.Create(doc); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	if err := s.publisher.PublishProcessJob(ctx, doc.ID); err != nil {
		_ = s.docRepo.MarkFailed(doc.ID, "failed to enqueue processing")
		return nil, fmt.Errorf("enqueue document processing failed: %w", err)
	}
	return doc, nil
}

func (s *DocumentService) storeFile(docID, sourceName string, data []byte) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir failed: %w", err)
	}
	name := docID + filepath.Ext(sourceName)
	path := filepath.Join(s.uploadDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("store upload failed: %w", err)
	}
	return path, nil
}

func supportedUpload(data []byte) bool {
	m := mimetype.Detect(data)
	switch {
	case m.Is("application/pdf"):
		return true
	case m.Is(docxMIME):
		return true
	case strings.HasPrefix(m.String(), "text/"):
		return true
	}
	return false
}

func filenameStem(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (s *DocumentService) List(tenantID string) ([]model.Document, error) {
	if tenantID == "" {
		return nil, ErrInvalidInput
	}
	return s.docRepo.ListByTenant(tenantID)
}

func (s *DocumentService) Get(id, tenantID string) (*model.Document, error) {
	if id == "" || tenantID == "" {
		return nil, ErrInvalidInput
	}
	doc, err := s.docRepo.GetByIDAndTenant(id, tenantID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *DocumentService) SetActive(id, tenantID string, active bool) error {
	if _, err := s.Get(id, tenantID); err != nil {
		return err
	}
	return s.docRepo.SetActive(id, tenantID, active)
}

// Reprocess re-runs extraction and chunking for an existing document, e.g.
// after an extraction bug fix or a chunking configuration change.
func (s *DocumentService) Reprocess(ctx context.Context, id, tenantID string) error {
	doc, err := s.Get(id, tenantID)
	if err != nil {
		return err
	}
	if err := s.docRepo.MarkProcessing(doc.ID); err != nil {
		return err
	}
	if err := s.publisher.PublishProcessJob(ctx, doc.ID); err != nil {
		_ = s.docRepo.MarkFailed(doc.ID, "failed to enqueue reprocessing")
		return fmt.Errorf("enqueue document reprocessing failed: %w", err)
	}
	return nil
}

func (s *DocumentService) Delete(id, tenantID string) error {
	doc, err := s.Get(id, tenantID)
	if err != nil {
		return err
	}
	if err := s.docRepo.Delete(id, tenantID); err != nil {
		return err
	}
	if doc.FilePath != "" {
		if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
			logger.For("documents").Warnf("remove stored upload %s failed: %v", doc.FilePath, err)
		}
	}
	return nil
}
