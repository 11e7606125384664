package app

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"

	"policychat/internal/chunk"
	"policychat/internal/embedding"
	"policychat/internal/extract"
	"policychat/internal/model"
	"policychat/internal/pkg/logger"
	"policychat/internal/repository"
)

// IngestService runs the processing pipeline for one document: extract,
// repair the title if needed, chunk, embed, and replace the stored
// segment set.
type IngestService struct {
	docRepo  *repository.DocumentRepository
	segRepo  *repository.SegmentRepository
	cascade  *extract.Cascade
	embedder embedding.Provider
	opts     chunk.Options
}

func NewIngestService(
	docRepo *repository.DocumentRepository,
	segRepo *repository.SegmentRepository,
	cascade *extract.Cascade,
	embedder embedding.Provider,
	opts chunk.Options,
) *IngestService {
	if cascade == nil {
		cascade = extract.NewCascade()
	}
	return &IngestService{
		docRepo:  docRepo,
		segRepo:  segRepo,
		cascade:  cascade,
		embedder: embedder,
		opts:     opts,
	}
}

// ProcessDocument is idempotent: a document that already completed with
// segments in place is left untouched, so job redelivery is harmless.
// Any failure marks the document failed with the error message recorded.
func (s *IngestService) ProcessDocument(ctx context.Context, documentID string) error {
	log := logger.For("ingest").WithField("document_id", documentID)

	doc, err := s.docRepo.GetByID(documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	if doc.Status == model.StatusCompleted {
		if n, err := s.segRepo.CountByDocument(doc.ID); err == nil && n > 0 {
			log.Debug("document already processed, skipping")
			return nil
		}
	}

	if err := s.docRepo.MarkProcessing(doc.ID); err != nil {
		return err
	}

	if err := s.process(ctx, doc); err != nil {
		log.Warnf("processing failed: %v", err)
		if markErr := s.docRepo.MarkFailed(doc.ID, err.Error()); markErr != nil {
			log.Errorf("mark document failed errored: %v", markErr)
		}
		return err
	}

	log.Info("document processed")
	return nil
}

func (s *IngestService) process(ctx context.Context, doc *model.Document) error {
	data, err := os.ReadFile(doc.FilePath)
	if err != nil {
		return fmt.Errorf("read stored upload: %w", err)
	}

	res, err := s.cascade.Extract(data)
	if err != nil {
		return err
	}

	if extract.NeedsTitleRepair(doc.Title, doc.SourceName) {
		if inferred := extract.InferTitle(res.Metadata, res.Text); inferred != "" {
			doc.Title = inferred
		}
	}

	chunks := chunk.Split(res.Text, s.opts)
	if len(chunks) == 0 {
		return fmt.Errorf("document produced no chunks")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}

	segments := make([]model.Segment, len(chunks))
	for i, c := range chunks {
		seg := model.Segment{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			TenantID:   doc.TenantID,
			Index:      c.Index,
			Content:    c.Content,
		}
		seg.SetEmbedding(vectors[i])
		seg.SetMetadata(segmentMetadata(c))
		segments[i] = seg
	}
	if err := s.segRepo.ReplaceForDocument(doc.ID, segments); err != nil {
		return err
	}

	doc.TextContent = res.Text
	meta := res.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	meta["extraction_backend"] = res.Backend
	meta["extraction_quality"] = strconv.FormatFloat(res.Quality, 'f', 2, 64)
	meta["segment_count"] = strconv.Itoa(len(segments))
	meta["embedding_provider"] = s.embedder.Name()
	doc.SetMetadata(meta)

	return s.docRepo.MarkCompleted(doc)
}

func segmentMetadata(c chunk.Chunk) map[string]string {
	m := map[string]string{
		"group_title": c.GroupTitle,
		"method":      c.Method,
		"group_index": strconv.Itoa(c.GroupIndex),
	}
	if c.Merged {
		m["merged"] = "true"
	}
	if c.SentenceSplit {
		m["sentence_split"] = "true"
	}
	return m
}
