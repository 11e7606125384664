package app

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"policychat/internal/embedding"
	"policychat/internal/model"
	"policychat/internal/repository"
)

// SearchResult is one ranked segment. Content carries the parent document
// title as a leading identity tag so consumers can attribute facts without
// re-joining.
type SearchResult struct {
	SegmentID     string            `json:"segment_id"`
	DocumentID    string            `json:"document_id"`
	DocumentTitle string            `json:"document_title"`
	Index         int               `json:"index"`
	Content       string            `json:"content"`
	Similarity    float64           `json:"similarity"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// SegmentSource supplies the ranked-over segment data.
type SegmentSource interface {
	ListCandidates(tenantID string, documentIDs []string) ([]repository.RetrievalCandidate, error)
	GetByIDAndTenant(id, tenantID string) (*model.Segment, error)
}

// SearchService ranks a tenant's stored segments against a query by
// cosine similarity.
type SearchService struct {
	segRepo       SegmentSource
	embedder      embedding.Provider
	defaultLimit  int
	maxLimit      int
	maxQueryChars int
}

func NewSearchService(
	segRepo SegmentSource,
	embedder embedding.Provider,
	defaultLimit, maxLimit, maxQueryChars int,
) *SearchService {
	if defaultLimit <= 0 {
		defaultLimit = 5
	}
	if maxLimit <= 0 {
		maxLimit = 50
	}
	if maxQueryChars <= 0 {
		maxQueryChars = 2000
	}
	return &SearchService{
		segRepo:       segRepo,
		embedder:      embedder,
		defaultLimit:  defaultLimit,
		maxLimit:      maxLimit,
		maxQueryChars: maxQueryChars,
	}
}

// Search embeds the query and returns the tenant's best-matching segments.
// limit 0 means the default; documentIDs, when non-empty, restricts the
// candidate set.
func (s *SearchService) Search(
	ctx context.Context,
	tenantID, query string,
	limit int,
	minSimilarity float64,
	documentIDs []string,
) ([]SearchResult, error) {
	if tenantID == "" {
		return nil, ErrInvalidInput
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrInvalidQuery
	}
	if len(query) > s.maxQueryChars {
		return nil, ErrQueryTooLong
	}

	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	minSimilarity = clamp01(minSimilarity)

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("query embedding returned %d vectors", len(vectors))
	}

	candidates, err := s.segRepo.ListCandidates(tenantID, documentIDs)
	if err != nil {
		return nil, err
	}
	return rankCandidates(vectors[0], candidates, minSimilarity, limit, ""), nil
}

// Similar returns segments most similar to a stored segment, excluding the
// reference itself. A missing reference yields an empty result set; this is
// a best-effort feature.
func (s *SearchService) Similar(tenantID, segmentID string, limit int, minSimilarity float64) ([]SearchResult, error) {
	if tenantID == "" || segmentID == "" {
		return nil, ErrInvalidInput
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	minSimilarity = clamp01(minSimilarity)

	ref, err := s.segRepo.GetByIDAndTenant(segmentID, tenantID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return []SearchResult{}, nil
	}
	vec := ref.EmbeddingVector()
	if len(vec) == 0 {
		return []SearchResult{}, nil
	}

	candidates, err := s.segRepo.ListCandidates(tenantID, nil)
	if err != nil {
		return nil, err
	}
	return rankCandidates(vec, candidates, minSimilarity, limit, ref.ID), nil
}

// rankCandidates is the pure ranking core: cosine similarity against every
// candidate, floor filter, descending sort, top limit.
func rankCandidates(
	queryVec []float32,
	candidates []repository.RetrievalCandidate,
	minSimilarity float64,
	limit int,
	excludeID string,
) []SearchResult {
	results := make([]SearchResult, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		if c.ID == excludeID {
			continue
		}
		sim := CosineSimilarity(queryVec, c.EmbeddingVector())
		if sim < minSimilarity {
			continue
		}
		results = append(results, SearchResult{
			SegmentID:     c.ID,
			DocumentID:    c.DocumentID,
			DocumentTitle: c.DocumentTitle,
			Index:         c.Index,
			Content:       fmt.Sprintf("[Document: %s]\n%s", c.DocumentTitle, c.Content),
			Similarity:    sim,
			Metadata:      c.MetadataMap(),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// CosineSimilarity returns 1 - cosine distance, in [-1, 1]; mismatched or
// zero-magnitude vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
