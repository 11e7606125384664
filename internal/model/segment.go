package model

import (
	"encoding/json"
	"time"
)

// Segment is one retrieval-sized span of a document's extracted text.
// The embedding is stored as a JSON array of float32 for portability;
// similarity ranking loads the tenant's candidates and scores them in Go.
type Segment struct {
	ID         string    `gorm:"type:char(36);primaryKey" json:"id"`
	DocumentID string    `gorm:"type:char(36);not null;uniqueIndex:idx_seg_doc_index,priority:1" json:"document_id"`
	TenantID   string    `gorm:"type:char(36);not null;index" json:"tenant_id"`
	Index      int       `gorm:"column:segment_index;not null;uniqueIndex:idx_seg_doc_index,priority:2" json:"index"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Metadata   string    `gorm:"type:text" json:"-"`   // JSON object
	Embedding  string    `gorm:"type:mediumtext" json:"-"` // JSON array of float32
	CreatedAt  time.Time `json:"created_at"`
}

// EmbeddingVector returns the parsed embedding; nil when absent or malformed.
func (s *Segment) EmbeddingVector() []float32 {
	if s.Embedding == "" {
		return nil
	}
	var v []float32
	_ = json.Unmarshal([]byte(s.Embedding), &v)
	return v
}

// SetEmbedding stores the embedding as JSON.
func (s *Segment) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		s.Embedding = ""
		return
	}
	b, _ := json.Marshal(vec)
	s.Embedding = string(b)
}

// MetadataMap returns the parsed segment metadata; empty map on parse error.
func (s *Segment) MetadataMap() map[string]string {
	out := map[string]string{}
	if s.Metadata != "" {
		_ = json.Unmarshal([]byte(s.Metadata), &out)
	}
	return out
}

// SetMetadata stores the segment metadata map as JSON.
func (s *Segment) SetMetadata(m map[string]string) {
	if len(m) == 0 {
		s.Metadata = "{}"
		return
	}
	b, _ := json.Marshal(m)
	s.Metadata = string(b)
}
