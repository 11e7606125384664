package model

import (
	"encoding/json"
	"time"
)

// Document lifecycle status. Transitions are driven by the ingestion
// pipeline only: pending -> processing -> completed | failed.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Document is one uploaded source file within a tenant.
type Document struct {
	ID           string    `gorm:"type:char(36);primaryKey" json:"id"`
	TenantID     string    `gorm:"type:char(36);not null;index:idx_doc_tenant_status" json:"tenant_id"`
	Title        string    `gorm:"size:500;not null" json:"title"`
	Category     string    `gorm:"size:128" json:"category"`
	Status       string    `gorm:"size:20;not null;default:pending;index:idx_doc_tenant_status" json:"status"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	ErrorMessage string    `gorm:"type:text" json:"error_message,omitempty"`
	TextContent  string    `gorm:"type:longtext" json:"-"`
	Metadata     string    `gorm:"type:text" json:"-"` // JSON object
	SourceName   string    `gorm:"size:256" json:"source_name"`
	FilePath     string    `gorm:"size:512" json:"-"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MetadataMap returns the parsed metadata; empty map on parse error.
func (d *Document) MetadataMap() map[string]string {
	out := map[string]string{}
	if d.Metadata != "" {
		_ = json.Unmarshal([]byte(d.Metadata), &out)
	}
	return out
}

// SetMetadata stores the metadata map as JSON.
func (d *Document) SetMetadata(m map[string]string) {
	if len(m) == 0 {
		d.Metadata = "{}"
		return
	}
	b, _ := json.Marshal(m)
	d.Metadata = string(b)
}
