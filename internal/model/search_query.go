package model

import "time"

// SearchQuery is an analytics record of one search or chat turn.
// Written best-effort; never on the caller-visible error path.
type SearchQuery struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TenantID     string    `gorm:"type:char(36);not null;index" json:"tenant_id"`
	QueryText    string    `gorm:"type:text;not null" json:"query_text"`
	ResultsCount int       `gorm:"not null" json:"results_count"`
	SessionID    string    `gorm:"size:100" json:"session_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
