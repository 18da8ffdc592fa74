package models

import "time"

// ImportMark records the content hash of a legacy document that has already
// been imported; re-running the same file is a no-op.
type ImportMark struct {
	ID          int       `gorm:"primary_key" json:"id"`
	ContentHash string    `gorm:"size:64;not null;uniqueIndex" json:"content_hash"`
	ImportedAt  time.Time `gorm:"autoCreateTime" json:"imported_at"`
}
