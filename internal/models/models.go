package models

import "time"

type Document struct {
	DocumentID    string    `json:"document_id"`
	Filename      string    `json:"filename"`
	ContentType   string    `json:"content_type,omitempty"`
	SizeBytes     int64     `json:"size_bytes"`
	Checksum      string    `json:"checksum,omitempty"`
	StorageURI    string    `json:"gcs_uri,omitempty"`
	Status        Status    `json:"status"`
	ExtractedText string    `json:"-"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	RetryOf       string    `json:"retry_of,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Update carries the optional fields written together with a status change.
// A nil ExtractedText leaves the stored text untouched.
type Update struct {
	ExtractedText *string
	ErrorMessage  string
}

type SearchResult struct {
	DocumentID     string   `json:"document_id"`
	Filename       string   `json:"filename"`
	RelevanceScore float64  `json:"relevance_score"`
	Highlight      []string `json:"highlight"`
	StorageURI     string   `json:"gcs_uri"`
	Status         Status   `json:"status"`
}
