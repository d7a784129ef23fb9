package models

import "time"

// EvidenceObject describes an uploaded evidence blob.
type EvidenceObject struct {
	Ref         string    `json:"ref"`
	MimeType    string    `json:"mimeType"`
	SizeBytes   int64     `json:"sizeBytes"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
