package models

import (
	"time"

	"github.com/google/uuid"
)

// Document is an uploaded file whose extracted text can be referenced in
// conversations.
type Document struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	TextChars    int       `json:"text_chars"`
	StoragePath  string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
