package model

import "time"

// HistoryRecord is a persisted diagnostic result plus identifying metadata.
// Records are append-only and listed in reverse chronological order, capped
// by a display limit.
type HistoryRecord struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Type        DiagnosticType `json:"diagnostic_type"`
	ProductName string         `json:"product_name"`
	Category    string         `json:"category"`
	Description string         `json:"description"`
	Payload     map[string]any `json:"payload"`
	CreatedAt   time.Time      `json:"created_at"`
}

// DocumentSection is one heading/body pair of a generated document.
type DocumentSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// GeneratedDocument is an AI-drafted compliance document. It is created per
// document-generation request, optionally linked to a prior diagnostic by
// DiagnosticID, and persisted with status "draft".
type GeneratedDocument struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	DiagnosticID string            `json:"diagnostic_id,omitempty"`
	DocumentType string            `json:"document_type"`
	Title        string            `json:"title"`
	Content      string            `json:"content"`
	Sections     []DocumentSection `json:"sections"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
}

// DocumentStatusDraft is the only status this service ever writes.
const DocumentStatusDraft = "draft"
