// Package store persists diagnostic history, generated documents, and user
// profiles. Persistence is strictly auxiliary to the diagnostic flow: append
// failures are absorbed by callers and list failures degrade to empty
// results, so a missing or broken table never blocks a diagnostic response.
package store

import (
	"context"
	"errors"

	"github.com/certi-mate/compliance-api/internal/model"
)

// HistoryFilter specifies criteria for listing history records.
type HistoryFilter struct {
	UserID string               `json:"user_id,omitempty"`
	Type   model.DiagnosticType `json:"diagnostic_type,omitempty"`
	Limit  int                  `json:"limit,omitempty"`
}

// DefaultHistoryLimit caps history listings when the caller does not.
const DefaultHistoryLimit = 50

// Store defines the persistence interface for the diagnostic pipeline.
type Store interface {
	// Diagnostic history (append-only, newest first)
	AppendDiagnostic(ctx context.Context, rec model.HistoryRecord) error
	ListDiagnostics(ctx context.Context, filter HistoryFilter) ([]model.HistoryRecord, error)

	// Generated documents
	SaveDocument(ctx context.Context, doc model.GeneratedDocument) error
	ListDocuments(ctx context.Context, userID string, limit int) ([]model.GeneratedDocument, error)

	// Profiles (owned by the external auth provider; read + role/tier update only)
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	SetRole(ctx context.Context, userID string, role model.Role) error
	SetTier(ctx context.Context, userID string, tier model.Tier) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// IsMissingTable reports whether err was caused by a not-yet-created table.
// The backing store is provisioned out of band and treated as eventually
// present, so this condition is expected during early deployments.
func IsMissingTable(err error) bool {
	var pe *model.PersistenceError
	return errors.As(err, &pe) && pe.MissingTable
}
