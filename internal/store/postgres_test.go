package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certi-mate/compliance-api/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return &PostgresStore{pool: mockPool}, mockPool
}

func TestPostgresMigrate(t *testing.T) {
	st, mockPool := newMockStore(t)

	mockPool.ExpectExec("CREATE TABLE IF NOT EXISTS profiles").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, st.Migrate(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresAppendDiagnostic(t *testing.T) {
	st, mockPool := newMockStore(t)

	mockPool.ExpectExec("INSERT INTO diagnostic_results").
		WithArgs("rec-1", "u-1", "regulatory", "lamp", "lighting", "desc", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.AppendDiagnostic(context.Background(), model.HistoryRecord{
		ID:          "rec-1",
		UserID:      "u-1",
		Type:        model.DiagnosticRegulatory,
		ProductName: "lamp",
		Category:    "lighting",
		Description: "desc",
		Payload:     map[string]any{"summary": "ok"},
	})
	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresAppendDiagnosticGeneratesID(t *testing.T) {
	st, mockPool := newMockStore(t)

	mockPool.ExpectExec("INSERT INTO diagnostic_results").
		WithArgs(pgxmock.AnyArg(), nil, "risk", "lamp", "", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.AppendDiagnostic(context.Background(), model.HistoryRecord{
		Type:        model.DiagnosticRisk,
		ProductName: "lamp",
		Payload:     map[string]any{},
	})
	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresAppendMissingTable(t *testing.T) {
	st, mockPool := newMockStore(t)

	mockPool.ExpectExec("INSERT INTO diagnostic_results").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: "relation does not exist"})

	err := st.AppendDiagnostic(context.Background(), model.HistoryRecord{
		Type:        model.DiagnosticRisk,
		ProductName: "lamp",
		Payload:     map[string]any{},
	})
	require.Error(t, err)
	assert.True(t, IsMissingTable(err))

	var pe *model.PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "append diagnostic", pe.Op)
}

func TestPostgresListDiagnostics(t *testing.T) {
	st, mockPool := newMockStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "user_id", "diagnostic_type", "product_name", "category", "description", "payload", "created_at"}).
		AddRow("rec-1", "u-1", "regulatory", "lamp", "lighting", "desc", []byte(`{"summary":"ok"}`), now)

	mockPool.ExpectQuery("SELECT (.+) FROM diagnostic_results WHERE user_id = \\$1 AND diagnostic_type = \\$2 ORDER BY created_at DESC LIMIT \\$3").
		WithArgs("u-1", "regulatory", 50).
		WillReturnRows(rows)

	records, err := st.ListDiagnostics(context.Background(), HistoryFilter{UserID: "u-1", Type: model.DiagnosticRegulatory})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rec-1", records[0].ID)
	assert.Equal(t, model.DiagnosticRegulatory, records[0].Type)
	assert.Equal(t, "ok", records[0].Payload["summary"])
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresListDiagnosticsCapsLimit(t *testing.T) {
	st, mockPool := newMockStore(t)

	mockPool.ExpectQuery("SELECT (.+) FROM diagnostic_results ORDER BY created_at DESC LIMIT \\$1").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "diagnostic_type", "product_name", "category", "description", "payload", "created_at"}))

	_, err := st.ListDiagnostics(context.Background(), HistoryFilter{Limit: 9000})
	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresSaveDocument(t *testing.T) {
	st, mockPool := newMockStore(t)

	mockPool.ExpectExec("INSERT INTO documents").
		WithArgs("doc-1", "u-1", "diag-1", "doc", "Title", "Body", pgxmock.AnyArg(), "draft", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.SaveDocument(context.Background(), model.GeneratedDocument{
		ID:           "doc-1",
		UserID:       "u-1",
		DiagnosticID: "diag-1",
		DocumentType: "doc",
		Title:        "Title",
		Content:      "Body",
		Sections:     []model.DocumentSection{{Heading: "H", Body: "B"}},
	})
	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresListDocuments(t *testing.T) {
	st, mockPool := newMockStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "user_id", "diagnostic_id", "document_type", "title", "content", "sections", "status", "created_at"}).
		AddRow("doc-1", "u-1", "", "doc", "Title", "Body", []byte(`[{"heading":"H","body":"B"}]`), "draft", now)

	mockPool.ExpectQuery("SELECT (.+) FROM documents WHERE user_id = \\$1").
		WithArgs("u-1", 50).
		WillReturnRows(rows)

	docs, err := st.ListDocuments(context.Background(), "u-1", 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Title", docs[0].Title)
	require.Len(t, docs[0].Sections, 1)
	assert.Equal(t, "H", docs[0].Sections[0].Heading)
}

func TestPostgresGetProfile(t *testing.T) {
	st, mockPool := newMockStore(t)
	now := time.Now().UTC()

	mockPool.ExpectQuery("SELECT id, email, role, tier, created_at FROM profiles").
		WithArgs("u-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "role", "tier", "created_at"}).
			AddRow("u-1", "u@example.com", "admin", "pro", now))

	p, err := st.GetProfile(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, p.Role)
	assert.Equal(t, model.TierPro, p.Tier)
}

func TestPostgresSetRole(t *testing.T) {
	st, mockPool := newMockStore(t)

	mockPool.ExpectExec("UPDATE profiles SET role").
		WithArgs("admin", "u-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.SetRole(context.Background(), "u-1", model.RoleAdmin))

	mockPool.ExpectExec("UPDATE profiles SET role").
		WithArgs("admin", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.Error(t, st.SetRole(context.Background(), "missing", model.RoleAdmin), "zero rows affected")
}

func TestPostgresSetTier(t *testing.T) {
	st, mockPool := newMockStore(t)

	mockPool.ExpectExec("UPDATE profiles SET tier").
		WithArgs("pro", "u-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.SetTier(context.Background(), "u-1", model.TierPro))
}
