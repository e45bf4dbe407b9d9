package diagnostic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/certi-mate/compliance-api/internal/model"
	"github.com/certi-mate/compliance-api/internal/prompt"
	"github.com/certi-mate/compliance-api/internal/schema"
	"github.com/certi-mate/compliance-api/internal/store"
	"github.com/certi-mate/compliance-api/pkg/anthropic"
)

// stubCompleter counts calls and returns a fixed payload or error.
type stubCompleter struct {
	payload map[string]any
	err     error
	calls   int
}

func (s *stubCompleter) Complete(ctx context.Context, p prompt.Prompt, entry *schema.Entry) (map[string]any, *anthropic.TokenUsage, error) {
	s.calls++
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.payload, &anthropic.TokenUsage{InputTokens: 10, OutputTokens: 5}, nil
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) AppendDiagnostic(ctx context.Context, rec model.HistoryRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockStore) ListDiagnostics(ctx context.Context, filter store.HistoryFilter) ([]model.HistoryRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.HistoryRecord), args.Error(1)
}

func (m *mockStore) SaveDocument(ctx context.Context, doc model.GeneratedDocument) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *mockStore) ListDocuments(ctx context.Context, userID string, limit int) ([]model.GeneratedDocument, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.GeneratedDocument), args.Error(1)
}

func (m *mockStore) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserProfile), args.Error(1)
}

func (m *mockStore) SetRole(ctx context.Context, userID string, role model.Role) error {
	return m.Called(ctx, userID, role).Error(0)
}

func (m *mockStore) SetTier(ctx context.Context, userID string, tier model.Tier) error {
	return m.Called(ctx, userID, tier).Error(0)
}

func (m *mockStore) Migrate(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockStore) Close() error                      { return m.Called().Error(0) }

func testBuilder(t *testing.T) *prompt.Builder {
	t.Helper()
	b, err := prompt.New(schema.MustLoad(), "en")
	require.NoError(t, err)
	return b
}

func labelingInput() model.ProductInput {
	return model.ProductInput{
		ProductName: "LED desk lamp",
		Category:    "lighting",
		Description: "A dimmable desk lamp with USB charging.",
	}
}

func labelingPayload() map[string]any {
	return map[string]any{
		"summary": "Two mandatory labels apply.",
		"required_labels": []any{
			map[string]any{"name": "KC mark", "mandatory": true},
		},
		"warnings":         []any{"Do not cover while powered."},
		"compliance_notes": "Label must survive abrasion testing.",
	}
}

func TestRunSuccessPersists(t *testing.T) {
	gw := &stubCompleter{payload: labelingPayload()}
	st := &mockStore{}
	st.On("AppendDiagnostic", mock.Anything, mock.MatchedBy(func(rec model.HistoryRecord) bool {
		return rec.UserID == "u-1" &&
			rec.Type == model.DiagnosticLabeling &&
			rec.ProductName == "LED desk lamp" &&
			rec.ID != ""
	})).Return(nil).Once()

	o := New(testBuilder(t), gw, st)
	result, err := o.Run(context.Background(), model.DiagnosticLabeling, labelingInput(), model.Caller{UserID: "u-1"})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, model.DiagnosticLabeling, result.Type)
	assert.Equal(t, "Two mandatory labels apply.", result.Summary())
	assert.Equal(t, 1, gw.calls)
	st.AssertExpectations(t)
}

func TestRunRejectsBeforeGateway(t *testing.T) {
	gw := &stubCompleter{payload: labelingPayload()}
	st := &mockStore{}

	o := New(testBuilder(t), gw, st)
	_, err := o.Run(context.Background(), model.DiagnosticLabeling, model.ProductInput{ProductName: "lamp"}, model.Caller{})
	require.Error(t, err)

	var invalid *model.InvalidInputError
	assert.True(t, errors.As(err, &invalid))
	assert.Equal(t, 0, gw.calls, "rejected input must not reach the gateway")
	st.AssertNotCalled(t, "AppendDiagnostic", mock.Anything, mock.Anything)
}

func TestRunGatewayFailureNotPersisted(t *testing.T) {
	gw := &stubCompleter{err: &model.GatewayError{Stage: "call", Err: errors.New("timeout")}}
	st := &mockStore{}

	o := New(testBuilder(t), gw, st)
	_, err := o.Run(context.Background(), model.DiagnosticLabeling, labelingInput(), model.Caller{})
	require.Error(t, err)

	var gwErr *model.GatewayError
	assert.True(t, errors.As(err, &gwErr))
	st.AssertNotCalled(t, "AppendDiagnostic", mock.Anything, mock.Anything)
}

func TestRunStoreFailureInvisibleToCaller(t *testing.T) {
	gw := &stubCompleter{payload: labelingPayload()}

	tests := []struct {
		name string
		err  error
	}{
		{"generic failure", &model.PersistenceError{Op: "append diagnostic", Err: errors.New("connection refused")}},
		{"missing table", &model.PersistenceError{Op: "append diagnostic", MissingTable: true, Err: errors.New("undefined table")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &mockStore{}
			st.On("AppendDiagnostic", mock.Anything, mock.Anything).Return(tt.err).Once()

			o := New(testBuilder(t), gw, st)
			result, err := o.Run(context.Background(), model.DiagnosticLabeling, labelingInput(), model.Caller{UserID: "u-1"})
			require.NoError(t, err, "store failure must never fail the diagnostic")
			assert.Equal(t, "Two mandatory labels apply.", result.Summary())
			st.AssertExpectations(t)
		})
	}
}

func TestRunNilStore(t *testing.T) {
	gw := &stubCompleter{payload: labelingPayload()}
	o := New(testBuilder(t), gw, nil)

	result, err := o.Run(context.Background(), model.DiagnosticLabeling, labelingInput(), model.Caller{})
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestRunRecomputesRiskScores(t *testing.T) {
	payload := map[string]any{
		"overall_risk_level": "Medium",
		"hazard_analysis": []any{
			map[string]any{
				"hazard_item":         "hot surface",
				"potential_risk":      "burn",
				"frequency":           float64(3),
				"severity":            float64(4),
				"risk_score":          float64(7), // model arithmetic is wrong on purpose
				"mitigation_strategy": "thermal shielding",
			},
			map[string]any{
				"hazard_item":         "sharp edge",
				"potential_risk":      "laceration",
				"frequency":           float64(2),
				"severity":            float64(2),
				"risk_score":          float64(4),
				"mitigation_strategy": "round the edges",
			},
		},
		"applicable_standards":  []any{"ISO 12100"},
		"certification_roadmap": []any{"self-assessment"},
	}

	gw := &stubCompleter{payload: payload}
	o := New(testBuilder(t), gw, nil)

	result, err := o.Run(context.Background(), model.DiagnosticRisk, labelingInput(), model.Caller{})
	require.NoError(t, err)

	hazards := result.Payload["hazard_analysis"].([]any)
	first := hazards[0].(map[string]any)
	second := hazards[1].(map[string]any)
	assert.Equal(t, float64(12), first["risk_score"], "recomputed value wins")
	assert.Equal(t, float64(4), second["risk_score"], "consistent value untouched")
}

func TestGenerateDocument(t *testing.T) {
	payload := map[string]any{
		"title":   "Declaration of Conformity",
		"content": "We declare that the product conforms.",
		"sections": []any{
			map[string]any{"heading": "Scope", "body": "Covers the LED desk lamp."},
		},
	}
	gw := &stubCompleter{payload: payload}
	st := &mockStore{}
	st.On("SaveDocument", mock.Anything, mock.MatchedBy(func(doc model.GeneratedDocument) bool {
		return doc.UserID == "u-1" &&
			doc.DiagnosticID == "diag-9" &&
			doc.DocumentType == "declaration of conformity" &&
			doc.Status == model.DocumentStatusDraft &&
			doc.ID != ""
	})).Return(nil).Once()

	input := labelingInput()
	input.DocumentType = "declaration of conformity"
	input.DiagnosticID = "diag-9"

	o := New(testBuilder(t), gw, st)
	doc, err := o.GenerateDocument(context.Background(), input, model.Caller{UserID: "u-1"})
	require.NoError(t, err)

	assert.Equal(t, "Declaration of Conformity", doc.Title)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "Scope", doc.Sections[0].Heading)
	st.AssertExpectations(t)
}

func TestGenerateDocumentRequiresType(t *testing.T) {
	gw := &stubCompleter{}
	o := New(testBuilder(t), gw, nil)

	_, err := o.GenerateDocument(context.Background(), labelingInput(), model.Caller{})
	require.Error(t, err)

	var invalid *model.InvalidInputError
	require.True(t, errors.As(err, &invalid))
	assert.Contains(t, invalid.Fields, "documentType")
	assert.Equal(t, 0, gw.calls)
}

func TestGenerateDocumentSaveFailureInvisible(t *testing.T) {
	payload := map[string]any{
		"title":    "Test Report Request",
		"content":  "body",
		"sections": []any{map[string]any{"heading": "H", "body": "B"}},
	}
	gw := &stubCompleter{payload: payload}
	st := &mockStore{}
	st.On("SaveDocument", mock.Anything, mock.Anything).
		Return(&model.PersistenceError{Op: "save document", Err: errors.New("disk full")}).Once()

	input := labelingInput()
	input.DocumentType = "test report request"

	o := New(testBuilder(t), gw, st)
	doc, err := o.GenerateDocument(context.Background(), input, model.Caller{})
	require.NoError(t, err)
	assert.Equal(t, "Test Report Request", doc.Title)
}
