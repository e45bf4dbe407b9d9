package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/certi-mate/compliance-api/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local
// development and the CLI when no Postgres is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given DSN and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS profiles (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL DEFAULT 'user',
	tier       TEXT NOT NULL DEFAULT 'free',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS diagnostic_results (
	id              TEXT PRIMARY KEY,
	user_id         TEXT,
	diagnostic_type TEXT NOT NULL,
	product_name    TEXT NOT NULL,
	category        TEXT NOT NULL DEFAULT '',
	description     TEXT NOT NULL DEFAULT '',
	payload         TEXT NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	user_id       TEXT,
	diagnostic_id TEXT,
	document_type TEXT NOT NULL DEFAULT '',
	title         TEXT NOT NULL,
	content       TEXT NOT NULL,
	sections      TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'draft',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_diagnostic_results_created_at ON diagnostic_results(created_at);
CREATE INDEX IF NOT EXISTS idx_diagnostic_results_user_id ON diagnostic_results(user_id);
CREATE INDEX IF NOT EXISTS idx_documents_user_id ON documents(user_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AppendDiagnostic(ctx context.Context, rec model.HistoryRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return &model.PersistenceError{Op: "append diagnostic", Err: err}
	}

	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO diagnostic_results (id, user_id, diagnostic_type, product_name, category, description, payload, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.UserID, string(rec.Type), rec.ProductName, rec.Category, rec.Description, string(payload), createdAt,
	)
	if err != nil {
		return sqlitePersistenceError("append diagnostic", err)
	}
	return nil
}

func (s *SQLiteStore) ListDiagnostics(ctx context.Context, filter HistoryFilter) ([]model.HistoryRecord, error) {
	query := `SELECT id, COALESCE(user_id, ''), diagnostic_type, product_name, category, description, payload, created_at FROM diagnostic_results`
	var conds []string
	var args []any
	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Type != "" {
		conds = append(conds, "diagnostic_type = ?")
		args = append(args, string(filter.Type))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqlitePersistenceError("list diagnostics", err)
	}
	defer rows.Close()

	var records []model.HistoryRecord
	for rows.Next() {
		var rec model.HistoryRecord
		var typ, payload string
		if err := rows.Scan(&rec.ID, &rec.UserID, &typ, &rec.ProductName, &rec.Category, &rec.Description, &payload, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan diagnostic row")
		}
		rec.Type = model.DiagnosticType(typ)
		if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: decode diagnostic payload")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlitePersistenceError("list diagnostics", err)
	}
	return records, nil
}

func (s *SQLiteStore) SaveDocument(ctx context.Context, doc model.GeneratedDocument) error {
	sections, err := json.Marshal(doc.Sections)
	if err != nil {
		return &model.PersistenceError{Op: "save document", Err: err}
	}

	id := doc.ID
	if id == "" {
		id = uuid.NewString()
	}
	status := doc.Status
	if status == "" {
		status = model.DocumentStatusDraft
	}
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, user_id, diagnostic_id, document_type, title, content, sections, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, doc.UserID, doc.DiagnosticID, doc.DocumentType, doc.Title, doc.Content, string(sections), status, createdAt,
	)
	if err != nil {
		return sqlitePersistenceError("save document", err)
	}
	return nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context, userID string, limit int) ([]model.GeneratedDocument, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, COALESCE(user_id, ''), COALESCE(diagnostic_id, ''), document_type, title, content, sections, status, created_at FROM documents WHERE user_id = ? ORDER BY created_at DESC LIMIT %d`, limit),
		userID,
	)
	if err != nil {
		return nil, sqlitePersistenceError("list documents", err)
	}
	defer rows.Close()

	var docs []model.GeneratedDocument
	for rows.Next() {
		var doc model.GeneratedDocument
		var sections string
		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.DiagnosticID, &doc.DocumentType, &doc.Title, &doc.Content, &sections, &doc.Status, &doc.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document row")
		}
		if err := json.Unmarshal([]byte(sections), &doc.Sections); err != nil {
			return nil, eris.Wrap(err, "sqlite: decode document sections")
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlitePersistenceError("list documents", err)
	}
	return docs, nil
}

func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	var p model.UserProfile
	var role, tier string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, role, tier, created_at FROM profiles WHERE id = ?`,
		userID,
	).Scan(&p.ID, &p.Email, &role, &tier, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(err, "sqlite: get profile %s", userID)
		}
		return nil, sqlitePersistenceError("get profile", err)
	}
	p.Role = model.Role(role)
	p.Tier = model.Tier(tier)
	return &p, nil
}

func (s *SQLiteStore) SetRole(ctx context.Context, userID string, role model.Role) error {
	res, err := s.db.ExecContext(ctx, `UPDATE profiles SET role = ? WHERE id = ?`, string(role), userID)
	if err != nil {
		return sqlitePersistenceError("set role", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: set role: profile %s not found", userID)
	}
	return nil
}

func (s *SQLiteStore) SetTier(ctx context.Context, userID string, tier model.Tier) error {
	res, err := s.db.ExecContext(ctx, `UPDATE profiles SET tier = ? WHERE id = ?`, string(tier), userID)
	if err != nil {
		return sqlitePersistenceError("set tier", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: set tier: profile %s not found", userID)
	}
	return nil
}

func sqlitePersistenceError(op string, err error) error {
	missing := strings.Contains(err.Error(), "no such table")
	return &model.PersistenceError{Op: op, MissingTable: missing, Err: err}
}
