package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/certi-mate/compliance-api/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock's pool
// interface satisfies it, which keeps the store unit-testable.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// undefinedTableCode is the PostgreSQL error code for a missing relation.
const undefinedTableCode = "42P01"

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, maxConns, minConns int32) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	if maxConns <= 0 {
		maxConns = 10
	}
	if minConns <= 0 {
		minConns = 2
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS profiles (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL DEFAULT 'user',
	tier       TEXT NOT NULL DEFAULT 'free',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS diagnostic_results (
	id              TEXT PRIMARY KEY,
	user_id         TEXT,
	diagnostic_type TEXT NOT NULL,
	product_name    TEXT NOT NULL,
	category        TEXT NOT NULL DEFAULT '',
	description     TEXT NOT NULL DEFAULT '',
	payload         JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS documents (
	id            TEXT PRIMARY KEY,
	user_id       TEXT,
	diagnostic_id TEXT,
	document_type TEXT NOT NULL DEFAULT '',
	title         TEXT NOT NULL,
	content       TEXT NOT NULL,
	sections      JSONB NOT NULL,
	status        TEXT NOT NULL DEFAULT 'draft',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_diagnostic_results_created_at ON diagnostic_results(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_diagnostic_results_user_id ON diagnostic_results(user_id);
CREATE INDEX IF NOT EXISTS idx_documents_user_id ON documents(user_id);
`

// Migrate creates the tables if they do not exist. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// AppendDiagnostic inserts one history record. A missing table is reported
// as a recognizable PersistenceError so callers can absorb it quietly.
func (s *PostgresStore) AppendDiagnostic(ctx context.Context, rec model.HistoryRecord) error {
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

	_, err = s.pool.Exec(ctx,
		`INSERT INTO diagnostic_results (id, user_id, diagnostic_type, product_name, category, description, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, nullable(rec.UserID), string(rec.Type), rec.ProductName, rec.Category, rec.Description, payload, createdAt,
	)
	if err != nil {
		return s.persistenceError("append diagnostic", err)
	}
	return nil
}

// ListDiagnostics returns history records newest first, capped by the filter
// limit (DefaultHistoryLimit when unset).
func (s *PostgresStore) ListDiagnostics(ctx context.Context, filter HistoryFilter) ([]model.HistoryRecord, error) {
	query := `SELECT id, COALESCE(user_id, ''), diagnostic_type, product_name, category, description, payload, created_at FROM diagnostic_results`
	var conds []string
	var args []any
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		conds = append(conds, fmt.Sprintf("diagnostic_type = $%d", len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	limit := filter.Limit
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, s.persistenceError("list diagnostics", err)
	}
	defer rows.Close()

	var records []model.HistoryRecord
	for rows.Next() {
		var rec model.HistoryRecord
		var typ string
		var payload []byte
		if err := rows.Scan(&rec.ID, &rec.UserID, &typ, &rec.ProductName, &rec.Category, &rec.Description, &payload, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan diagnostic row")
		}
		rec.Type = model.DiagnosticType(typ)
		if err := json.Unmarshal(payload, &rec.Payload); err != nil {
			return nil, eris.Wrap(err, "postgres: decode diagnostic payload")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, s.persistenceError("list diagnostics", err)
	}
	return records, nil
}

// SaveDocument inserts one generated document with status draft.
func (s *PostgresStore) SaveDocument(ctx context.Context, doc model.GeneratedDocument) error {
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

	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (id, user_id, diagnostic_id, document_type, title, content, sections, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, nullable(doc.UserID), nullable(doc.DiagnosticID), doc.DocumentType, doc.Title, doc.Content, sections, status, createdAt,
	)
	if err != nil {
		return s.persistenceError("save document", err)
	}
	return nil
}

// ListDocuments returns a user's generated documents newest first.
func (s *PostgresStore) ListDocuments(ctx context.Context, userID string, limit int) ([]model.GeneratedDocument, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, COALESCE(user_id, ''), COALESCE(diagnostic_id, ''), document_type, title, content, sections, status, created_at FROM documents WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, s.persistenceError("list documents", err)
	}
	defer rows.Close()

	var docs []model.GeneratedDocument
	for rows.Next() {
		var doc model.GeneratedDocument
		var sections []byte
		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.DiagnosticID, &doc.DocumentType, &doc.Title, &doc.Content, &sections, &doc.Status, &doc.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan document row")
		}
		if err := json.Unmarshal(sections, &doc.Sections); err != nil {
			return nil, eris.Wrap(err, "postgres: decode document sections")
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, s.persistenceError("list documents", err)
	}
	return docs, nil
}

// GetProfile reads one user profile.
func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	var p model.UserProfile
	var role, tier string
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, role, tier, created_at FROM profiles WHERE id = $1`,
		userID,
	).Scan(&p.ID, &p.Email, &role, &tier, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(err, "postgres: get profile %s", userID)
		}
		return nil, s.persistenceError("get profile", err)
	}
	p.Role = model.Role(role)
	p.Tier = model.Tier(tier)
	return &p, nil
}

// SetRole updates a profile's role. Last write wins; there is no optimistic
// concurrency token on profile rows.
func (s *PostgresStore) SetRole(ctx context.Context, userID string, role model.Role) error {
	tag, err := s.pool.Exec(ctx, `UPDATE profiles SET role = $1 WHERE id = $2`, string(role), userID)
	if err != nil {
		return s.persistenceError("set role", err)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: set role: profile %s not found", userID)
	}
	return nil
}

// SetTier updates a profile's subscription tier.
func (s *PostgresStore) SetTier(ctx context.Context, userID string, tier model.Tier) error {
	tag, err := s.pool.Exec(ctx, `UPDATE profiles SET tier = $1 WHERE id = $2`, string(tier), userID)
	if err != nil {
		return s.persistenceError("set tier", err)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: set tier: profile %s not found", userID)
	}
	return nil
}

func (s *PostgresStore) persistenceError(op string, err error) error {
	var pgErr *pgconn.PgError
	missing := errors.As(err, &pgErr) && pgErr.Code == undefinedTableCode
	return &model.PersistenceError{Op: op, MissingTable: missing, Err: err}
}

// nullable maps empty strings to NULL so foreign-key-ish columns stay clean.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
