package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	domain "github.com/bryanwahyu/game-advisor/internal/domain/analysis"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Save inserts a finished run record
func (r *AnalysisRepository) Save(ctx context.Context, rec *domain.Record) error {
	const q = `
INSERT INTO advisor_analyses
  (id, tenant_id, domain, question, result_json, artifact_url, provider, created_at)
VALUES (?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  tenant_id=VALUES(tenant_id), domain=VALUES(domain), question=VALUES(question),
  result_json=VALUES(result_json), artifact_url=VALUES(artifact_url), provider=VALUES(provider);
`
	// Ensure non-nullable fields have safe defaults
	tenant := stringOrDash(rec.TenantID)
	gameDomain := stringOrDash(rec.Domain)
	result := rec.ResultJSON
	if strings.TrimSpace(result) == "" {
		// result_json column requires valid JSON; use empty object
		result = "{}"
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, q, rec.ID, tenant, gameDomain, rec.Question, result, rec.ArtifactURL, rec.Provider, createdAt)
	return err
}

// Paginate returns a page of run records ordered by created_at desc
func (r *AnalysisRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.Record, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT id, tenant_id, domain, question, result_json, artifact_url, provider, created_at
FROM advisor_analyses
WHERE tenant_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Latest returns the most recent run for a tenant, nil when none exists
func (r *AnalysisRepository) Latest(ctx context.Context, tenant string) (*domain.Record, error) {
	const q = `
SELECT id, tenant_id, domain, question, result_json, artifact_url, provider, created_at
FROM advisor_analyses
WHERE tenant_id=?
ORDER BY created_at DESC, id DESC
LIMIT 1;`
	row := r.db.QueryRowContext(ctx, q, tenant)
	rec, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var rec domain.Record
	var created time.Time
	var artifact sql.NullString
	if err := row.Scan(&rec.ID, &rec.TenantID, &rec.Domain, &rec.Question, &rec.ResultJSON, &artifact, &rec.Provider, &created); err != nil {
		return nil, err
	}
	rec.ArtifactURL = artifact.String
	rec.CreatedAt = created
	return &rec, nil
}
