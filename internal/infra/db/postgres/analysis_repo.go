package postgres

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

// Save inserts or updates a finished run record
func (r *AnalysisRepository) Save(ctx context.Context, rec *domain.Record) error {
	const q = `
INSERT INTO advisor_analyses
  (id, tenant_id, domain, question, result_json, artifact_url, provider, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  tenant_id=EXCLUDED.tenant_id,
  domain=EXCLUDED.domain,
  question=EXCLUDED.question,
  result_json=EXCLUDED.result_json,
  artifact_url=EXCLUDED.artifact_url,
  provider=EXCLUDED.provider;
`
	tenant := stringOrDash(rec.TenantID)
	gameDomain := stringOrDash(rec.Domain)
	result := rec.ResultJSON
	if strings.TrimSpace(result) == "" {
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
WHERE tenant_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		var rec domain.Record
		var created time.Time
		var artifact sql.NullString
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.Domain, &rec.Question, &rec.ResultJSON, &artifact, &rec.Provider, &created); err != nil {
			return nil, err
		}
		rec.ArtifactURL = artifact.String
		rec.CreatedAt = created
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Latest returns the most recent run for a tenant
func (r *AnalysisRepository) Latest(ctx context.Context, tenant string) (*domain.Record, error) {
	const q = `
SELECT id, tenant_id, domain, question, result_json, artifact_url, provider, created_at
FROM advisor_analyses
WHERE tenant_id=$1
ORDER BY created_at DESC, id DESC
LIMIT 1;`
	row := r.db.QueryRowContext(ctx, q, tenant)
	var rec domain.Record
	var created time.Time
	var artifact sql.NullString
	if err := row.Scan(&rec.ID, &rec.TenantID, &rec.Domain, &rec.Question, &rec.ResultJSON, &artifact, &rec.Provider, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	rec.ArtifactURL = artifact.String
	rec.CreatedAt = created
	return &rec, nil
}

func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
