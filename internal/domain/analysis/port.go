package analysis

import (
	"context"
	"time"
)

// Record is a stored run result, kept for auditing and retrieval.
type Record struct {
	ID          RunID     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Domain      string    `json:"domain"`
	Question    string    `json:"question"`
	ResultJSON  string    `json:"result"` // marshalled Recommendation
	ArtifactURL string    `json:"artifact_url,omitempty"`
	Provider    string    `json:"provider"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository port for persisting and querying finished runs
type Repository interface {
	Save(ctx context.Context, rec *Record) error
	Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*Record, error)
	Latest(ctx context.Context, tenant string) (*Record, error)
}

// RunErrorRepository port untuk log kegagalan run
type RunErrorRepository interface {
	Save(ctx context.Context, tenant string, runID RunID, stage, message string) error
}

// ArtifactStore port for raw-output traceability uploads
type ArtifactStore interface {
	UploadBytes(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
