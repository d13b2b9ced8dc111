package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	domain "github.com/bryanwahyu/game-advisor/internal/domain/analysis"
)

type RunErrorRepository struct {
	db *sql.DB
}

func NewRunErrorRepository(db *sql.DB) *RunErrorRepository { return &RunErrorRepository{db: db} }

// Save logs one failed run stage
func (r *RunErrorRepository) Save(ctx context.Context, tenant string, runID domain.RunID, stage, message string) error {
	const q = `
INSERT INTO advisor_run_errors
  (tenant_id, run_id, stage, message, created_at)
VALUES ($1,$2,$3,$4,$5)
`
	msg := message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	_, err := r.db.ExecContext(ctx, q, stringOrDash(tenant), stringOrDash(string(runID)), stringOrDash(stage), msg, time.Now())
	return err
}
