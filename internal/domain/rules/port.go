package rules

import "context"

// Source port (read-only rule provider per domain)
type Source interface {
	LoadRules(ctx context.Context, domain string, files []string) ([]Rule, error)
}
