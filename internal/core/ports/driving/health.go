package driving

import (
	"context"

	"github.com/custodia-labs/context-search/internal/core/domain"
)

// HealthService probes every backend.
type HealthService interface {
	Check(ctx context.Context) domain.Health
}
