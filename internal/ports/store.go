package ports

import (
	"context"

	"actionrunner/internal/domain"
)

// StatusStore mirrors job outcomes into the external store.
type StatusStore interface {
	SetStatus(ctx context.Context, correlationID string, status domain.JobStatus) error
}
