// Package storage defines the persistence interface for matching jobs and
// their results.
package storage

import (
	"context"

	"github.com/mzmatch/mzmatch/internal/models"
)

// Store defines job and result persistence operations.
type Store interface {
	// Job operations
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	UpdateJob(ctx context.Context, id, status string, progress float64, message string) error
	ListJobs(ctx context.Context, offset, limit int) ([]*models.Job, error)
	DeleteJob(ctx context.Context, id string) error

	// Result operations. Results are stored as one JSON document per job.
	SaveResult(ctx context.Context, jobID string, result []byte) error
	GetResult(ctx context.Context, jobID string) ([]byte, error)

	// Stats
	CountJobs(ctx context.Context) (int64, error)

	Close() error
}
