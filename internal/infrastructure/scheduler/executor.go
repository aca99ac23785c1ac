package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/tesis/backend/internal/infrastructure/storage"
)

// StaleGenerationResetter fails theses stuck in GENERATING
type StaleGenerationResetter interface {
	ResetStaleGenerations(ctx context.Context) (int, error)
}

// MaintenanceExecutor runs the maintenance job kinds
type MaintenanceExecutor struct {
	generations StaleGenerationResetter
	exports     storage.Cleaner
	retention   time.Duration
}

// NewMaintenanceExecutor creates an executor. exports may be nil, or
// retention zero, to disable export cleanup.
func NewMaintenanceExecutor(generations StaleGenerationResetter, exports storage.Cleaner, retention time.Duration) *MaintenanceExecutor {
	return &MaintenanceExecutor{
		generations: generations,
		exports:     exports,
		retention:   retention,
	}
}

// Kinds returns the job kinds this executor has work for
func (e *MaintenanceExecutor) Kinds() []JobKind {
	var kinds []JobKind
	if e.generations != nil {
		kinds = append(kinds, JobKindStaleGenerations)
	}
	if e.exports != nil && e.retention > 0 {
		kinds = append(kinds, JobKindExportCleanup)
	}
	return kinds
}

// Execute implements JobExecutor
func (e *MaintenanceExecutor) Execute(ctx context.Context, job *Job) (int, error) {
	switch job.Kind {
	case JobKindStaleGenerations:
		if e.generations == nil {
			return 0, nil
		}
		return e.generations.ResetStaleGenerations(ctx)
	case JobKindExportCleanup:
		if e.exports == nil || e.retention <= 0 {
			return 0, nil
		}
		return e.exports.CleanupOlderThan(ctx, e.retention)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownJobKind, job.Kind)
	}
}

var _ JobExecutor = (*MaintenanceExecutor)(nil)
