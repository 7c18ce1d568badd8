package ports

import (
	"context"

	"github.com/aretw0/quill/pkg/domain"
)

// TranscriptStore persists MessageLog snapshots keyed by run ID.
// It sits outside the engine: hosts record snapshots while consuming a stream.
type TranscriptStore interface {
	// Save stores (or replaces) the transcript of a run.
	Save(ctx context.Context, runID string, log domain.MessageLog) error

	// Load retrieves a transcript.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (domain.MessageLog, error)

	// Delete removes a transcript.
	Delete(ctx context.Context, runID string) error

	// List returns the IDs of stored runs.
	List(ctx context.Context) ([]string, error)
}
