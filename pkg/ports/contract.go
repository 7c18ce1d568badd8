package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTranscriptStoreContract runs a suite of tests to verify that a TranscriptStore
// implementation adheres to the defined interface contract.
func RunTranscriptStoreContract(t *testing.T, store TranscriptStore) {
	ctx := context.Background()
	runID := "contract-run-" + time.Now().Format("20060102150405")

	log := domain.NewMessageLog(
		domain.NewUserMessage("Research X"),
		domain.NewStageOutput("", domain.ToolCallRequest{ID: "c1", Name: "search", Arguments: map[string]any{"query": "X"}}),
		domain.NewToolResult(domain.ToolCallRequest{ID: "c1", Name: "search"}, "result-1"),
	)

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, runID, log), "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, log.Messages(), loaded.Messages())
	})

	t.Run("Save Replaces", func(t *testing.T) {
		longer := log.Append(domain.NewStageOutput("done"))
		require.NoError(t, store.Save(ctx, runID, longer))

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, longer.Len(), loaded.Len())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("List", func(t *testing.T) {
		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, runID)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, runID))

		_, err := store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, ids, runID)
	})
}
