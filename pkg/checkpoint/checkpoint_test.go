package checkpoint

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronofact/chronofact/pkg/types"
)

func TestManager(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "chronofact-checkpoint-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	ctx := context.Background()

	t.Run("save and load roundtrip", func(t *testing.T) {
		manager, err := NewManager(tmpDir)
		require.NoError(t, err)

		cp := &BatchCheckpoint{
			BatchID:   "batch-123",
			Step:      StepIngesting,
			CreatedAt: time.Now().UTC(),
			Drafts: []types.DraftFact{
				{Text: "Alice works at Acme", ValidAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
				{Text: "Alice lives in Berlin", ValidAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
			},
			NextIndex: 1,
			FactIDs:   []string{"fact-1", ""},
		}
		require.NoError(t, manager.Save(ctx, cp))

		loaded, err := manager.Load(ctx, "batch-123")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, cp.BatchID, loaded.BatchID)
		assert.Equal(t, StepIngesting, loaded.Step)
		assert.Equal(t, 1, loaded.NextIndex)
		assert.Len(t, loaded.Drafts, 2)
		assert.Equal(t, []string{"fact-1", ""}, loaded.FactIDs)
		assert.False(t, loaded.LastUpdatedAt.IsZero())
	})

	t.Run("load missing checkpoint returns nil", func(t *testing.T) {
		manager, err := NewManager(tmpDir)
		require.NoError(t, err)

		loaded, err := manager.Load(ctx, "never-saved")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("exists and delete", func(t *testing.T) {
		manager, err := NewManager(tmpDir)
		require.NoError(t, err)

		cp := &BatchCheckpoint{BatchID: "batch-gone", Step: StepPending}
		require.NoError(t, manager.Save(ctx, cp))

		ok, err := manager.Exists(ctx, "batch-gone")
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, manager.Delete(ctx, "batch-gone"))
		ok, err = manager.Exists(ctx, "batch-gone")
		require.NoError(t, err)
		assert.False(t, ok)

		// Deleting again is a no-op.
		require.NoError(t, manager.Delete(ctx, "batch-gone"))
	})

	t.Run("record error bumps attempt count", func(t *testing.T) {
		manager, err := NewManager(tmpDir)
		require.NoError(t, err)

		cp := &BatchCheckpoint{BatchID: "batch-err", Step: StepIngesting}
		require.NoError(t, manager.Save(ctx, cp))

		require.NoError(t, manager.RecordError(ctx, "batch-err", errors.New("store unavailable")))
		require.NoError(t, manager.RecordError(ctx, "batch-err", errors.New("store unavailable")))

		loaded, err := manager.Load(ctx, "batch-err")
		require.NoError(t, err)
		assert.Equal(t, StepFailed, loaded.Step)
		assert.Equal(t, 2, loaded.AttemptCount)
		assert.Equal(t, "store unavailable", loaded.LastError)
	})

	t.Run("list skips malformed files", func(t *testing.T) {
		dir, err := os.MkdirTemp("", "chronofact-checkpoint-list-*")
		require.NoError(t, err)
		defer os.RemoveAll(dir)

		manager, err := NewManager(dir)
		require.NoError(t, err)
		require.NoError(t, manager.Save(ctx, &BatchCheckpoint{BatchID: "a", Step: StepPending}))
		require.NoError(t, manager.Save(ctx, &BatchCheckpoint{BatchID: "b", Step: StepCompleted}))
		require.NoError(t, os.WriteFile(dir+"/checkpoint_broken.json", []byte("{not json"), 0644))

		checkpoints, err := manager.List(ctx)
		require.NoError(t, err)
		assert.Len(t, checkpoints, 2)
	})
}

func TestBatchIDValidation(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "chronofact-checkpoint-val-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	manager, err := NewManager(tmpDir)
	require.NoError(t, err)

	for _, id := range []string{"", "../escape", "a/b", `a\b`, "nul\x00byte"} {
		_, err := manager.Path(id)
		assert.ErrorIs(t, err, ErrInvalidBatchID, "id %q", id)
	}

	path, err := manager.Path("batch-2024-05")
	require.NoError(t, err)
	assert.Contains(t, path, "checkpoint_batch-2024-05.json")
}
