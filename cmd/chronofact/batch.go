package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chronofact/chronofact/pkg/checkpoint"
	"github.com/chronofact/chronofact/pkg/config"
	"github.com/chronofact/chronofact/pkg/pipeline"
	"github.com/chronofact/chronofact/pkg/types"
)

// chunkSize is the number of drafts ingested between checkpoint saves.
const chunkSize = 16

var batchCmd = &cobra.Command{
	Use:   "batch <drafts.json>",
	Short: "Ingest a batch of draft facts from a JSON file",
	Long: `Ingest draft facts from a JSON file through the concurrent pipeline.

The file holds a JSON array of draft facts. Progress is checkpointed
between chunks, so an interrupted run resumes from the last completed
chunk when re-invoked with the same batch ID.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

var (
	batchID        string
	checkpointDir  string
	keepCheckpoint bool
)

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&batchID, "batch-id", "", "Batch ID for checkpointing (default derived from file name)")
	batchCmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "Checkpoint directory (default under the system temp dir)")
	batchCmd.Flags().BoolVar(&keepCheckpoint, "keep-checkpoint", false, "Keep the checkpoint file after a successful run")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	draftsPath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine, logger, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	manager, err := checkpoint.NewManager(checkpointDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint manager: %w", err)
	}

	id := batchID
	if id == "" {
		base := filepath.Base(draftsPath)
		id = strings.TrimSuffix(base, filepath.Ext(base))
	}

	cp, err := manager.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp == nil {
		drafts, err := readDrafts(draftsPath)
		if err != nil {
			return err
		}
		cp = &checkpoint.BatchCheckpoint{
			BatchID:   id,
			Step:      checkpoint.StepPending,
			CreatedAt: time.Now().UTC(),
			Drafts:    drafts,
			FactIDs:   make([]string, len(drafts)),
		}
	} else {
		logger.Info("resuming batch from checkpoint",
			"batch_id", id,
			"next_index", cp.NextIndex,
			"total", len(cp.Drafts))
	}

	if cp.NextIndex >= len(cp.Drafts) {
		fmt.Println("Batch already completed")
		return nil
	}

	cp.Step = checkpoint.StepIngesting
	if err := manager.Save(ctx, cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	start := time.Now()
	var results []pipeline.Result
	for cp.NextIndex < len(cp.Drafts) {
		end := cp.NextIndex + chunkSize
		if end > len(cp.Drafts) {
			end = len(cp.Drafts)
		}

		chunk := engine.IngestDrafts(ctx, cp.Drafts[cp.NextIndex:end])
		for i := range chunk {
			// Re-key the chunk-relative index to the whole batch.
			chunk[i].Index += cp.NextIndex
			if chunk[i].Fact != nil {
				cp.FactIDs[chunk[i].Index] = chunk[i].Fact.ID
			}
		}
		results = append(results, chunk...)

		cp.NextIndex = end
		if err := manager.Save(ctx, cp); err != nil {
			return fmt.Errorf("failed to save checkpoint: %w", err)
		}

		if ctx.Err() != nil {
			if recErr := manager.RecordError(ctx, id, ctx.Err()); recErr != nil {
				logger.Warn("failed to record batch error", "error", recErr)
			}
			return fmt.Errorf("batch interrupted at item %d: %w", cp.NextIndex, ctx.Err())
		}
	}

	summary := pipeline.Summarize(results, time.Since(start))
	fmt.Printf("Batch %s: %d total, %d created, %d existing, %d failed in %s\n",
		id, summary.Total, summary.Created, summary.Existing, summary.Failed,
		summary.Elapsed.Round(time.Millisecond))

	for _, r := range results {
		if r.Err != nil {
			logger.Warn("draft failed", "index", r.Index, "error", r.Err)
		}
	}

	cp.Step = checkpoint.StepCompleted
	if summary.Failed > 0 {
		cp.Step = checkpoint.StepFailed
		cp.LastError = fmt.Sprintf("%d of %d drafts failed", summary.Failed, summary.Total)
	}
	if err := manager.Save(ctx, cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	if cp.Step == checkpoint.StepCompleted && !keepCheckpoint {
		if err := manager.Delete(ctx, id); err != nil {
			logger.Warn("failed to delete checkpoint", "error", err)
		}
	}
	return nil
}

func readDrafts(path string) ([]types.DraftFact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read drafts file: %w", err)
	}
	var drafts []types.DraftFact
	if err := json.Unmarshal(data, &drafts); err != nil {
		return nil, fmt.Errorf("failed to parse drafts file: %w", err)
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("drafts file %s holds no drafts", path)
	}
	return drafts, nil
}
