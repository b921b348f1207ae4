// Package checkpoint persists batch ingestion progress so an interrupted
// run can resume from the last completed item instead of starting over.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chronofact/chronofact/pkg/types"
)

// ErrInvalidBatchID is returned when a batch ID contains path traversal or
// other characters unsafe for use in a filename.
var ErrInvalidBatchID = errors.New("invalid batch ID: contains path traversal or invalid characters")

// Step marks how far a batch has progressed.
type Step string

const (
	StepPending   Step = "pending"
	StepIngesting Step = "ingesting"
	StepCompleted Step = "completed"
	StepFailed    Step = "failed"
)

// BatchCheckpoint is the resumable state of one ingestion batch.
type BatchCheckpoint struct {
	BatchID string `json:"batch_id"`
	Step    Step   `json:"step"`

	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	AttemptCount  int       `json:"attempt_count"`
	LastError     string    `json:"last_error,omitempty"`

	// Drafts is the full input batch; NextIndex is the position of the
	// first item not yet ingested.
	Drafts    []types.DraftFact `json:"drafts"`
	NextIndex int               `json:"next_index"`

	// FactIDs holds the ids produced so far, indexed like Drafts. Failed
	// items keep an empty slot.
	FactIDs []string `json:"fact_ids,omitempty"`
}

// Manager stores batch checkpoints as JSON files in a directory.
type Manager struct {
	dir string
}

// NewManager creates a checkpoint manager. An empty dir falls back to
// os.TempDir()/chronofact-checkpoints.
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "chronofact-checkpoints")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// validateBatchID rejects IDs that could escape the checkpoint directory.
func validateBatchID(batchID string) error {
	if batchID == "" {
		return ErrInvalidBatchID
	}
	if strings.Contains(batchID, "..") {
		return ErrInvalidBatchID
	}
	if strings.ContainsAny(batchID, `/\`) {
		return ErrInvalidBatchID
	}
	if strings.ContainsRune(batchID, '\x00') {
		return ErrInvalidBatchID
	}
	return nil
}

func withinDirectory(path, directory string) bool {
	cleanPath := filepath.Clean(path)
	cleanDir := filepath.Clean(directory)
	if !strings.HasSuffix(cleanDir, string(filepath.Separator)) {
		cleanDir += string(filepath.Separator)
	}
	return strings.HasPrefix(cleanPath, cleanDir) || cleanPath == filepath.Clean(directory)
}

// Path returns the checkpoint file path for a batch.
func (m *Manager) Path(batchID string) (string, error) {
	if err := validateBatchID(batchID); err != nil {
		return "", err
	}
	fullPath := filepath.Join(m.dir, "checkpoint_"+batchID+".json")
	if !withinDirectory(fullPath, m.dir) {
		return "", ErrInvalidBatchID
	}
	return fullPath, nil
}

// Save persists the checkpoint, writing through a temp file so a crash
// mid-write never leaves a truncated checkpoint behind.
func (m *Manager) Save(ctx context.Context, cp *BatchCheckpoint) error {
	cp.LastUpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	path, err := m.Path(cp.BatchID)
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename checkpoint file: %w", err)
	}
	return nil
}

// Load retrieves a batch checkpoint. A missing checkpoint returns nil
// without error.
func (m *Manager) Load(ctx context.Context, batchID string) (*BatchCheckpoint, error) {
	path, err := m.Path(batchID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}
	var cp BatchCheckpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Delete removes a batch checkpoint. Deleting an absent checkpoint is a
// no-op.
func (m *Manager) Delete(ctx context.Context, batchID string) error {
	path, err := m.Path(batchID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete checkpoint file: %w", err)
	}
	return nil
}

// Exists reports whether a checkpoint is on disk for the batch.
func (m *Manager) Exists(ctx context.Context, batchID string) (bool, error) {
	path, err := m.Path(batchID)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat checkpoint file: %w", err)
	}
	return true, nil
}

// List returns every readable checkpoint in the directory. Unreadable or
// malformed files are skipped.
func (m *Manager) List(ctx context.Context) ([]*BatchCheckpoint, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint directory: %w", err)
	}

	var checkpoints []*BatchCheckpoint
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.dir, entry.Name()))
		if err != nil {
			continue
		}
		var cp BatchCheckpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			continue
		}
		checkpoints = append(checkpoints, &cp)
	}
	return checkpoints, nil
}

// RecordError saves the failure on the checkpoint and bumps the attempt
// counter so resumption can back off after repeated failures.
func (m *Manager) RecordError(ctx context.Context, batchID string, cause error) error {
	cp, err := m.Load(ctx, batchID)
	if err != nil {
		return err
	}
	if cp == nil {
		return fmt.Errorf("checkpoint not found for batch %s", batchID)
	}
	cp.Step = StepFailed
	cp.LastError = cause.Error()
	cp.AttemptCount++
	return m.Save(ctx, cp)
}
