package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gomcpgo/media_predict/pkg/types"
)

const (
	metadataVersion  = "1.0"
	metadataFilename = "metadata.yaml"
	resultsFilename  = "results.json"
)

// ErrInvalidTaskUUID is returned for task UUIDs that cannot name a directory
// directly under the storage root
var ErrInvalidTaskUUID = errors.New("invalid prediction task UUID")

// Storage keeps fetched results on local disk, one directory per task
type Storage struct {
	rootPath string
}

// NewStorage creates a new storage instance
func NewStorage(rootPath string) *Storage {
	return &Storage{
		rootPath: rootPath,
	}
}

// Root returns the storage root directory
func (s *Storage) Root() string {
	return s.rootPath
}

// ValidateTaskUUID rejects values that are empty, dot entries or contain a
// path separator
func ValidateTaskUUID(taskUUID types.PredictionTaskUUID) error {
	id := string(taskUUID)
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidTaskUUID, id)
	}
	return nil
}

// TaskDir returns the directory holding a task's files
func (s *Storage) TaskDir(taskUUID types.PredictionTaskUUID) (string, error) {
	if err := ValidateTaskUUID(taskUUID); err != nil {
		return "", err
	}
	return filepath.Join(s.rootPath, string(taskUUID)), nil
}

// SaveResults writes results.json and metadata.yaml for a finished task and
// returns the path of the results file.
func (s *Storage) SaveResults(metadata *types.TaskMetadata, results *types.PredictionResults) (string, error) {
	if metadata == nil || metadata.PredictionTaskUUID == "" {
		return "", fmt.Errorf("task UUID is required")
	}
	dir, err := s.TaskDir(metadata.PredictionTaskUUID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(results.Payload(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal results: %w", err)
	}
	resultsPath := filepath.Join(dir, resultsFilename)
	if err := os.WriteFile(resultsPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save results: %w", err)
	}

	if metadata.PredictionType == "" {
		metadata.PredictionType = results.Type
	}
	if metadata.State == "" {
		metadata.State = string(types.StatePredicted)
	}
	metadata.Result = &types.StoredResult{
		Filename:       resultsFilename,
		PredictionTime: metadata.ElapsedSeconds(),
		ObjectCount:    results.ObjectCount(),
	}
	if err := s.SaveMetadata(metadata); err != nil {
		return "", err
	}
	return resultsPath, nil
}

// SaveMetadata saves metadata for a task. Failed tasks are recorded without
// a results file.
func (s *Storage) SaveMetadata(metadata *types.TaskMetadata) error {
	dir, err := s.TaskDir(metadata.PredictionTaskUUID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Ensure version is set
	if metadata.Version == "" {
		metadata.Version = metadataVersion
	}

	// Ensure timestamp is set
	if metadata.Timestamp.IsZero() {
		metadata.Timestamp = time.Now()
	}

	data, err := yaml.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, metadataFilename), data, 0644); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	return nil
}

// LoadMetadata loads metadata for a task
func (s *Storage) LoadMetadata(taskUUID types.PredictionTaskUUID) (*types.TaskMetadata, error) {
	dir, err := s.TaskDir(taskUUID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, metadataFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata types.TaskMetadata
	if err := yaml.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &metadata, nil
}

// LoadResults reads saved results back into their typed shape
func (s *Storage) LoadResults(taskUUID types.PredictionTaskUUID) (*types.PredictionResults, error) {
	metadata, err := s.LoadMetadata(taskUUID)
	if err != nil {
		return nil, err
	}
	if metadata.Result == nil {
		return nil, fmt.Errorf("task %s has no saved results (state %s)", taskUUID, metadata.State)
	}

	dir, err := s.TaskDir(taskUUID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, filepath.Base(metadata.Result.Filename)))
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return types.DecodeResults(data, taskUUID, metadata.PredictionType)
}

// ListResults lists all stored tasks, newest first
func (s *Storage) ListResults() ([]types.ResultsInfo, error) {
	entries, err := os.ReadDir(s.rootPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []types.ResultsInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	infos := []types.ResultsInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		taskUUID := types.PredictionTaskUUID(entry.Name())
		metadata, err := s.LoadMetadata(taskUUID)
		if err != nil {
			// Skip entries without valid metadata
			continue
		}

		info := types.ResultsInfo{
			PredictionTaskUUID: taskUUID,
			PredictionType:     metadata.PredictionType,
			Model:              metadata.Model,
			State:              metadata.State,
			Timestamp:          metadata.Timestamp,
		}
		if metadata.Result != nil {
			info.FilePath = filepath.Join(s.rootPath, entry.Name(), metadata.Result.Filename)
			info.ObjectCount = metadata.Result.ObjectCount
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp.After(infos[j].Timestamp)
	})
	return infos, nil
}
