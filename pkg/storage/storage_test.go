package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomcpgo/media_predict/pkg/types"
)

func imageResults(taskUUID types.PredictionTaskUUID, objects int) *types.PredictionResults {
	preds := make([]types.ObjectPrediction, objects)
	for i := range preds {
		preds[i].Category = types.PredictionNode{ID: "c", Type: types.NodeTypeCategory, Name: "dog"}
	}
	return &types.PredictionResults{
		Type:  types.PredictionTypeImage,
		Image: &types.ImageResult{Predictions: preds, PredictionTaskUUID: taskUUID},
	}
}

func TestSaveAndLoadResults(t *testing.T) {
	s := NewStorage(t.TempDir())
	start := time.Now().Add(-3 * time.Second)

	path, err := s.SaveResults(&types.TaskMetadata{
		PredictionTaskUUID: "task-1",
		Model:              "pets-v1",
		Source:             "dog.png",
		MimeType:           "image/png",
		StartedAt:          start,
	}, imageResults("task-1", 2))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "task-1", "results.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "task-1", body["prediction_task_uuid"])

	metadata, err := s.LoadMetadata("task-1")
	require.NoError(t, err)
	assert.Equal(t, "1.0", metadata.Version)
	assert.Equal(t, types.PredictionTypeImage, metadata.PredictionType)
	assert.Equal(t, "predicted", metadata.State)
	require.NotNil(t, metadata.Result)
	assert.Equal(t, 2, metadata.Result.ObjectCount)
	assert.InDelta(t, 3.0, metadata.Result.PredictionTime, 1.0)

	results, err := s.LoadResults("task-1")
	require.NoError(t, err)
	require.NotNil(t, results.Image)
	assert.Len(t, results.Image.Predictions, 2)
	assert.Equal(t, types.PredictionTaskUUID("task-1"), results.TaskUUID())
}

func TestSaveResults_RequiresUUID(t *testing.T) {
	s := NewStorage(t.TempDir())
	_, err := s.SaveResults(&types.TaskMetadata{}, imageResults("", 0))
	assert.Error(t, err)
}

func TestFailedTaskHasNoResults(t *testing.T) {
	s := NewStorage(t.TempDir())
	reason := "failed_invalid_input"
	require.NoError(t, s.SaveMetadata(&types.TaskMetadata{
		PredictionTaskUUID: "task-2",
		PredictionType:     types.PredictionTypeVideo,
		State:              reason,
		Error:              &reason,
	}))

	_, err := s.LoadResults("task-2")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), reason)
}

func TestListResults(t *testing.T) {
	s := NewStorage(t.TempDir())

	infos, err := s.ListResults()
	require.NoError(t, err)
	assert.Empty(t, infos)

	older := time.Now().Add(-time.Hour)
	_, err = s.SaveResults(&types.TaskMetadata{PredictionTaskUUID: "old", Model: "m", Timestamp: older}, imageResults("old", 1))
	require.NoError(t, err)
	_, err = s.SaveResults(&types.TaskMetadata{PredictionTaskUUID: "new", Model: "m"}, imageResults("new", 3))
	require.NoError(t, err)

	// directories without metadata are ignored
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "junk"), 0755))

	infos, err = s.ListResults()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, types.PredictionTaskUUID("new"), infos[0].PredictionTaskUUID)
	assert.Equal(t, 3, infos[0].ObjectCount)
	assert.Equal(t, types.PredictionTaskUUID("old"), infos[1].PredictionTaskUUID)
	assert.NotEmpty(t, infos[1].FilePath)
}

func TestListResults_MissingRoot(t *testing.T) {
	s := NewStorage(filepath.Join(t.TempDir(), "absent"))
	infos, err := s.ListResults()
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestTaskDir_RejectsPathsOutsideRoot(t *testing.T) {
	parent := t.TempDir()
	s := NewStorage(filepath.Join(parent, "results"))

	for _, id := range []types.PredictionTaskUUID{"", ".", "..", "a/..", "../x", `a\b`, "/abs"} {
		t.Run(string(id), func(t *testing.T) {
			_, err := s.TaskDir(id)
			assert.ErrorIs(t, err, ErrInvalidTaskUUID)

			_, err = s.LoadMetadata(id)
			assert.ErrorIs(t, err, ErrInvalidTaskUUID)

			err = s.SaveMetadata(&types.TaskMetadata{PredictionTaskUUID: id})
			assert.ErrorIs(t, err, ErrInvalidTaskUUID)
		})
	}

	_, err := s.SaveResults(&types.TaskMetadata{PredictionTaskUUID: ".."}, imageResults("..", 1))
	assert.ErrorIs(t, err, ErrInvalidTaskUUID)

	// nothing was written next to the root
	_, err = os.Stat(filepath.Join(parent, "metadata.yaml"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(parent, "results.json"))
	assert.True(t, os.IsNotExist(err))

	dir, err := s.TaskDir("0b7f7c2e-task")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(parent, "results", "0b7f7c2e-task"), dir)
}
