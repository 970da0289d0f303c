package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gomcpgo/media_predict/pkg/media"
	"github.com/gomcpgo/media_predict/pkg/types"
)

// MockClient is a mock implementation of the Client interface for testing
type MockClient struct {
	// Control behavior
	ResponseDelay time.Duration                // How long tasks take to complete after initiate
	States        []types.PredictionTaskState  // Fixed status sequence per task; the last value repeats
	FailState     types.PredictionTaskState    // Terminal state reported instead of "predicted"
	BeginFails    bool                         // BeginTask returns TaskBeginError
	UploadFails   bool                         // UploadMedia returns UploadError
	ResultsFail   bool                         // GetResults returns ResultsUnavailableError
	ResultsBody   map[string]interface{}       // Raw results body before augmentation
	PollInterval  time.Duration                // Default poll interval for WaitForCompletion

	// Track calls for assertions
	BeginCalls    []BeginCall
	UploadCalls   []UploadCall
	InitiateCalls []InitiateCall
	StatusCalls   []types.PredictionTaskUUID
	ResultsCalls  []types.PredictionTaskUUID

	tasks map[types.PredictionTaskUUID]*MockTask
	mu    sync.Mutex
}

// BeginCall records a call to BeginTask
type BeginCall struct {
	MimeType        string
	FramesPerSecond float64
	Timestamp       time.Time
}

// UploadCall records a call to UploadMedia
type UploadCall struct {
	MimeType string
	Size     int
	Target   types.SignedURL
}

// InitiateCall records a call to InitiatePredict
type InitiateCall struct {
	ModelName          string
	PredictionTaskUUID types.PredictionTaskUUID
}

// MockTask represents a mock prediction task
type MockTask struct {
	UUID        types.PredictionTaskUUID
	Type        types.PredictionType
	Uploaded    bool
	InitiatedAt time.Time
	Polls       int
	State       types.PredictionTaskState
}

// NewMockClient creates a new mock client
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseDelay: 5 * time.Second,
		PollInterval:  100 * time.Millisecond,
		tasks:         make(map[types.PredictionTaskUUID]*MockTask),
	}
}

// BeginTask creates a mock task. Video MIME types produce video tasks.
func (m *MockClient) BeginTask(ctx context.Context, mimeType string, framesPerSecond float64) (*types.BeginTaskResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.BeginCalls = append(m.BeginCalls, BeginCall{
		MimeType:        mimeType,
		FramesPerSecond: framesPerSecond,
		Timestamp:       time.Now(),
	})

	if m.BeginFails {
		return nil, &TaskBeginError{StatusCode: 500, Body: "mock client configured to fail"}
	}

	predictionType := types.PredictionTypeImage
	if kind, ok := media.KindOf(mimeType); ok && kind == media.KindVideo {
		predictionType = types.PredictionTypeVideo
	}

	taskUUID := types.PredictionTaskUUID(uuid.NewString())
	m.tasks[taskUUID] = &MockTask{
		UUID:  taskUUID,
		Type:  predictionType,
		State: types.StatePending,
	}

	return &types.BeginTaskResponse{
		PredictionTaskUUID: taskUUID,
		PredictionType:     predictionType,
		SignedURLs: []types.SignedURL{{
			BlobPath: "uploads/" + string(taskUUID),
			PresignedPostRequest: types.PresignedPostRequest{
				URL:    "https://storage.invalid/upload",
				Fields: map[string]string{"key": "uploads/" + string(taskUUID)},
			},
		}},
	}, nil
}

// UploadMedia records the upload against the task named in the target
func (m *MockClient) UploadMedia(ctx context.Context, md media.Media, target types.SignedURL) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UploadCalls = append(m.UploadCalls, UploadCall{
		MimeType: md.MimeType(),
		Size:     md.Blob().Size(),
		Target:   target,
	})

	if m.UploadFails {
		return &UploadError{BlobPath: target.BlobPath, StatusCode: 403, Body: "mock upload rejected"}
	}

	taskUUID := types.PredictionTaskUUID(strings.TrimPrefix(target.BlobPath, "uploads/"))
	if task, ok := m.tasks[taskUUID]; ok {
		task.Uploaded = true
	}
	return nil
}

// InitiatePredict starts the mock task's clock
func (m *MockClient) InitiatePredict(ctx context.Context, modelName string, taskUUID types.PredictionTaskUUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitiateCalls = append(m.InitiateCalls, InitiateCall{ModelName: modelName, PredictionTaskUUID: taskUUID})

	task, ok := m.tasks[taskUUID]
	if !ok {
		return &TaskError{PredictionTaskUUID: taskUUID, Op: "failed to initiate prediction", StatusCode: 404, Body: "task not found"}
	}
	task.InitiatedAt = time.Now()
	return nil
}

// GetStatus returns the next state from States, or a state derived from
// ResponseDelay when States is empty.
func (m *MockClient) GetStatus(ctx context.Context, taskUUID types.PredictionTaskUUID) (*types.TaskStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StatusCalls = append(m.StatusCalls, taskUUID)

	task, ok := m.tasks[taskUUID]
	if !ok {
		return nil, &TaskError{PredictionTaskUUID: taskUUID, Op: "failed to get task status", StatusCode: 404, Body: "task not found"}
	}

	task.Polls++
	switch {
	case len(m.States) > 0:
		idx := task.Polls - 1
		if idx >= len(m.States) {
			idx = len(m.States) - 1
		}
		task.State = m.States[idx]
	case task.State.IsTerminal():
	case !task.InitiatedAt.IsZero() && time.Since(task.InitiatedAt) >= m.ResponseDelay:
		task.State = types.StatePredicted
		if m.FailState != "" {
			task.State = m.FailState
		}
	}

	return &types.TaskStatus{
		PredictionTaskUUID: taskUUID,
		PredictionType:     task.Type,
		State:              task.State,
	}, nil
}

// WaitForCompletion polls the mock task
func (m *MockClient) WaitForCompletion(ctx context.Context, taskUUID types.PredictionTaskUUID, opts ...WaitOption) (*types.TaskStatus, error) {
	m.mu.Lock()
	interval := m.PollInterval
	m.mu.Unlock()

	return Wait(ctx, m.GetStatus, taskUUID, append([]WaitOption{WithPollInterval(interval)}, opts...)...)
}

// GetResults returns ResultsBody (or empty predictions) augmented with the task UUID
func (m *MockClient) GetResults(ctx context.Context, taskUUID types.PredictionTaskUUID, predictionType types.PredictionType) (*types.PredictionResults, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ResultsCalls = append(m.ResultsCalls, taskUUID)

	if m.ResultsFail {
		return nil, &ResultsUnavailableError{PredictionTaskUUID: taskUUID, StatusCode: 503, Body: "mock results unavailable"}
	}

	body := m.ResultsBody
	if body == nil {
		body = map[string]interface{}{"predictions": []interface{}{}}
		if predictionType == types.PredictionTypeVideo {
			body = map[string]interface{}{"frames_per_second": 1, "predictions": map[string]interface{}{}}
		}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode mock results: %w", err)
	}
	return types.DecodeResults(raw, taskUUID, predictionType)
}

// Helper methods for testing

// Task returns a copy of the named task
func (m *MockClient) Task(taskUUID types.PredictionTaskUUID) (MockTask, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[taskUUID]
	if !ok {
		return MockTask{}, false
	}
	return *task, true
}

// SetTaskComplete marks a task as predicted immediately
func (m *MockClient) SetTaskComplete(taskUUID types.PredictionTaskUUID) {
	m.SetTaskState(taskUUID, types.StatePredicted)
}

// SetTaskState forces the state of a task
func (m *MockClient) SetTaskState(taskUUID types.PredictionTaskUUID, state types.PredictionTaskState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if task, ok := m.tasks[taskUUID]; ok {
		task.State = state
	}
}

// SetResponseDelay changes the completion delay for tasks
func (m *MockClient) SetResponseDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResponseDelay = delay
}

// Reset clears all state for a fresh test
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tasks = make(map[types.PredictionTaskUUID]*MockTask)
	m.BeginCalls = nil
	m.UploadCalls = nil
	m.InitiateCalls = nil
	m.StatusCalls = nil
	m.ResultsCalls = nil
	m.States = nil
	m.FailState = ""
	m.BeginFails = false
	m.UploadFails = false
	m.ResultsFail = false
}
