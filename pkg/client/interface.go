package client

import (
	"context"

	"github.com/gomcpgo/media_predict/pkg/media"
	"github.com/gomcpgo/media_predict/pkg/types"
)

// Client defines the per-call operations of the prediction service
type Client interface {
	// BeginTask creates a task and returns its UUID, prediction type and signed upload targets.
	// framesPerSecond is sent only when positive.
	BeginTask(ctx context.Context, mimeType string, framesPerSecond float64) (*types.BeginTaskResponse, error)

	// UploadMedia posts the payload to a signed upload target
	UploadMedia(ctx context.Context, m media.Media, target types.SignedURL) error

	// InitiatePredict starts the model on an uploaded task
	InitiatePredict(ctx context.Context, modelName string, taskUUID types.PredictionTaskUUID) error

	// GetStatus gets the current state of a task
	GetStatus(ctx context.Context, taskUUID types.PredictionTaskUUID) (*types.TaskStatus, error)

	// WaitForCompletion polls until the task reaches a terminal state
	WaitForCompletion(ctx context.Context, taskUUID types.PredictionTaskUUID, opts ...WaitOption) (*types.TaskStatus, error)

	// GetResults fetches the results and shapes them by predictionType
	GetResults(ctx context.Context, taskUUID types.PredictionTaskUUID, predictionType types.PredictionType) (*types.PredictionResults, error)
}

// Ensure the implementations satisfy the Client interface
var (
	_ Client = (*APIClient)(nil)
	_ Client = (*MockClient)(nil)
)
