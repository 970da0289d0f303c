package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gomcpgo/media_predict/pkg/client"
	"github.com/gomcpgo/media_predict/pkg/logger"
	"github.com/gomcpgo/media_predict/pkg/media"
	"github.com/gomcpgo/media_predict/pkg/predict"
	"github.com/gomcpgo/media_predict/pkg/responses"
	"github.com/gomcpgo/media_predict/pkg/types"
)

// PredictMediaInput is the argument set of predict_media
type PredictMediaInput struct {
	Source          string  `json:"source" jsonschema:"Local file path or http(s) URL of the image or video to classify"`
	Model           string  `json:"model,omitempty" jsonschema:"Name of the trained model to run; defaults to the configured model"`
	MimeType        string  `json:"mime_type,omitempty" jsonschema:"Explicit MIME type, overriding detection (for example image/png or video/mp4)"`
	FramesPerSecond float64 `json:"frames_per_second,omitempty" jsonschema:"Sampling rate for video predictions; ignored for images"`
}

// ContinueOperationInput is the argument set of continue_operation
type ContinueOperationInput struct {
	PredictionTaskUUID string `json:"prediction_task_uuid" jsonschema:"Task UUID returned by a processing predict_media response"`
	WaitTime           int    `json:"wait_time,omitempty" jsonschema:"Maximum seconds to wait for completion (default 30)"`
}

// handlePredictMedia starts a prediction and waits up to InitialWait for it
func (h *MediaPredictHandler) handlePredictMedia(ctx context.Context, req *mcp.CallToolRequest, in PredictMediaInput) (*mcp.CallToolResult, any, error) {
	const operation = "predict_media"
	log := logger.FromContext(ctx)

	source := strings.TrimSpace(in.Source)
	if source == "" {
		return h.errorResponse(operation, responses.ErrorInvalidParameters, "source is required", nil)
	}
	model := strings.TrimSpace(in.Model)
	if model == "" {
		model = h.defaultModel
	}
	if model == "" {
		return h.errorResponse(operation, responses.ErrorInvalidParameters, "model is required when no default model is configured", nil)
	}
	if in.FramesPerSecond < 0 {
		return h.errorResponse(operation, responses.ErrorInvalidParameters, "frames_per_second must not be negative", nil)
	}

	var openOpts []media.Option
	if in.MimeType != "" {
		openOpts = append(openOpts, media.WithMimeType(in.MimeType))
	}
	m, err := media.Open(ctx, source, openOpts...)
	if err != nil {
		return h.errorFromErr(operation, err)
	}

	task, err := h.predictor.Start(ctx, model, m, predict.WithFramesPerSecond(in.FramesPerSecond))
	if err != nil {
		return h.errorFromErr(operation, err)
	}

	op := &PendingOperation{Task: task, Source: source, StartTime: task.StartedAt}
	if h.debug {
		log.Debug("waiting for prediction", "task", task.PredictionTaskUUID, "initial_wait", h.timeouts.InitialWait)
	}
	return h.finish(ctx, operation, op, h.timeouts.InitialWait)
}

// handleContinueOperation resumes waiting on a task that returned processing
func (h *MediaPredictHandler) handleContinueOperation(ctx context.Context, req *mcp.CallToolRequest, in ContinueOperationInput) (*mcp.CallToolResult, any, error) {
	const operation = "continue_operation"

	taskUUID, invalid := taskUUIDArg(operation, in.PredictionTaskUUID)
	if invalid != nil {
		return invalid, nil, nil
	}

	wait := h.timeouts.ContinueWait
	if in.WaitTime > 0 {
		if requested := time.Duration(in.WaitTime) * time.Second; requested < wait {
			wait = requested
		}
	}

	op, ok := h.pendingOps.Get(taskUUID)
	if !ok {
		// Not started by this process; ask the service what kind of task it is.
		status, err := h.client.GetStatus(ctx, taskUUID)
		if err != nil {
			return h.errorFromErr(operation, err)
		}
		op = &PendingOperation{
			Task: &predict.Task{
				PredictionTaskUUID: taskUUID,
				PredictionType:     status.PredictionType,
			},
			StartTime: time.Now(),
		}
	}

	return h.finish(ctx, operation, op, wait)
}

// finish waits for op, then stores and reports its outcome. A wait that runs
// out leaves op pending and reports processing.
func (h *MediaPredictHandler) finish(ctx context.Context, operation string, op *PendingOperation, wait time.Duration) (*mcp.CallToolResult, any, error) {
	log := logger.FromContext(ctx)
	task := op.Task

	results, err := h.predictor.Finish(ctx, task, predict.WithTimeout(wait))
	if err != nil {
		if errors.Is(err, client.ErrPollTimeout) {
			h.pendingOps.Add(op)
			elapsed := 0
			if !op.StartTime.IsZero() {
				elapsed = int(time.Since(op.StartTime).Seconds())
			}
			log.Info("prediction still processing", "task", task.PredictionTaskUUID, "elapsed_seconds", elapsed)
			return h.successResponse(responses.BuildProcessingResponse(operation, task.PredictionTaskUUID, types.StatePending, elapsed))
		}

		var taskErr *client.TaskError
		if errors.As(err, &taskErr) && taskErr.State != "" {
			h.pendingOps.Remove(task.PredictionTaskUUID)
			h.recordFailure(ctx, op, taskErr.State)
		}
		return h.errorFromErr(operation, err)
	}

	h.pendingOps.Remove(task.PredictionTaskUUID)

	extra := map[string]interface{}{}
	if task.Model != "" {
		extra["model"] = task.Model
	}
	path, err := h.storage.SaveResults(h.metadata(op, types.StatePredicted), results)
	if err != nil {
		log.Warn("failed to save results", "task", task.PredictionTaskUUID, "error", err)
	} else {
		extra["results_path"] = path
	}
	return h.successResponse(responses.BuildSuccessResponse(operation, results, extra))
}

func (h *MediaPredictHandler) recordFailure(ctx context.Context, op *PendingOperation, state types.PredictionTaskState) {
	metadata := h.metadata(op, state)
	reason := state.String()
	metadata.Error = &reason
	if err := h.storage.SaveMetadata(metadata); err != nil {
		logger.FromContext(ctx).Warn("failed to save task metadata", "task", op.Task.PredictionTaskUUID, "error", err)
	}
}

func (h *MediaPredictHandler) metadata(op *PendingOperation, state types.PredictionTaskState) *types.TaskMetadata {
	return &types.TaskMetadata{
		PredictionTaskUUID: op.Task.PredictionTaskUUID,
		PredictionType:     op.Task.PredictionType,
		Model:              op.Task.Model,
		Source:             op.Source,
		MimeType:           op.Task.MimeType,
		State:              state.String(),
		StartedAt:          op.Task.StartedAt,
	}
}
