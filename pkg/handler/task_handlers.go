package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gomcpgo/media_predict/pkg/client"
	"github.com/gomcpgo/media_predict/pkg/logger"
	"github.com/gomcpgo/media_predict/pkg/responses"
	"github.com/gomcpgo/media_predict/pkg/storage"
	"github.com/gomcpgo/media_predict/pkg/types"
)

// TaskStatusInput names a task by UUID
type TaskStatusInput struct {
	PredictionTaskUUID string `json:"prediction_task_uuid" jsonschema:"UUID of the prediction task"`
}

// ListResultsInput is the (empty) argument set of list_results
type ListResultsInput struct{}

// taskUUIDArg trims and checks a task UUID tool argument. A non-nil result is
// the error response to return.
func taskUUIDArg(operation, raw string) (types.PredictionTaskUUID, *mcp.CallToolResult) {
	taskUUID := types.PredictionTaskUUID(strings.TrimSpace(raw))
	if taskUUID == "" {
		return "", errorResult(responses.BuildErrorResponse(operation, responses.ErrorInvalidParameters, "prediction_task_uuid is required", nil))
	}
	if err := storage.ValidateTaskUUID(taskUUID); err != nil {
		return "", errorResult(responses.BuildErrorFromErr(operation, err))
	}
	return taskUUID, nil
}

// handleGetTaskStatus reports the service-side state of a task
func (h *MediaPredictHandler) handleGetTaskStatus(ctx context.Context, req *mcp.CallToolRequest, in TaskStatusInput) (*mcp.CallToolResult, any, error) {
	const operation = "get_task_status"

	taskUUID, invalid := taskUUIDArg(operation, in.PredictionTaskUUID)
	if invalid != nil {
		return invalid, nil, nil
	}

	status, err := h.client.GetStatus(ctx, taskUUID)
	if err != nil {
		return h.errorFromErr(operation, err)
	}

	data := map[string]interface{}{
		"prediction_task_uuid": status.PredictionTaskUUID,
		"prediction_type":      status.PredictionType,
		"state":                status.State,
		"terminal":             status.State.IsTerminal(),
	}
	if op, ok := h.pendingOps.Get(taskUUID); ok && !op.StartTime.IsZero() {
		data["elapsed_seconds"] = int(time.Since(op.StartTime).Seconds())
	}
	return h.successResponse(responses.BuildSimpleSuccessResponse(operation, "Task is "+status.State.String(), data))
}

// handleGetResults returns stored results, fetching them from the service when
// this process has not saved them yet
func (h *MediaPredictHandler) handleGetResults(ctx context.Context, req *mcp.CallToolRequest, in TaskStatusInput) (*mcp.CallToolResult, any, error) {
	const operation = "get_results"

	taskUUID, invalid := taskUUIDArg(operation, in.PredictionTaskUUID)
	if invalid != nil {
		return invalid, nil, nil
	}

	results, loadErr := h.storage.LoadResults(taskUUID)
	if loadErr == nil {
		extra := map[string]interface{}{}
		if dir, err := h.storage.TaskDir(taskUUID); err == nil {
			extra["results_dir"] = dir
		}
		return h.successResponse(responses.BuildSuccessResponse(operation, results, extra))
	}

	status, err := h.client.GetStatus(ctx, taskUUID)
	if err != nil {
		var taskErr *client.TaskError
		if errors.As(err, &taskErr) && taskErr.StatusCode == http.StatusNotFound && errors.Is(loadErr, os.ErrNotExist) {
			return h.errorResponse(operation, responses.ErrorNotFound,
				fmt.Sprintf("task %s is not saved locally and unknown to the service", taskUUID),
				map[string]interface{}{"prediction_task_uuid": taskUUID})
		}
		return h.errorFromErr(operation, err)
	}
	if !status.State.IsSuccessful() {
		return h.errorResponse(operation, responses.ErrorResultsUnavailable,
			"results are not available while the task is "+status.State.String(),
			map[string]interface{}{"prediction_task_uuid": taskUUID, "state": status.State})
	}

	results, err = h.client.GetResults(ctx, taskUUID, status.PredictionType)
	if err != nil {
		return h.errorFromErr(operation, err)
	}

	extra := map[string]interface{}{}
	path, err := h.storage.SaveResults(&types.TaskMetadata{
		PredictionTaskUUID: taskUUID,
		PredictionType:     status.PredictionType,
		State:              status.State.String(),
	}, results)
	if err != nil {
		logger.FromContext(ctx).Warn("failed to save results", "task", taskUUID, "error", err)
	} else {
		extra["results_path"] = path
	}
	return h.successResponse(responses.BuildSuccessResponse(operation, results, extra))
}

// handleListResults lists the results saved under the results root
func (h *MediaPredictHandler) handleListResults(ctx context.Context, req *mcp.CallToolRequest, in ListResultsInput) (*mcp.CallToolResult, any, error) {
	const operation = "list_results"

	infos, err := h.storage.ListResults()
	if err != nil {
		return h.errorFromErr(operation, err)
	}

	return h.successResponse(responses.BuildSimpleSuccessResponse(operation, "", map[string]interface{}{
		"results": infos,
		"count":   len(infos),
		"pending": h.pendingOps.Len(),
	}))
}
