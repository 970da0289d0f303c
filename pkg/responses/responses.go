package responses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/gomcpgo/media_predict/pkg/client"
	"github.com/gomcpgo/media_predict/pkg/config"
	"github.com/gomcpgo/media_predict/pkg/media"
	"github.com/gomcpgo/media_predict/pkg/storage"
	"github.com/gomcpgo/media_predict/pkg/types"
)

// Error types reported in tool responses
const (
	ErrorInvalidMediaType   = "invalid_media_type"
	ErrorInvalidParameters  = "invalid_parameters"
	ErrorFileNotFound       = "file_not_found"
	ErrorMissingAPIKey      = "missing_api_key"
	ErrorTaskBegin          = "task_begin_failed"
	ErrorUpload             = "upload_failed"
	ErrorTaskFailed         = "task_failed"
	ErrorTimeout            = "timeout"
	ErrorTask               = "task_error"
	ErrorResultsUnavailable = "results_unavailable"
	ErrorNotFound           = "not_found"
	ErrorAPI                = "api_error"
)

// BuildSuccessResponse creates a standardized success response
func BuildSuccessResponse(operation string, results *types.PredictionResults, extra map[string]interface{}) string {
	response := map[string]interface{}{
		"success":              true,
		"operation":            operation,
		"prediction_task_uuid": results.TaskUUID(),
		"prediction_type":      results.Type,
		"object_count":         results.ObjectCount(),
		"results":              results.Payload(),
	}

	for k, v := range extra {
		response[k] = v
	}

	return encode(response)
}

// BuildErrorResponse creates a standardized error response
func BuildErrorResponse(operation string, errorType string, message string, details map[string]interface{}) string {
	response := map[string]interface{}{
		"success":   false,
		"operation": operation,
		"error": map[string]interface{}{
			"type":       errorType,
			"message":    message,
			"details":    details,
			"suggestion": GetSuggestion(errorType),
		},
	}

	return encode(response)
}

// BuildErrorFromErr classifies err and builds the error response for it
func BuildErrorFromErr(operation string, err error) string {
	errorType, details := ClassifyError(err)
	return BuildErrorResponse(operation, errorType, err.Error(), details)
}

// BuildProcessingResponse creates a response for tasks still in progress
func BuildProcessingResponse(operation string, taskUUID types.PredictionTaskUUID, state types.PredictionTaskState, elapsedSeconds int) string {
	response := map[string]interface{}{
		"success":              false,
		"operation":            operation,
		"status":               "processing",
		"prediction_task_uuid": taskUUID,
		"message":              fmt.Sprintf("Prediction still in progress. Use continue_operation with prediction_task_uuid='%s' to check status.", taskUUID),
	}

	if state != "" {
		response["state"] = state
	}
	if elapsedSeconds > 0 {
		response["elapsed_seconds"] = elapsedSeconds
	}

	return encode(response)
}

// BuildSimpleSuccessResponse creates a simple success response with just a message
func BuildSimpleSuccessResponse(operation string, message string, data map[string]interface{}) string {
	response := map[string]interface{}{
		"success":   true,
		"operation": operation,
		"message":   message,
	}

	// Merge additional data if provided
	for k, v := range data {
		response[k] = v
	}

	return encode(response)
}

// ClassifyError maps an error to a response error type plus details
func ClassifyError(err error) (string, map[string]interface{}) {
	details := map[string]interface{}{}

	var mediaErr *media.IncorrectMediaTypeError
	var beginErr *client.TaskBeginError
	var uploadErr *client.UploadError
	var taskErr *client.TaskError
	var resultsErr *client.ResultsUnavailableError

	switch {
	case errors.As(err, &mediaErr):
		details["mime_type"] = mediaErr.MimeType
		if mediaErr.Expected != "" {
			details["expected"] = mediaErr.Expected.String() + "/*"
		}
		if mediaErr.ContentType != "" {
			details["content_type"] = mediaErr.ContentType
		}
		return ErrorInvalidMediaType, details
	case errors.Is(err, storage.ErrInvalidTaskUUID):
		return ErrorInvalidParameters, details
	case errors.Is(err, config.ErrMissingAPIKey):
		return ErrorMissingAPIKey, details
	case errors.Is(err, os.ErrNotExist):
		return ErrorFileNotFound, details
	case errors.As(err, &beginErr):
		addStatus(details, beginErr.StatusCode)
		return ErrorTaskBegin, details
	case errors.As(err, &uploadErr):
		addStatus(details, uploadErr.StatusCode)
		return ErrorUpload, details
	case errors.As(err, &taskErr):
		details["prediction_task_uuid"] = taskErr.PredictionTaskUUID
		addStatus(details, taskErr.StatusCode)
		if taskErr.State != "" {
			details["state"] = taskErr.State
		}
		switch {
		case errors.Is(err, client.ErrTaskFailed):
			return ErrorTaskFailed, details
		case errors.Is(err, client.ErrPollTimeout), errors.Is(err, context.DeadlineExceeded):
			return ErrorTimeout, details
		}
		return ErrorTask, details
	case errors.As(err, &resultsErr):
		details["prediction_task_uuid"] = resultsErr.PredictionTaskUUID
		addStatus(details, resultsErr.StatusCode)
		return ErrorResultsUnavailable, details
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTimeout, details
	}
	return ErrorAPI, details
}

func addStatus(details map[string]interface{}, statusCode int) {
	if statusCode != 0 {
		details["status_code"] = statusCode
	}
}

// GetSuggestion provides helpful suggestions for different error types
func GetSuggestion(errorType string) string {
	suggestions := map[string]string{
		ErrorInvalidMediaType:   "Provide an image/* or video/* file, or pass mime_type explicitly",
		ErrorInvalidParameters:  "Check the parameter values and ensure they meet the requirements",
		ErrorFileNotFound:       "Please check the file path and ensure the file exists",
		ErrorMissingAPIKey:      "Set " + config.APIKeyEnv + " or add apiKey to the config file",
		ErrorTaskBegin:          "Check your API key and network connection, then retry",
		ErrorUpload:             "The signed upload URL may have expired; start a new prediction",
		ErrorTaskFailed:         "The service rejected the media; check the state reason and the input file",
		ErrorTimeout:            "The prediction is taking longer than expected. Use continue_operation to check status",
		ErrorTask:               "Check the task UUID and your network connection",
		ErrorResultsUnavailable: "Results may not be ready yet; check the task status and retry",
		ErrorNotFound:           "Use list_results to see known tasks",
		ErrorAPI:                "Check your API key and network connection",
	}

	if suggestion, ok := suggestions[errorType]; ok {
		return suggestion
	}
	return "Please check your input and try again"
}

func encode(response map[string]interface{}) string {
	jsonBytes, _ := json.MarshalIndent(response, "", "  ")
	return string(jsonBytes)
}
