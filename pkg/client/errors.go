package client

import (
	"errors"
	"fmt"

	"github.com/gomcpgo/media_predict/pkg/types"
)

var (
	// ErrPollTimeout marks a TaskError raised because polling exceeded its timeout
	ErrPollTimeout = errors.New("timed out waiting for prediction task")

	// ErrTaskFailed marks a TaskError raised because the task reached a failed state
	ErrTaskFailed = errors.New("prediction task failed")
)

// TaskBeginError is returned when the begin call fails
type TaskBeginError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TaskBeginError) Error() string {
	return describe("failed to begin prediction task", "", e.StatusCode, e.Body, e.Err)
}

func (e *TaskBeginError) Unwrap() error { return e.Err }

// UploadError is returned when the signed upload fails
type UploadError struct {
	BlobPath   string
	StatusCode int
	Body       string
	Err        error
}

func (e *UploadError) Error() string {
	return describe("failed to upload media", e.BlobPath, e.StatusCode, e.Body, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// TaskError is a task lifecycle failure: initiate or status calls failing,
// the task reaching a failed state, or polling timing out.
type TaskError struct {
	PredictionTaskUUID types.PredictionTaskUUID
	Op                 string
	State              types.PredictionTaskState
	StatusCode         int
	Body               string
	Err                error
}

func (e *TaskError) Error() string {
	op := e.Op
	if op == "" {
		op = "prediction task error"
	}
	msg := describe(op, string(e.PredictionTaskUUID), e.StatusCode, e.Body, e.Err)
	if e.State != "" {
		msg += fmt.Sprintf(" (state %q)", e.State)
	}
	return msg
}

func (e *TaskError) Unwrap() error { return e.Err }

// ResultsUnavailableError is returned when results cannot be fetched
type ResultsUnavailableError struct {
	PredictionTaskUUID types.PredictionTaskUUID
	StatusCode         int
	Body               string
	Err                error
}

func (e *ResultsUnavailableError) Error() string {
	return describe("results unavailable", string(e.PredictionTaskUUID), e.StatusCode, e.Body, e.Err)
}

func (e *ResultsUnavailableError) Unwrap() error { return e.Err }

func describe(op, subject string, statusCode int, body string, err error) string {
	msg := op
	if subject != "" {
		msg += " for " + subject
	}
	if statusCode != 0 {
		msg += fmt.Sprintf(": API error (status %d)", statusCode)
		if body != "" {
			msg += ": " + body
		}
	}
	if err != nil {
		msg += ": " + err.Error()
	}
	return msg
}
