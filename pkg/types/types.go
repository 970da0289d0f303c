package types

import (
	"time"
)

// PredictionTaskUUID identifies a prediction task. It is issued by the
// begin call and joins every later status, predict and results call.
type PredictionTaskUUID string

func (u PredictionTaskUUID) String() string {
	return string(u)
}

// PredictionType is the result shape the service will produce for a task
type PredictionType string

const (
	PredictionTypeImage PredictionType = "image"
	PredictionTypeVideo PredictionType = "video"
)

// Valid reports whether t is one of the known prediction types
func (t PredictionType) Valid() bool {
	return t == PredictionTypeImage || t == PredictionTypeVideo
}

// PresignedPostRequest is a one-time upload destination. Fields must be sent
// verbatim ahead of the file part.
type PresignedPostRequest struct {
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields"`
}

// SignedURL is a single-use signed upload target returned by the begin call
type SignedURL struct {
	BlobPath             string               `json:"blob_path"`
	PresignedPostRequest PresignedPostRequest `json:"presigned_post_request"`
}

// BeginTaskResponse represents the response from the begin endpoint.
// Only the first signed URL is used for uploads; the rest are kept for
// forward compatibility.
type BeginTaskResponse struct {
	PredictionTaskUUID PredictionTaskUUID `json:"prediction_task_uuid"`
	PredictionType     PredictionType     `json:"prediction_type"`
	SignedURLs         []SignedURL        `json:"signed_urls"`
}

// TaskStatus represents the response from the status endpoint
type TaskStatus struct {
	PredictionTaskUUID PredictionTaskUUID  `json:"prediction_task_uuid"`
	PredictionType     PredictionType      `json:"prediction_type"`
	State              PredictionTaskState `json:"status"`
}

// TaskMetadata represents the metadata stored next to saved results
type TaskMetadata struct {
	Version            string             `yaml:"version"`
	PredictionTaskUUID PredictionTaskUUID `yaml:"prediction_task_uuid"`
	PredictionType     PredictionType     `yaml:"prediction_type"`
	Model              string             `yaml:"model"`
	Source             string             `yaml:"source,omitempty"`
	MimeType           string             `yaml:"mime_type,omitempty"`
	State              string             `yaml:"state"`
	StartedAt          time.Time          `yaml:"started_at,omitempty"`
	Timestamp          time.Time          `yaml:"timestamp"`
	Result             *StoredResult      `yaml:"result,omitempty"`
	Error              *string            `yaml:"error,omitempty"`
}

// ElapsedSeconds is the time from task start to the metadata timestamp, or
// to now when no timestamp has been set yet
func (m *TaskMetadata) ElapsedSeconds() float64 {
	if m.StartedAt.IsZero() {
		return 0
	}
	end := m.Timestamp
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(m.StartedAt).Seconds()
}

// StoredResult describes a results file written by storage
type StoredResult struct {
	Filename       string  `yaml:"filename"`
	PredictionTime float64 `yaml:"prediction_time,omitempty"`
	ObjectCount    int     `yaml:"object_count"`
}

// ResultsInfo represents a stored result in list responses
type ResultsInfo struct {
	PredictionTaskUUID PredictionTaskUUID `json:"prediction_task_uuid"`
	PredictionType     PredictionType     `json:"prediction_type"`
	Model              string             `json:"model,omitempty"`
	State              string             `json:"state"`
	Timestamp          time.Time          `json:"timestamp"`
	FilePath           string             `json:"file_path,omitempty"`
	ObjectCount        int                `json:"object_count"`
}
