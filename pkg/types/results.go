package types

import (
	"encoding/json"
	"fmt"
)

// PredictionTaskUUIDField is the key the client adds to every results payload
const PredictionTaskUUIDField = "prediction_task_uuid"

// NodeType tags a node in the prediction tree
type NodeType string

const (
	NodeTypeCategory NodeType = "category"
	NodeTypeTrait    NodeType = "trait"
)

// PredictionNode is one node of a category/trait tree. Depth is not bounded.
type PredictionNode struct {
	ID          string           `json:"id"`
	Type        NodeType         `json:"type"`
	Name        string           `json:"name"`
	DisplayName string           `json:"display_name"`
	Confidence  *float64         `json:"confidence,omitempty"`
	Children    []PredictionNode `json:"children"`
}

// BoundingBox is normalized to [0,1] relative to the frame
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ObjectPrediction is a single detected object
type ObjectPrediction struct {
	BoundingBox BoundingBox      `json:"bounding_box"`
	Category    PredictionNode   `json:"category"`
	Traits      []PredictionNode `json:"traits"`
}

// FramePrediction is an object detected in one video frame
type FramePrediction struct {
	ObjectPrediction
	FrameID   int64 `json:"frame_id"`
	Timestamp int64 `json:"timestamp"`
}

// ImageResult is the results payload of an image task
type ImageResult struct {
	Predictions        []ObjectPrediction `json:"predictions"`
	PredictionTaskUUID PredictionTaskUUID `json:"prediction_task_uuid"`
}

// VideoResult is the results payload of a video task. Predictions are keyed
// by frame timestamp in microseconds.
type VideoResult struct {
	FramesPerSecond    float64                     `json:"frames_per_second"`
	Predictions        map[int64][]FramePrediction `json:"predictions"`
	PredictionTaskUUID PredictionTaskUUID          `json:"prediction_task_uuid"`
}

// PredictionResults holds exactly one of Image or Video, selected by Type
type PredictionResults struct {
	Type  PredictionType `json:"prediction_type"`
	Image *ImageResult   `json:"image,omitempty"`
	Video *VideoResult   `json:"video,omitempty"`
}

// TaskUUID returns the task the results belong to
func (r *PredictionResults) TaskUUID() PredictionTaskUUID {
	switch {
	case r.Image != nil:
		return r.Image.PredictionTaskUUID
	case r.Video != nil:
		return r.Video.PredictionTaskUUID
	}
	return ""
}

// ObjectCount returns the number of object predictions across the payload
func (r *PredictionResults) ObjectCount() int {
	switch {
	case r.Image != nil:
		return len(r.Image.Predictions)
	case r.Video != nil:
		n := 0
		for _, frame := range r.Video.Predictions {
			n += len(frame)
		}
		return n
	}
	return 0
}

// Payload returns the typed result for JSON encoding
func (r *PredictionResults) Payload() interface{} {
	if r.Video != nil {
		return r.Video
	}
	return r.Image
}

// AugmentResults adds (or overwrites) the task UUID on a results body.
// It is a shallow merge; nothing else in the payload is inspected.
func AugmentResults(body []byte, taskUUID PredictionTaskUUID) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage)
	}
	encoded, err := json.Marshal(taskUUID)
	if err != nil {
		return nil, err
	}
	fields[PredictionTaskUUIDField] = encoded
	return json.Marshal(fields)
}

// DecodeResults augments body with taskUUID and decodes it into the shape
// selected by predictionType.
func DecodeResults(body []byte, taskUUID PredictionTaskUUID, predictionType PredictionType) (*PredictionResults, error) {
	augmented, err := AugmentResults(body, taskUUID)
	if err != nil {
		return nil, err
	}

	results := &PredictionResults{Type: predictionType}
	switch predictionType {
	case PredictionTypeImage:
		var image ImageResult
		if err := json.Unmarshal(augmented, &image); err != nil {
			return nil, fmt.Errorf("failed to decode image results: %w", err)
		}
		if image.Predictions == nil {
			image.Predictions = []ObjectPrediction{}
		}
		results.Image = &image
	case PredictionTypeVideo:
		var video VideoResult
		if err := json.Unmarshal(augmented, &video); err != nil {
			return nil, fmt.Errorf("failed to decode video results: %w", err)
		}
		if video.Predictions == nil {
			video.Predictions = map[int64][]FramePrediction{}
		}
		results.Video = &video
	default:
		return nil, fmt.Errorf("unknown prediction type %q", predictionType)
	}
	return results, nil
}
