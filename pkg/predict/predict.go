// Package predict runs a media payload through the full prediction task
// lifecycle: begin, upload, initiate, wait, results.
package predict

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gomcpgo/media_predict/pkg/client"
	"github.com/gomcpgo/media_predict/pkg/config"
	"github.com/gomcpgo/media_predict/pkg/logger"
	"github.com/gomcpgo/media_predict/pkg/media"
	"github.com/gomcpgo/media_predict/pkg/metrics"
	"github.com/gomcpgo/media_predict/pkg/telemetry"
	"github.com/gomcpgo/media_predict/pkg/types"
)

// ErrNoSignedURL is wrapped by the TaskBeginError returned when the begin
// call yields no upload target
var ErrNoSignedURL = errors.New("begin response contained no signed upload URLs")

type options struct {
	framesPerSecond float64
	wait            []client.WaitOption
}

// Option configures a prediction
type Option func(*options)

// WithFramesPerSecond sets the sampling rate sent when beginning a video task
func WithFramesPerSecond(fps float64) Option {
	return func(o *options) { o.framesPerSecond = fps }
}

// WithTimeout bounds the wait for a terminal state
func WithTimeout(d time.Duration) Option {
	return WithWaitOptions(client.WithTimeout(d))
}

// WithPollInterval sets the pause between status checks
func WithPollInterval(d time.Duration) Option {
	return WithWaitOptions(client.WithPollInterval(d))
}

// WithWaitOptions passes options through to WaitForCompletion
func WithWaitOptions(opts ...client.WaitOption) Option {
	return func(o *options) { o.wait = append(o.wait, opts...) }
}

// FromTimeouts converts configured timeouts into prediction defaults
func FromTimeouts(t config.TimeoutConfig) []Option {
	opts := []Option{WithPollInterval(t.PollInterval)}
	if t.TaskTimeout > 0 {
		opts = append(opts, WithTimeout(t.TaskTimeout))
	}
	return opts
}

// Task is a prediction task that has been started but not finished
type Task struct {
	PredictionTaskUUID types.PredictionTaskUUID
	PredictionType     types.PredictionType
	Model              string
	MimeType           string
	StartedAt          time.Time
}

// Predictor drives tasks through a Client. It holds no per-task state and
// is safe for concurrent use.
type Predictor struct {
	client   client.Client
	defaults []Option
	tracer   trace.Tracer
}

// New creates a Predictor. defaults apply to every call before per-call options.
func New(c client.Client, defaults ...Option) *Predictor {
	return &Predictor{
		client:   c,
		defaults: defaults,
		tracer:   telemetry.Tracer(nil),
	}
}

// WithTracerProvider sets the provider for orchestration spans
func (p *Predictor) WithTracerProvider(tp trace.TracerProvider) *Predictor {
	p.tracer = telemetry.Tracer(tp)
	return p
}

func (p *Predictor) options(opts []Option) options {
	var o options
	for _, opt := range p.defaults {
		opt(&o)
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Predict runs the whole lifecycle and returns results shaped by the type
// the begin call reported. A failed terminal state is a TaskError wrapping
// client.ErrTaskFailed and results are not fetched. Errors from every stage
// are returned as-is; nothing is retried or cleaned up.
func (p *Predictor) Predict(ctx context.Context, model string, m media.Media, opts ...Option) (results *types.PredictionResults, err error) {
	ctx, span := p.tracer.Start(ctx, "media_predict.predict", trace.WithAttributes(
		attribute.String("prediction.model", model),
	))
	defer func() { telemetry.RecordError(span, err); span.End() }()

	start := time.Now()
	task, err := p.Start(ctx, model, m, opts...)
	if err != nil {
		metrics.ObservePrediction(kindLabel(m), "error", start)
		return nil, err
	}
	span.SetAttributes(attribute.String("prediction_task.uuid", string(task.PredictionTaskUUID)))

	results, err = p.Finish(ctx, task, opts...)
	switch {
	case errors.Is(err, client.ErrTaskFailed):
		metrics.ObservePrediction(string(task.PredictionType), "failed", start)
	case err != nil:
		metrics.ObservePrediction(string(task.PredictionType), "error", start)
	default:
		metrics.ObservePrediction(string(task.PredictionType), "predicted", start)
	}
	return results, err
}

// PredictImage runs an image through Predict
func (p *Predictor) PredictImage(ctx context.Context, model string, img *media.Image, opts ...Option) (*types.ImageResult, error) {
	if img == nil {
		return nil, fmt.Errorf("image is required")
	}
	results, err := p.Predict(ctx, model, img, opts...)
	if err != nil {
		return nil, err
	}
	if results.Image == nil {
		return nil, fmt.Errorf("task %s produced %s results, expected image", results.TaskUUID(), results.Type)
	}
	return results.Image, nil
}

// PredictVideo runs a video through Predict
func (p *Predictor) PredictVideo(ctx context.Context, model string, vid *media.Video, opts ...Option) (*types.VideoResult, error) {
	if vid == nil {
		return nil, fmt.Errorf("video is required")
	}
	results, err := p.Predict(ctx, model, vid, opts...)
	if err != nil {
		return nil, err
	}
	if results.Video == nil {
		return nil, fmt.Errorf("task %s produced %s results, expected video", results.TaskUUID(), results.Type)
	}
	return results.Video, nil
}

// Start begins a task, uploads m to the first signed URL and initiates the
// model. The returned Task can be finished later, possibly by another call.
func (p *Predictor) Start(ctx context.Context, model string, m media.Media, opts ...Option) (*Task, error) {
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if isNilMedia(m) {
		return nil, fmt.Errorf("media is required")
	}
	o := p.options(opts)
	log := logger.FromContext(ctx)

	fps := 0.0
	if m.Kind() == media.KindVideo {
		fps = o.framesPerSecond
	}

	begin, err := p.client.BeginTask(ctx, m.MimeType(), fps)
	if err != nil {
		return nil, err
	}
	if len(begin.SignedURLs) == 0 {
		return nil, &client.TaskBeginError{Err: ErrNoSignedURL}
	}
	log.Debug("prediction task begun", "task", begin.PredictionTaskUUID, "type", begin.PredictionType, "signed_urls", len(begin.SignedURLs))

	if err := p.client.UploadMedia(ctx, m, begin.SignedURLs[0]); err != nil {
		return nil, err
	}
	log.Debug("media uploaded", "task", begin.PredictionTaskUUID, "mime_type", m.MimeType(), "bytes", m.Blob().Size())

	if err := p.client.InitiatePredict(ctx, model, begin.PredictionTaskUUID); err != nil {
		return nil, err
	}
	log.Info("prediction initiated", "task", begin.PredictionTaskUUID, "model", model)

	return &Task{
		PredictionTaskUUID: begin.PredictionTaskUUID,
		PredictionType:     begin.PredictionType,
		Model:              model,
		MimeType:           m.MimeType(),
		StartedAt:          time.Now(),
	}, nil
}

// Finish waits for task to reach a terminal state and fetches its results
func (p *Predictor) Finish(ctx context.Context, task *Task, opts ...Option) (*types.PredictionResults, error) {
	o := p.options(opts)
	log := logger.FromContext(ctx)

	status, err := p.client.WaitForCompletion(ctx, task.PredictionTaskUUID, o.wait...)
	if err != nil {
		return nil, err
	}

	if status.State.IsFailed() {
		log.Warn("prediction task failed", "task", task.PredictionTaskUUID, "state", status.State)
		return nil, &client.TaskError{
			PredictionTaskUUID: task.PredictionTaskUUID,
			Op:                 "task reached a failed state",
			State:              status.State,
			Err:                client.ErrTaskFailed,
		}
	}

	results, err := p.client.GetResults(ctx, task.PredictionTaskUUID, task.PredictionType)
	if err != nil {
		return nil, err
	}
	log.Info("prediction complete", "task", task.PredictionTaskUUID, "objects", results.ObjectCount(), "elapsed", time.Since(task.StartedAt))
	return results, nil
}

// isNilMedia also catches a nil *Image or *Video held in the interface
func isNilMedia(m media.Media) bool {
	switch v := m.(type) {
	case nil:
		return true
	case *media.Image:
		return v == nil
	case *media.Video:
		return v == nil
	}
	return false
}

func kindLabel(m media.Media) string {
	if isNilMedia(m) {
		return "unknown"
	}
	return string(m.Kind())
}
