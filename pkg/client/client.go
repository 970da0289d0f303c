package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gomcpgo/media_predict/pkg/config"
	"github.com/gomcpgo/media_predict/pkg/logger"
	"github.com/gomcpgo/media_predict/pkg/media"
	"github.com/gomcpgo/media_predict/pkg/metrics"
	"github.com/gomcpgo/media_predict/pkg/telemetry"
	"github.com/gomcpgo/media_predict/pkg/types"
)

const (
	defaultHTTPTimeout = 60 * time.Second

	// bodies larger than this are summarized in debug logs and errors
	maxLoggedBody = 1000
)

// APIClient handles communication with the prediction service
type APIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option configures an APIClient
type Option func(*APIClient)

// WithBaseURL points the client at a different API host
func WithBaseURL(baseURL string) Option {
	return func(c *APIClient) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient sets the transport used for every call, uploads included
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *APIClient) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger sets the logger for request logging. Without it the
// context logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(c *APIClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracerProvider sets the provider for call spans
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *APIClient) {
		c.tracer = telemetry.Tracer(tp)
	}
}

// New creates a client. apiKey may be empty, in which case it is read from
// the environment; with neither, config.ErrMissingAPIKey is returned before
// any network activity.
func New(apiKey string, opts ...Option) (*APIClient, error) {
	key, err := config.ResolveAPIKey(apiKey)
	if err != nil {
		return nil, err
	}

	c := &APIClient{
		apiKey:  key,
		baseURL: config.DefaultBaseURL,
		httpClient: &http.Client{
			Timeout:   defaultHTTPTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tracer: telemetry.Tracer(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromConfig creates a client from loaded configuration
func NewFromConfig(cfg *config.Config, opts ...Option) (*APIClient, error) {
	base := []Option{WithBaseURL(cfg.BaseURL)}
	if cfg.HTTPTimeout > 0 {
		base = append(base, WithHTTPClient(&http.Client{
			Timeout:   cfg.HTTPTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}))
	}
	return New(cfg.APIKey, append(base, opts...)...)
}

// BaseURL returns the API host the client talks to
func (c *APIClient) BaseURL() string {
	return c.baseURL
}

// BeginTask creates a new prediction task
func (c *APIClient) BeginTask(ctx context.Context, mimeType string, framesPerSecond float64) (resp *types.BeginTaskResponse, err error) {
	ctx, span := c.tracer.Start(ctx, "media_predict.begin_task", trace.WithAttributes(
		attribute.String("media.mime_type", mimeType),
	))
	defer func() { telemetry.RecordError(span, err); span.End() }()

	form := []formField{{"mimetype", mimeType}}
	if framesPerSecond > 0 {
		form = append(form, formField{"frames_per_second", strconv.FormatFloat(framesPerSecond, 'f', -1, 64)})
	}
	body, contentType, err := encodeForm(form, nil)
	if err != nil {
		return nil, &TaskBeginError{Err: err}
	}

	status, respBody, err := c.send(ctx, call{
		operation:   "begin",
		method:      http.MethodPost,
		url:         c.baseURL + "/prediction-task/begin",
		body:        body,
		contentType: contentType,
	})
	if err != nil {
		return nil, &TaskBeginError{Err: err}
	}
	if !isSuccess(status) {
		return nil, &TaskBeginError{StatusCode: status, Body: excerpt(respBody)}
	}

	var begin types.BeginTaskResponse
	if err := decodeJSON(respBody, &begin); err != nil {
		return nil, &TaskBeginError{StatusCode: status, Err: err}
	}
	span.SetAttributes(
		attribute.String("prediction_task.uuid", string(begin.PredictionTaskUUID)),
		attribute.String("prediction_task.type", string(begin.PredictionType)),
	)
	return &begin, nil
}

// UploadMedia posts the payload to a signed target. The signed URL is the
// credential, so no Authorization header is sent.
func (c *APIClient) UploadMedia(ctx context.Context, m media.Media, target types.SignedURL) (err error) {
	ctx, span := c.tracer.Start(ctx, "media_predict.upload_media", trace.WithAttributes(
		attribute.String("media.mime_type", m.MimeType()),
		attribute.String("upload.blob_path", target.BlobPath),
	))
	defer func() { telemetry.RecordError(span, err); span.End() }()

	// Decoding into a map loses the server's field order; key order keeps requests reproducible.
	form := make([]formField, 0, len(target.PresignedPostRequest.Fields))
	for _, key := range sortedKeys(target.PresignedPostRequest.Fields) {
		form = append(form, formField{key, target.PresignedPostRequest.Fields[key]})
	}
	blob := m.Blob()
	body, contentType, err := encodeForm(form, &filePart{
		name:     m.Name(),
		mimeType: m.MimeType(),
		content:  blob.Reader(),
	})
	if err != nil {
		return &UploadError{BlobPath: target.BlobPath, Err: err}
	}

	status, respBody, err := c.send(ctx, call{
		operation:        "upload",
		method:           http.MethodPost,
		url:              target.PresignedPostRequest.URL,
		body:             body,
		contentType:      contentType,
		anonymous:        true,
		discardOnSuccess: true,
	})
	if err != nil {
		return &UploadError{BlobPath: target.BlobPath, Err: err}
	}
	if !isSuccess(status) {
		return &UploadError{BlobPath: target.BlobPath, StatusCode: status, Body: excerpt(respBody)}
	}
	metrics.UploadBytesTotal.Add(float64(blob.Size()))
	return nil
}

// InitiatePredict starts the model on an uploaded task
func (c *APIClient) InitiatePredict(ctx context.Context, modelName string, taskUUID types.PredictionTaskUUID) (err error) {
	ctx, span := c.tracer.Start(ctx, "media_predict.initiate_predict", trace.WithAttributes(
		attribute.String("prediction_task.uuid", string(taskUUID)),
		attribute.String("prediction.model", modelName),
	))
	defer func() { telemetry.RecordError(span, err); span.End() }()

	body, contentType, err := encodeForm([]formField{
		{"model_name", modelName},
		{"prediction_task_uuid", string(taskUUID)},
	}, nil)
	if err != nil {
		return &TaskError{PredictionTaskUUID: taskUUID, Op: "failed to initiate prediction", Err: err}
	}

	status, respBody, err := c.send(ctx, call{
		operation:        "predict",
		method:           http.MethodPost,
		url:              c.baseURL + "/predict",
		body:             body,
		contentType:      contentType,
		discardOnSuccess: true,
	})
	if err != nil {
		return &TaskError{PredictionTaskUUID: taskUUID, Op: "failed to initiate prediction", Err: err}
	}
	if !isSuccess(status) {
		return &TaskError{PredictionTaskUUID: taskUUID, Op: "failed to initiate prediction", StatusCode: status, Body: excerpt(respBody)}
	}
	return nil
}

// GetStatus gets the current state of a task
func (c *APIClient) GetStatus(ctx context.Context, taskUUID types.PredictionTaskUUID) (*types.TaskStatus, error) {
	status, respBody, err := c.send(ctx, call{
		operation: "status",
		method:    http.MethodGet,
		url:       c.taskURL("/prediction-task/status", taskUUID),
	})
	if err != nil {
		return nil, &TaskError{PredictionTaskUUID: taskUUID, Op: "failed to get task status", Err: err}
	}
	if !isSuccess(status) {
		return nil, &TaskError{PredictionTaskUUID: taskUUID, Op: "failed to get task status", StatusCode: status, Body: excerpt(respBody)}
	}

	var taskStatus types.TaskStatus
	if err := decodeJSON(respBody, &taskStatus); err != nil {
		return nil, &TaskError{PredictionTaskUUID: taskUUID, Op: "failed to get task status", StatusCode: status, Err: err}
	}
	return &taskStatus, nil
}

// WaitForCompletion polls GetStatus until the task is terminal
func (c *APIClient) WaitForCompletion(ctx context.Context, taskUUID types.PredictionTaskUUID, opts ...WaitOption) (status *types.TaskStatus, err error) {
	ctx, span := c.tracer.Start(ctx, "media_predict.wait_for_completion", trace.WithAttributes(
		attribute.String("prediction_task.uuid", string(taskUUID)),
	))
	defer func() { telemetry.RecordError(span, err); span.End() }()

	status, err = Wait(logger.WithContext(ctx, c.log(ctx)), c.GetStatus, taskUUID, opts...)
	if status != nil {
		span.SetAttributes(attribute.String("prediction_task.state", string(status.State)))
	}
	return status, err
}

// GetResults fetches results and shapes them by predictionType. The task
// UUID is merged into the body before decoding.
func (c *APIClient) GetResults(ctx context.Context, taskUUID types.PredictionTaskUUID, predictionType types.PredictionType) (results *types.PredictionResults, err error) {
	ctx, span := c.tracer.Start(ctx, "media_predict.get_results", trace.WithAttributes(
		attribute.String("prediction_task.uuid", string(taskUUID)),
		attribute.String("prediction_task.type", string(predictionType)),
	))
	defer func() { telemetry.RecordError(span, err); span.End() }()

	status, respBody, err := c.send(ctx, call{
		operation: "results",
		method:    http.MethodGet,
		url:       c.taskURL("/prediction-task/results", taskUUID),
	})
	if err != nil {
		return nil, &ResultsUnavailableError{PredictionTaskUUID: taskUUID, Err: err}
	}
	if !isSuccess(status) {
		return nil, &ResultsUnavailableError{PredictionTaskUUID: taskUUID, StatusCode: status, Body: excerpt(respBody)}
	}

	return types.DecodeResults(respBody, taskUUID, predictionType)
}

func (c *APIClient) taskURL(path string, taskUUID types.PredictionTaskUUID) string {
	query := url.Values{"predictionTaskUuid": {string(taskUUID)}}
	return c.baseURL + path + "?" + query.Encode()
}

func (c *APIClient) log(ctx context.Context) *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return logger.FromContext(ctx)
}

type call struct {
	operation   string
	method      string
	url         string
	body        []byte
	contentType string
	// signed uploads carry their own credential
	anonymous bool
	// success bodies of upload and predict are not read
	discardOnSuccess bool
}

// send performs one request and returns the status and body. Transport
// failures are returned as err; status handling is left to the caller.
func (c *APIClient) send(ctx context.Context, in call) (status int, respBody []byte, err error) {
	start := time.Now()
	defer func() { metrics.ObserveAPICall(in.operation, start, callError(status, err)) }()

	log := c.log(ctx)
	log.Debug("sending request", "operation", in.operation, "method", in.method, "url", in.url, "body", logger.Truncate(in.body, maxLoggedBody))

	var reader io.Reader = http.NoBody
	if in.body != nil {
		reader = bytes.NewReader(in.body)
	}
	req, err := http.NewRequestWithContext(ctx, in.method, in.url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if in.contentType != "" {
		req.Header.Set("Content-Type", in.contentType)
	}
	if !in.anonymous {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if in.discardOnSuccess && isSuccess(resp.StatusCode) {
		log.Debug("received response", "operation", in.operation, "status", resp.StatusCode)
		return resp.StatusCode, nil, nil
	}

	respBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	log.Debug("received response", "operation", in.operation, "status", resp.StatusCode, "body", logger.Truncate(respBody, maxLoggedBody))
	return resp.StatusCode, respBody, nil
}

func decodeJSON(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func callError(status int, err error) error {
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return fmt.Errorf("status %d", status)
	}
	return nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func excerpt(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxLoggedBody {
		return text[:maxLoggedBody] + "..."
	}
	return text
}

type formField struct {
	name  string
	value string
}

type filePart struct {
	name     string
	mimeType string
	content  io.Reader
}

// encodeForm writes fields in order, followed by the file part when present
func encodeForm(fields []formField, file *filePart) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", f.name, err)
		}
	}

	if file != nil {
		filename := file.name
		if filename == "" {
			filename = "blob"
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
		header.Set("Content-Type", file.mimeType)
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create file part: %w", err)
		}
		if _, err := io.Copy(part, file.content); err != nil {
			return nil, "", fmt.Errorf("failed to write file part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
