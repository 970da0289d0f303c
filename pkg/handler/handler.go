package handler

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gomcpgo/media_predict/pkg/client"
	"github.com/gomcpgo/media_predict/pkg/config"
	"github.com/gomcpgo/media_predict/pkg/predict"
	"github.com/gomcpgo/media_predict/pkg/responses"
	"github.com/gomcpgo/media_predict/pkg/storage"
)

// MediaPredictHandler serves the prediction tools over MCP
type MediaPredictHandler struct {
	predictor    *predict.Predictor
	client       client.Client
	storage      *storage.Storage
	pendingOps   *PendingOperationsManager
	timeouts     config.TimeoutConfig
	defaultModel string
	debug        bool
}

// NewMediaPredictHandler creates a new handler instance
func NewMediaPredictHandler(cfg *config.Config, timeouts config.TimeoutConfig) (*MediaPredictHandler, error) {
	apiClient, err := client.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return newHandler(apiClient, storage.NewStorage(cfg.ResultsRoot), timeouts, cfg.Model, cfg.DebugMode), nil
}

func newHandler(c client.Client, store *storage.Storage, timeouts config.TimeoutConfig, defaultModel string, debug bool) *MediaPredictHandler {
	return &MediaPredictHandler{
		predictor:    predict.New(c, predict.WithPollInterval(timeouts.PollInterval)),
		client:       c,
		storage:      store,
		pendingOps:   NewPendingOperationsManager(timeouts.MaxOperationTime),
		timeouts:     timeouts,
		defaultModel: defaultModel,
		debug:        debug,
	}
}

// Close stops background cleanup of pending tasks
func (h *MediaPredictHandler) Close() {
	h.pendingOps.Close()
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func (h *MediaPredictHandler) successResponse(text string) (*mcp.CallToolResult, any, error) {
	return textResult(text), nil, nil
}

func errorResult(text string) *mcp.CallToolResult {
	result := textResult(text)
	result.IsError = true
	return result
}

func (h *MediaPredictHandler) errorResponse(operation, errorType, message string, details map[string]interface{}) (*mcp.CallToolResult, any, error) {
	return errorResult(responses.BuildErrorResponse(operation, errorType, message, details)), nil, nil
}

func (h *MediaPredictHandler) errorFromErr(operation string, err error) (*mcp.CallToolResult, any, error) {
	return errorResult(responses.BuildErrorFromErr(operation, err)), nil, nil
}
