package handler

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterTools adds every prediction tool to server
func (h *MediaPredictHandler) RegisterTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "predict_media",
		Description: `Classify an image or video with a trained model. The media is uploaded, the model is run, ` +
			`and the call waits briefly for results. Long predictions return a processing status with a ` +
			`prediction_task_uuid; pass it to continue_operation to collect the results.`,
	}, h.handlePredictMedia)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "continue_operation",
		Description: "Continue waiting for a prediction that returned a processing status.",
	}, h.handleContinueOperation)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_task_status",
		Description: "Report the current state of a prediction task without waiting.",
	}, h.handleGetTaskStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_results",
		Description: "Return the results of a completed prediction task, from disk when saved or from the service.",
	}, h.handleGetResults)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_results",
		Description: "List prediction results saved on disk, newest first.",
	}, h.handleListResults)
}
