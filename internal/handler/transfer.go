package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jun/cloudmover/internal/transfer"
)

// TransferHandler copies or moves files between two sessions.
type TransferHandler struct {
	pipeline *transfer.Pipeline
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(p *transfer.Pipeline) *TransferHandler {
	return &TransferHandler{pipeline: p}
}

type transferBody struct {
	SourceToken  string `json:"source_token"`
	DestToken    string `json:"dest_token"`
	FileID       string `json:"file_id"`
	FolderID     string `json:"folder_id"`
	DeleteSource bool   `json:"delete_source"`
}

// TransferFile copies file_id from the source session's drive into folder_id
// on the destination's, deleting the original when delete_source is set.
func (h *TransferHandler) TransferFile(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var body transferBody
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return errorResponse(http.StatusBadRequest, "Invalid request body"), nil
	}
	if body.FileID == "" {
		return errorResponse(http.StatusBadRequest, "file_id is required"), nil
	}

	res, err := h.pipeline.Transfer(ctx, transfer.Request{
		SourceToken:  body.SourceToken,
		DestToken:    body.DestToken,
		FileID:       body.FileID,
		DestFolderID: body.FolderID,
		DeleteSource: body.DeleteSource,
	})
	if err != nil {
		return errorFor("transfer file", err), nil
	}
	return jsonResponse(http.StatusOK, res), nil
}
