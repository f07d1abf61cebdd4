// Package transfer copies one object between two authenticated drives.
package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jun/cloudmover/internal/adapter"
	"github.com/jun/cloudmover/internal/model"
	"github.com/jun/cloudmover/internal/session"
	"github.com/rs/zerolog/log"
)

// ChunkSize is how much of the source stream is pulled per read.
const ChunkSize = 4 << 20

const (
	SideSource      = "source"
	SideDestination = "destination"
)

// exportTargets maps provider-native types to the format they are exported as.
var exportTargets = map[string]string{
	"application/vnd.google-apps.document":     "application/pdf",
	"application/vnd.google-apps.spreadsheet":  "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.google-apps.presentation": "application/pdf",
	"application/vnd.google-apps.drawing":      "image/png",
}

var extensions = map[string]string{
	"application/pdf":                                                           ".pdf",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         ".xlsx",
	"image/png":                                                                 ".png",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   ".docx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
}

// ExportFormat reports the MIME type and file extension a native type is
// exported as. ok is false for types that download verbatim.
func ExportFormat(mimeType string) (target, ext string, ok bool) {
	target, ok = exportTargets[mimeType]
	if !ok {
		return "", "", false
	}
	return target, extensions[target], true
}

// Resolver looks up the credential bundle behind a session token.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*model.CredentialBundle, error)
}

// Request describes one transfer.
type Request struct {
	SourceToken  string
	DestToken    string
	FileID       string
	DestFolderID string
	DeleteSource bool
}

// Result reports what happened. DeleteError is set when the copy exists
// but the source could not be removed.
type Result struct {
	Message       string `json:"message"`
	FileName      string `json:"fileName"`
	NewFileID     string `json:"newFileId"`
	SourceDeleted bool   `json:"sourceDeleted"`
	DeleteError   string `json:"deleteError,omitempty"`
}

// Pipeline performs transfers.
type Pipeline struct {
	sessions Resolver
	provider adapter.Provider
}

// NewPipeline creates a Pipeline.
func NewPipeline(sessions Resolver, provider adapter.Provider) *Pipeline {
	return &Pipeline{sessions: sessions, provider: provider}
}

func (p *Pipeline) client(ctx context.Context, side, token string) (adapter.ObjectClient, error) {
	bundle, err := p.sessions.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, &session.SessionError{Side: side, Err: err}
		}
		return nil, fmt.Errorf("resolve %s session: %w", side, err)
	}
	c, err := p.provider.ClientFor(ctx, bundle)
	if err != nil {
		return nil, fmt.Errorf("%s client: %w", side, err)
	}
	return c, nil
}

// Transfer copies req.FileID from the source drive into req.DestFolderID on
// the destination drive. Native documents are exported first. The source
// is deleted only after the copy has been created.
func (p *Pipeline) Transfer(ctx context.Context, req Request) (*Result, error) {
	src, err := p.client(ctx, SideSource, req.SourceToken)
	if err != nil {
		return nil, err
	}
	dst, err := p.client(ctx, SideDestination, req.DestToken)
	if err != nil {
		return nil, err
	}

	meta, err := src.GetMetadata(ctx, req.FileID)
	if err != nil {
		return nil, fmt.Errorf("source metadata: %w", err)
	}

	logger := log.With().Str("file_id", req.FileID).Str("mime_type", meta.MIMEType).Logger()

	name, mimeType := meta.Name, meta.MIMEType
	var stream io.ReadCloser
	if target, ext, ok := ExportFormat(meta.MIMEType); ok {
		name += ext
		mimeType = target
		logger.Debug().Str("target", target).Msg("exporting native document")
		stream, err = src.Export(ctx, req.FileID, target)
	} else {
		stream, err = src.Download(ctx, req.FileID)
	}
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	content, err := readChunks(stream, ChunkSize)
	stream.Close()
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	created, err := dst.Upload(ctx, adapter.UploadRequest{
		Name:     name,
		MIMEType: mimeType,
		ParentID: req.DestFolderID,
		Content:  bytes.NewReader(content),
	})
	if err != nil {
		return nil, fmt.Errorf("create destination file: %w", err)
	}
	logger.Info().Str("new_file_id", created.ID).Int("bytes", len(content)).Msg("file copied")

	res := &Result{
		Message:   "File transferred successfully",
		FileName:  name,
		NewFileID: created.ID,
	}
	if !req.DeleteSource {
		return res, nil
	}

	deleted, err := src.Delete(ctx, req.FileID)
	switch {
	case err != nil:
		logger.Error().Err(err).Str("new_file_id", created.ID).Msg("copy created but source delete failed")
		res.Message = "File copied, but the source could not be deleted"
		res.DeleteError = err.Error()
	case !deleted:
		res.Message = "File copied; source was already gone"
	default:
		res.Message = "File moved successfully"
		res.SourceDeleted = true
	}
	return res, nil
}

// readChunks buffers r by pulling chunkSize bytes at a time until EOF.
func readChunks(r io.Reader, chunkSize int64) ([]byte, error) {
	var buf bytes.Buffer
	for chunk := 1; ; chunk++ {
		n, err := io.CopyN(&buf, r, chunkSize)
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
		log.Trace().Int("chunk", chunk).Int64("bytes", n).Msg("downloaded chunk")
	}
}
