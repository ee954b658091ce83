package service

import (
	"context"

	"testcase-workflow-be/internal/dto"
	"testcase-workflow-be/internal/pkg/logger"
	"testcase-workflow-be/pkg/backend"
	"testcase-workflow-be/pkg/events"
)

const defaultDocumentType = "requirements"

type IDocumentService interface {
	Upload(ctx context.Context, req *dto.UploadDocumentRequest) (*dto.UploadDocumentResponse, error)
}

type documentService struct {
	source           backend.DataSource
	publisherService IPublisherService
	logger           logger.ILogger
}

func NewDocumentService(source backend.DataSource, publisherService IPublisherService, logger logger.ILogger) IDocumentService {
	return &documentService{
		source:           source,
		publisherService: publisherService,
		logger:           logger,
	}
}

func (d *documentService) Upload(ctx context.Context, req *dto.UploadDocumentRequest) (*dto.UploadDocumentResponse, error) {
	if len(req.Content) == 0 {
		return nil, opError("upload document", ErrEmptyDocument)
	}

	docType := req.DocumentType
	if docType == "" {
		docType = defaultDocumentType
	}

	result, err := d.source.UploadDocument(ctx, backend.UploadRequest{
		Filename:     req.Filename,
		Content:      req.Content,
		DocumentId:   req.DocumentId,
		DocumentType: docType,
		EnableRAG:    req.EnableRAG,
		Metadata:     req.Metadata,
	})
	if err != nil {
		d.logger.Error("DOCUMENT", "Upload failed", map[string]interface{}{
			"filename": req.Filename,
			"error":    err.Error(),
		})
		d.publish(ctx, events.New(events.TypeBackendCallFailed, req.SessionId, map[string]interface{}{
			"operation": "upload_document",
			"error":     err.Error(),
		}))
		return nil, opError("upload document", err)
	}

	d.logger.Info("DOCUMENT", "Document uploaded", map[string]interface{}{
		"filename":    req.Filename,
		"document_id": result.DocumentId,
		"chunks":      result.ChunksCreated,
		"rag_chunks":  result.RAGChunksCreated,
	})
	d.publish(ctx, events.New(events.TypeDocumentUploaded, req.SessionId, map[string]interface{}{
		"document_id":   result.DocumentId,
		"document_type": docType,
		"filename":      req.Filename,
		"file_type":     result.FileType,
	}))

	return &dto.UploadDocumentResponse{Result: result, SessionId: req.SessionId}, nil
}

func (d *documentService) publish(ctx context.Context, e events.Event) {
	if d.publisherService == nil {
		return
	}
	if err := d.publisherService.Publish(ctx, e); err != nil {
		d.logger.Warn("DOCUMENT", "Failed to publish event", map[string]interface{}{
			"event_type": e.EventType(),
			"error":      err.Error(),
		})
	}
}
