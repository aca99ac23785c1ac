package thesis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tesis/backend/internal/domain/shared"
	"github.com/tesis/backend/internal/domain/thesis"
	"github.com/tesis/backend/internal/infrastructure/export"
	"github.com/tesis/backend/internal/infrastructure/storage"
	"github.com/tesis/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Renderer produces document bytes for a thesis
type Renderer interface {
	Render(ctx context.Context, t *thesis.Thesis, f export.Format) ([]byte, error)
}

// ExportService renders theses and archives the results
type ExportService struct {
	repo     thesis.Repository
	renderer Renderer
	storage  storage.ObjectStorage
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService creates an ExportService. store may be nil when
// archiving is not configured.
func NewExportService(repo thesis.Repository, renderer Renderer, store storage.ObjectStorage, logger *zap.Logger) *ExportService {
	return &ExportService{repo: repo, renderer: renderer, storage: store, logger: logger, now: time.Now}
}

// Export renders the thesis in format
func (s *ExportService) Export(ctx context.Context, ownerID, thesisID uuid.UUID, format string) (*Document, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "export", "render",
		telemetry.SpanAttrThesisID, thesisID.String(),
		telemetry.SpanAttrFormat, string(f),
	)
	defer span.End()

	t, err := s.repo.FindByIDForOwner(ctx, ownerID, thesisID)
	if err != nil {
		return nil, err
	}
	if !t.HasContent() {
		return nil, shared.NewDomainError("INVALID_STATE", "Thesis has no content to export")
	}

	data, err := s.renderer.Render(ctx, t, f)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Export failed",
			zap.String("thesis_id", thesisID.String()),
			zap.String("format", string(f)),
			zap.Error(err))
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrBytes, len(data))

	return &Document{
		Filename:    export.Filename(t.Metadata.Title, f),
		ContentType: f.ContentType(),
		Data:        data,
	}, nil
}

// Archive renders the thesis and stores it, returning a download link
func (s *ExportService) Archive(ctx context.Context, ownerID, thesisID uuid.UUID, format string) (*ArchivedExport, error) {
	if s.storage == nil {
		return nil, shared.NewDomainError("INVALID_STATE", "Export storage is not configured")
	}
	doc, err := s.Export(ctx, ownerID, thesisID, format)
	if err != nil {
		return nil, err
	}

	key := storage.ExportKey(ownerID.String(), thesisID.String(), doc.Filename, s.now())
	obj, err := s.storage.Put(ctx, key, doc.Data, doc.ContentType)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Export archived",
		zap.String("thesis_id", thesisID.String()),
		zap.String("key", obj.Key),
		zap.Int64("size", obj.Size))

	return &ArchivedExport{
		Key:         obj.Key,
		URL:         obj.URL,
		Size:        obj.Size,
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
	}, nil
}
