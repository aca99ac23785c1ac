// Package thesis holds the application services for thesis drafts: CRUD
// for the wizard and canvas, streamed generation and export.
package thesis

import (
	"context"

	"github.com/google/uuid"
	"github.com/tesis/backend/internal/domain/shared"
	"github.com/tesis/backend/internal/domain/thesis"
	"go.uber.org/zap"
)

// ThesisService manages thesis drafts for their owners
type ThesisService struct {
	repo   thesis.Repository
	logger *zap.Logger
}

// NewThesisService creates a ThesisService
func NewThesisService(repo thesis.Repository, logger *zap.Logger) *ThesisService {
	return &ThesisService{repo: repo, logger: logger}
}

// Create stores a new draft from the wizard metadata
func (s *ThesisService) Create(ctx context.Context, ownerID uuid.UUID, m thesis.Metadata) (*thesis.Thesis, error) {
	t, err := thesis.NewThesis(ownerID, m)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info("Thesis created",
		zap.String("thesis_id", t.ID.String()),
		zap.String("owner_id", ownerID.String()))
	return t, nil
}

// Get loads a thesis with its sections
func (s *ThesisService) Get(ctx context.Context, ownerID, id uuid.UUID) (*thesis.Thesis, error) {
	return s.repo.FindByIDForOwner(ctx, ownerID, id)
}

// List returns a page of the owner's theses
func (s *ThesisService) List(ctx context.Context, ownerID uuid.UUID, in ListInput) (*shared.Paginated[*thesis.Thesis], error) {
	filter := shared.DefaultFilter()
	filter.Page = in.Page
	filter.PageSize = in.PageSize
	filter.Search = in.Search
	filter.OrderBy = in.OrderBy
	if in.OrderDir != "" {
		filter.OrderDir = in.OrderDir
	}
	if in.Status != "" {
		filter.Filters["status"] = in.Status
	}
	filter = filter.Normalize()

	items, err := s.repo.FindAllForOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountForOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// UpdateMetadata replaces the wizard metadata
func (s *ThesisService) UpdateMetadata(ctx context.Context, ownerID, id uuid.UUID, in UpdateMetadataInput) (*thesis.Thesis, error) {
	t, err := s.load(ctx, ownerID, id, in.Version)
	if err != nil {
		return nil, err
	}
	if err := t.UpdateMetadata(in.Metadata); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// EditSection saves canvas content for one section
func (s *ThesisService) EditSection(ctx context.Context, ownerID, id uuid.UUID, name string, in EditSectionInput) (*thesis.Thesis, error) {
	t, err := s.load(ctx, ownerID, id, in.Version)
	if err != nil {
		return nil, err
	}
	if err := t.EditSection(name, in.Content); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes a thesis
func (s *ThesisService) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if err := s.repo.DeleteForOwner(ctx, ownerID, id); err != nil {
		return err
	}
	s.logger.Info("Thesis deleted", zap.String("thesis_id", id.String()))
	return nil
}

func (s *ThesisService) load(ctx context.Context, ownerID, id uuid.UUID, version int) (*thesis.Thesis, error) {
	t, err := s.repo.FindByIDForOwner(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if version != 0 && version != t.Version {
		return nil, shared.ErrConcurrencyConflict
	}
	return t, nil
}
