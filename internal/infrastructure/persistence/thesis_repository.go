package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tesis/backend/internal/domain/shared"
	"github.com/tesis/backend/internal/domain/thesis"
	"github.com/tesis/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormThesisRepository implements thesis.Repository using GORM.
// Sections live in thesis_sections and are rewritten on every update.
type GormThesisRepository struct {
	db *gorm.DB
}

// NewGormThesisRepository creates a new GormThesisRepository
func NewGormThesisRepository(db *gorm.DB) *GormThesisRepository {
	return &GormThesisRepository{db: db}
}

// Save inserts a new thesis with its sections
func (r *GormThesisRepository) Save(ctx context.Context, t *thesis.Thesis) error {
	model := models.ThesisModelFromDomain(t)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.ErrAlreadyExists
			}
			return err
		}
		if len(model.Sections) > 0 {
			return tx.Create(&model.Sections).Error
		}
		return nil
	})
}

// Update stores t when its version matches the stored row and bumps t.Version
func (r *GormThesisRepository) Update(ctx context.Context, t *thesis.Thesis) error {
	expectedVersion := t.Version
	model := models.ThesisModelFromDomain(t)
	model.Version = expectedVersion + 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.ThesisModel
		if err := tx.Select("version").Where("id = ?", t.ID).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}
		if current.Version != expectedVersion {
			return shared.NewDomainError("CONCURRENCY_CONFLICT", "Thesis has been modified by another request")
		}

		result := tx.Model(&models.ThesisModel{}).
			Where("id = ? AND version = ?", t.ID, expectedVersion).
			Updates(model.UpdateColumns())
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainError("CONCURRENCY_CONFLICT", "Thesis has been modified by another request")
		}

		if err := tx.Where("thesis_id = ?", t.ID).Delete(&models.ThesisSectionModel{}).Error; err != nil {
			return err
		}
		if len(model.Sections) > 0 {
			return tx.Create(&model.Sections).Error
		}
		return nil
	})
	if err != nil {
		return err
	}
	t.Version = model.Version
	return nil
}

// FindByID finds a thesis with its sections
func (r *GormThesisRepository) FindByID(ctx context.Context, id uuid.UUID) (*thesis.Thesis, error) {
	return r.findOne(ctx, r.db.WithContext(ctx).Where("id = ?", id))
}

// FindByIDForOwner finds a thesis owned by ownerID
func (r *GormThesisRepository) FindByIDForOwner(ctx context.Context, ownerID, id uuid.UUID) (*thesis.Thesis, error) {
	return r.findOne(ctx, r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID))
}

func (r *GormThesisRepository) findOne(ctx context.Context, query *gorm.DB) (*thesis.Thesis, error) {
	var model models.ThesisModel
	err := query.
		Preload("Sections", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForOwner lists an owner's theses without sections
func (r *GormThesisRepository) FindAllForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) ([]*thesis.Thesis, error) {
	filter = filter.Normalize()
	query := r.ownerQuery(ctx, ownerID, filter)

	sortField := ValidateSortField(filter.OrderBy, ThesisSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(sortField + " " + sortOrder).Order("id ASC")

	var thesisModels []models.ThesisModel
	if err := query.Offset(filter.Offset()).Limit(filter.PageSize).Find(&thesisModels).Error; err != nil {
		return nil, err
	}

	theses := make([]*thesis.Thesis, len(thesisModels))
	for i := range thesisModels {
		theses[i] = thesisModels[i].ToDomain()
	}
	return theses, nil
}

// CountForOwner counts an owner's theses matching filter
func (r *GormThesisRepository) CountForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	if err := r.ownerQuery(ctx, ownerID, filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindStaleGenerating lists GENERATING theses not touched since before
func (r *GormThesisRepository) FindStaleGenerating(ctx context.Context, before time.Time, limit int) ([]*thesis.Thesis, error) {
	if limit <= 0 {
		limit = 100
	}
	var thesisModels []models.ThesisModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", string(thesis.StatusGenerating), before).
		Preload("Sections", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("updated_at ASC").
		Limit(limit).
		Find(&thesisModels).Error
	if err != nil {
		return nil, err
	}

	theses := make([]*thesis.Thesis, len(thesisModels))
	for i := range thesisModels {
		theses[i] = thesisModels[i].ToDomain()
	}
	return theses, nil
}

// likeEscaper makes LIKE wildcards in user input match literally
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func (r *GormThesisRepository) ownerQuery(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.ThesisModel{}).Where("owner_id = ?", ownerID)
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("LOWER(title) LIKE ? ESCAPE '!'", "%"+likeEscaper.Replace(strings.ToLower(search))+"%")
	}
	if status, ok := filter.Filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", strings.ToUpper(status))
	}
	return query
}

// Delete removes a thesis and its sections
func (r *GormThesisRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.delete(ctx, "id = ?", id)
}

// DeleteForOwner removes a thesis owned by ownerID
func (r *GormThesisRepository) DeleteForOwner(ctx context.Context, ownerID, id uuid.UUID) error {
	return r.delete(ctx, "id = ? AND owner_id = ?", id, ownerID)
}

func (r *GormThesisRepository) delete(ctx context.Context, where string, args ...any) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.ThesisModel
		if err := tx.Select("id").Where(where, args...).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}
		if err := tx.Where("thesis_id = ?", model.ID).Delete(&models.ThesisSectionModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.ThesisModel{}, "id = ?", model.ID).Error
	})
}

var _ thesis.Repository = (*GormThesisRepository)(nil)
