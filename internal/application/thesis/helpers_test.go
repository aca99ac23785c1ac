package thesis

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tesis/backend/internal/domain/shared"
	"github.com/tesis/backend/internal/domain/thesis"
)

// memRepo is an in-memory thesis.Repository with the same version
// semantics as the GORM implementation
type memRepo struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*thesis.Thesis
	updates int
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[uuid.UUID]*thesis.Thesis)}
}

func clone(t *thesis.Thesis) *thesis.Thesis {
	c := *t
	c.Sections = make([]*thesis.Section, len(t.Sections))
	for i, s := range t.Sections {
		sc := *s
		c.Sections[i] = &sc
	}
	return &c
}

func (r *memRepo) Save(_ context.Context, t *thesis.Thesis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[t.ID]; ok {
		return shared.ErrAlreadyExists
	}
	r.rows[t.ID] = clone(t)
	return nil
}

func (r *memRepo) Update(_ context.Context, t *thesis.Thesis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[t.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != t.Version {
		return shared.ErrConcurrencyConflict
	}
	t.Version++
	r.rows[t.ID] = clone(t)
	r.updates++
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id uuid.UUID) (*thesis.Thesis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return clone(t), nil
}

func (r *memRepo) FindByIDForOwner(ctx context.Context, ownerID, id uuid.UUID) (*thesis.Thesis, error) {
	t, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != ownerID {
		return nil, shared.ErrNotFound
	}
	return t, nil
}

func (r *memRepo) match(ownerID uuid.UUID, f shared.Filter) []*thesis.Thesis {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*thesis.Thesis
	for _, t := range r.rows {
		if t.OwnerID != ownerID {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(t.Metadata.Title), strings.ToLower(f.Search)) {
			continue
		}
		if st, ok := f.Filters["status"].(string); ok && string(t.Status) != strings.ToUpper(st) {
			continue
		}
		out = append(out, clone(t))
	}
	return out
}

func (r *memRepo) FindAllForOwner(_ context.Context, ownerID uuid.UUID, f shared.Filter) ([]*thesis.Thesis, error) {
	all := r.match(ownerID, f)
	start := min(f.Offset(), len(all))
	end := min(start+f.PageSize, len(all))
	return all[start:end], nil
}

func (r *memRepo) CountForOwner(_ context.Context, ownerID uuid.UUID, f shared.Filter) (int64, error) {
	return int64(len(r.match(ownerID, f))), nil
}

func (r *memRepo) FindStaleGenerating(_ context.Context, before time.Time, limit int) ([]*thesis.Thesis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*thesis.Thesis
	for _, t := range r.rows {
		if t.IsGenerating() && t.UpdatedAt.Before(before) {
			out = append(out, clone(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// age moves a stored thesis' UpdatedAt back by d
func (r *memRepo) age(id uuid.UUID, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[id].UpdatedAt = r.rows[id].UpdatedAt.Add(-d)
}

func (r *memRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memRepo) DeleteForOwner(ctx context.Context, ownerID, id uuid.UUID) error {
	if _, err := r.FindByIDForOwner(ctx, ownerID, id); err != nil {
		return err
	}
	return r.Delete(ctx, id)
}

func (r *memRepo) stored(t *testing.T, id uuid.UUID) *thesis.Thesis {
	t.Helper()
	th, err := r.FindByID(context.Background(), id)
	require.NoError(t, err)
	return th
}

func testMetadata() thesis.Metadata {
	return thesis.Metadata{
		Title:       "Redes neuronales para el diagnóstico temprano",
		Institution: "Universidad de Chile",
		Author:      "Camila Rojas",
		Topic:       "clasificación de imágenes médicas",
	}
}

func seedThesis(t *testing.T, repo *memRepo, ownerID uuid.UUID) *thesis.Thesis {
	t.Helper()
	th, err := thesis.NewThesis(ownerID, testMetadata())
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), th))
	return th
}

// recorder collects sink events
type recorder struct {
	mu     sync.Mutex
	events []Event
	failAt int // fail the n-th Send (1-based); 0 never fails
}

func (r *recorder) Send(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if r.failAt > 0 && len(r.events) == r.failAt {
		return context.Canceled
	}
	return nil
}

// shape returns the non-delta events as "type:section" plus the
// concatenated delta text per section
func (r *recorder) shape() ([]string, map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []string
	text := map[string]string{}
	for _, ev := range r.events {
		if ev.Type == EventSectionDelta {
			text[ev.Section] += ev.Text
			continue
		}
		kinds = append(kinds, ev.Type+":"+ev.Section)
	}
	return kinds, text
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}
