package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	t.Run("same code with custom message matches sentinel", func(t *testing.T) {
		err := NewDomainError("NOT_FOUND", "Thesis not found")
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.False(t, errors.Is(err, ErrInvalidState))
	})

	t.Run("wrapped error still matches", func(t *testing.T) {
		err := fmt.Errorf("failed to load: %w", NewDomainError("INVALID_STATE", "busy"))
		assert.True(t, errors.Is(err, ErrInvalidState))
		assert.Equal(t, "INVALID_STATE", CodeOf(err))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		assert.Equal(t, "", CodeOf(errors.New("boom")))
	})
}

func TestFilter_Normalize(t *testing.T) {
	f := Filter{Page: 0, PageSize: 500, OrderDir: "sideways"}.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 100, f.PageSize)
	assert.Equal(t, "desc", f.OrderDir)
	assert.Equal(t, 0, f.Offset())

	f = Filter{Page: 3, PageSize: 10, OrderDir: "asc"}.Normalize()
	assert.Equal(t, 20, f.Offset())
	assert.Equal(t, "asc", f.OrderDir)
}

func TestNewPaginated(t *testing.T) {
	p := NewPaginated([]int{1, 2}, 21, 1, 10)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, int64(21), p.TotalCount)

	empty := NewPaginated[int](nil, 0, 1, 0)
	assert.Equal(t, 0, empty.TotalPages)
}
