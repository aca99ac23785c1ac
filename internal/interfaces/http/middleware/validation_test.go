package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tesis/backend/internal/interfaces/http/dto"
)

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	assert.True(t, ok)
	assert.NotNil(t, v)
}

func TestFormatValidationErrors(t *testing.T) {
	type metadataInput struct {
		Title       string `json:"title" binding:"required"`
		DegreeLevel string `json:"degree_level" binding:"omitempty,oneof=LICENCIATURA MAESTRIA DOCTORADO"`
		Year        int    `json:"year" binding:"omitempty,gte=1900,lte=2100"`
	}

	SetupValidator()

	router := gin.New()
	router.Use(RequestID())
	router.POST("/test", func(c *gin.Context) {
		var req metadataInput
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(RequestIDHeader, "req-42")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("returns details keyed by json name", func(t *testing.T) {
		w := send(`{"degree_level": "BACHILLER", "year": 1800}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "ERR_VALIDATION", resp.Error.Code)
		assert.Equal(t, "req-42", resp.Error.RequestID)
		require.Len(t, resp.Error.Details, 3)

		fields := map[string]string{}
		for _, d := range resp.Error.Details {
			fields[d.Field] = d.Message
		}
		assert.Equal(t, "This field is required", fields["title"])
		assert.Equal(t, "Must be one of: LICENCIATURA MAESTRIA DOCTORADO", fields["degree_level"])
		assert.Equal(t, "Must be greater than or equal to 1900", fields["year"])
	})

	t.Run("malformed json", func(t *testing.T) {
		w := send(`{"title":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Malformed request body")
	})

	t.Run("valid input", func(t *testing.T) {
		w := send(`{"title": "Redes neuronales", "degree_level": "MAESTRIA", "year": 2026}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestGetValidationMessage(t *testing.T) {
	type input struct {
		Required string `validate:"required"`
		Email    string `validate:"email"`
		Min      string `validate:"min=5"`
		Max      string `validate:"max=10"`
		Len      string `validate:"len=2"`
		UUID     string `validate:"uuid"`
		OneOf    string `validate:"oneof=a b c"`
		URL      string `validate:"url"`
	}

	err := validator.New().Struct(input{
		Email: "invalid",
		Min:   "ab",
		Max:   "this is way too long",
		Len:   "abc",
		UUID:  "invalid",
		OneOf: "d",
		URL:   "invalid",
	})
	require.Error(t, err)

	expected := map[string]string{
		"Required": "This field is required",
		"Email":    "Invalid email format",
		"Min":      "Must be at least 5 characters",
		"Max":      "Must be at most 10 characters",
		"Len":      "Must be exactly 2 characters",
		"UUID":     "Invalid UUID format",
		"OneOf":    "Must be one of: a b c",
		"URL":      "Invalid URL format",
	}

	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, len(expected))
	for _, e := range verrs {
		assert.Equal(t, expected[e.Field()], getValidationMessage(e), e.Field())
	}
}
