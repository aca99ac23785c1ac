package handler

import (
	"archive/zip"
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tesis/backend/internal/interfaces/http/dto"
)

// thesisWithContent creates a thesis and writes one section by hand
func thesisWithContent(t *testing.T, env *testEnv, s session) string {
	t.Helper()
	id := env.createThesis(t, s)["id"].(string)
	w := env.do(t, http.MethodPut, "/api/v1/theses/"+id+"/sections/introduccion", s.AccessToken,
		map[string]any{"content": "<p>El diagnóstico temprano salva vidas.</p><script>alert(1)</script>"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return id
}

func TestExportHandler_Download(t *testing.T) {
	env := newTestEnv(t, nil)
	s := env.register(t, "ana@example.com")
	id := thesisWithContent(t, env, s)

	t.Run("docx", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/theses/"+id+"/export?format=docx", s.AccessToken, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", w.Header().Get("Content-Type"))
		disposition := w.Header().Get("Content-Disposition")
		assert.True(t, strings.HasPrefix(disposition, "attachment; filename="), disposition)
		assert.Contains(t, disposition, "redes-neuronales")
		assert.True(t, strings.HasSuffix(disposition, ".docx"), disposition)
		assert.Equal(t, w.Body.Len(), mustAtoi(t, w.Header().Get("Content-Length")))

		zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
		require.NoError(t, err)
		var names []string
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		assert.Contains(t, names, "word/document.xml")
	})

	t.Run("html is sanitised", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/theses/"+id+"/export?format=html", s.AccessToken, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, w.Body.String(), "salva vidas.")
		assert.NotContains(t, w.Body.String(), "<script>")
	})

	t.Run("pdf without renderer", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/theses/"+id+"/export?format=pdf", s.AccessToken, nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, dto.ErrCodeRenderFailed, errorCodeOf(t, w))
	})

	t.Run("unsupported format", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/theses/"+id+"/export?format=odt", s.AccessToken, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestExportHandler_EmptyThesis(t *testing.T) {
	env := newTestEnv(t, nil)
	s := env.register(t, "ana@example.com")
	id := env.createThesis(t, s)["id"].(string)

	w := env.do(t, http.MethodGet, "/api/v1/theses/"+id+"/export", s.AccessToken, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidState, errorCodeOf(t, w))
}

func TestExportHandler_Archive(t *testing.T) {
	env := newTestEnv(t, nil)
	s := env.register(t, "ana@example.com")
	id := thesisWithContent(t, env, s)

	w := env.do(t, http.MethodPost, "/api/v1/theses/"+id+"/exports", s.AccessToken, map[string]string{"format": "html"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := dataOf(t, w)
	key := data["key"].(string)
	assert.True(t, strings.HasPrefix(key, "exports/"+s.UserID+"/"+id+"/"), key)
	assert.Equal(t, "/files/"+key, data["url"])
	assert.True(t, strings.HasSuffix(data["filename"].(string), ".html"))
	assert.Positive(t, data["size"])

	w = env.do(t, http.MethodPost, "/api/v1/theses/"+id+"/exports?format=docx", s.AccessToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, strings.HasSuffix(dataOf(t, w)["key"].(string), ".docx"))
}
