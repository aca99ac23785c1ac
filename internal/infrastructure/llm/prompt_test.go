package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesis/backend/internal/domain/shared"
	"github.com/tesis/backend/internal/domain/thesis"
)

func TestPromptBuilder_Build(t *testing.T) {
	b, err := NewPromptBuilder(nil)
	require.NoError(t, err)

	sections, err := b.Sections([]string{"Introducción", "marco-teorico", "introduccion", "Anexos"})
	require.NoError(t, err)
	require.Len(t, sections, 3)
	assert.Equal(t, "introduccion", sections[0].Name)
	assert.Equal(t, "marco_teorico", sections[1].Name)
	assert.Equal(t, "anexos", sections[2].Name)

	system, user, err := b.Build(thesis.Metadata{
		Title:       "Redes neuronales para el diagnóstico",
		Institution: "Universidad Nacional",
		Author:      "Ana Pérez",
		Year:        2025,
		DegreeLevel: thesis.DegreeMaestria,
		Topic:       "Clasificación de imágenes médicas",
	}, sections)
	require.NoError(t, err)

	assert.Contains(t, system, "---SECCION:<nombre>---")
	assert.Contains(t, system, "---ERROR:<nombre>---")
	assert.Contains(t, system, "- introduccion (Introducción)")
	assert.Contains(t, system, "- marco_teorico (Marco teórico)")
	assert.Contains(t, system, "español")

	assert.Contains(t, user, "Título: Redes neuronales para el diagnóstico")
	assert.Contains(t, user, "Grado: Maestría")
	assert.Contains(t, user, "Año: 2025")
	assert.Contains(t, user, "Clasificación de imágenes médicas")
	assert.Contains(t, user, "introduccion, marco_teorico, anexos")
	assert.NotContains(t, user, "Asesor:")
}

func TestPromptBuilder_Sections(t *testing.T) {
	b, err := NewPromptBuilder(nil)
	require.NoError(t, err)

	all, err := b.Sections(nil)
	require.NoError(t, err)
	assert.Len(t, all, thesis.DefaultCatalogue().Len())

	_, err = b.Sections([]string{"---"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}
