package core

import (
	"strings"
	"testing"

	"ner-gazetteer/internal/core/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entityAt(label, text, value string) types.Entity {
	start := len([]rune(text[:strings.Index(text, value)]))
	return types.Entity{Value: value, Label: label, Start: start, End: start + len([]rune(value))}
}

func TestPresidioRecognize(t *testing.T) {
	model, err := NewPresidioModel()
	require.NoError(t, err)

	text := "Mail jane.doe@example.com or call 555-123-4567. SSN 123-45-6789, card 4111 1111 1111 1111, visit https://example.com/x. Born 1990-01-31."
	entities, err := model.Predict(text)
	require.NoError(t, err)

	assert.Equal(t, []types.Entity{
		entityAt("EMAIL", text, "jane.doe@example.com"),
		entityAt("PHONENUMBER", text, "555-123-4567"),
		entityAt("SSN", text, "123-45-6789"),
		entityAt("CARD_NUMBER", text, "4111 1111 1111 1111"),
		entityAt("URL", text, "https://example.com/x"),
		entityAt("DATE", text, "1990-01-31"),
	}, entities)
}

func TestPresidioRejectsInvalidCard(t *testing.T) {
	model, err := NewPresidioModel()
	require.NoError(t, err)

	entities, err := model.Predict("card 4111 1111 1111 1112")
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestPresidioLowScorePatternsIgnored(t *testing.T) {
	model, err := NewPresidioModel()
	require.NoError(t, err)

	entities, err := model.Predict("passport 123456789")
	require.NoError(t, err)
	assert.Empty(t, entities)
	assert.NotContains(t, model.Labels(), "ID_NUMBER")
}

func TestPresidioRuneOffsets(t *testing.T) {
	model, err := NewPresidioModel()
	require.NoError(t, err)

	text := "café → 555-123-4567"
	entities, err := model.Predict(text)
	require.NoError(t, err)
	require.Len(t, entities, 1)

	runes := []rune(text)
	e := entities[0]
	assert.Equal(t, 7, e.Start)
	assert.Equal(t, "555-123-4567", string(runes[e.Start:e.End]))
}

func TestPresidioLabels(t *testing.T) {
	model, err := NewPresidioModel()
	require.NoError(t, err)

	assert.Equal(t, []string{"CARD_NUMBER", "DATE", "EMAIL", "PHONENUMBER", "SSN", "URL"}, model.Labels())
}

func TestLoadPatternsInvalidRegex(t *testing.T) {
	_, err := loadPatterns([]byte("recognizers:\n  - name: Broken\n    patterns:\n      - regex: '([0-9]'\n        score: 0.9\n"))
	assert.Error(t, err)
}
