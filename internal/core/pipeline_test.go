package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"ner-gazetteer/internal/core/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubModel labels every occurrence of word.
type stubModel struct {
	word     string
	label    string
	released atomic.Bool
	fail     bool
}

func (m *stubModel) Predict(text string) ([]types.Entity, error) {
	if m.fail {
		return nil, errors.New("stub failure")
	}
	var out []types.Entity
	for _, tok := range Tokenize(text) {
		if tok.Text == m.word {
			out = append(out, types.CreateEntity(m.label, text, tok.Start, tok.End))
		}
	}
	return out, nil
}

func (m *stubModel) Labels() []string { return []string{m.label} }

func (m *stubModel) Release() { m.released.Store(true) }

// spanModel returns the same spans whatever the text.
type spanModel struct {
	spans []types.Entity
}

func (m spanModel) Predict(string) ([]types.Entity, error) { return m.spans, nil }

func (m spanModel) Release() {}

func loadDefaultPipeline(t *testing.T, modelType ModelType) *Pipeline {
	p, err := LoadPipeline(PipelineConfig{ModelType: modelType}, NewModelLoaders(""))
	require.NoError(t, err)

	cfg, err := LoadGazetteerConfig("")
	require.NoError(t, err)
	g, err := NewGazetteerAnnotatorFromConfig(cfg)
	require.NoError(t, err)
	p.AddAnnotator(g)
	return p
}

func TestPipelineDefaultInput(t *testing.T) {
	p := loadDefaultPipeline(t, Blank)
	defer p.Release()

	doc, err := p.Process("arddh")
	require.NoError(t, err)

	assert.Equal(t, []types.Entity{{Value: "arddh", Label: "NAME", Start: 0, End: 5}}, doc.Entities(KeepAll))
	assert.Equal(t, "[Entity(value='arddh', label='NAME', start=0, end=5)]", types.FormatEntities(doc.Entities(KeepAll)))
}

func TestPipelineEmptyInput(t *testing.T) {
	p := loadDefaultPipeline(t, Blank)

	doc, err := p.Process("")
	require.NoError(t, err)
	assert.Empty(t, doc.Entities(KeepAll))
	assert.Empty(t, doc.Tokens)
	assert.Equal(t, "[]", types.FormatEntities(doc.Entities(KeepAll)))
}

func TestPipelineOffsetsRoundTrip(t *testing.T) {
	p := loadDefaultPipeline(t, Presidio)

	texts := []string{
		"arddh",
		"Émile asked arddh, then aerty, to email arddh@example.com.",
		"¿arddh? «aerty» call 555-123-4567",
		"nothing here",
	}
	for _, text := range texts {
		doc, err := p.Process(text)
		require.NoError(t, err)

		runes := []rune(text)
		for _, e := range doc.Entities(KeepAll) {
			require.True(t, 0 <= e.Start && e.Start <= e.End && e.End <= len(runes), "bad span %v", e)
			assert.Equal(t, string(runes[e.Start:e.End]), e.Value)
		}
	}
}

func TestPipelineDeterministic(t *testing.T) {
	text := "Ask arddh and aerty about 555-123-4567."

	first, err := loadDefaultPipeline(t, Presidio).Process(text)
	require.NoError(t, err)
	second, err := loadDefaultPipeline(t, Presidio).Process(text)
	require.NoError(t, err)

	assert.Equal(t, first.Entities(KeepAll), second.Entities(KeepAll))
}

func TestLoadPipelineModelUnavailable(t *testing.T) {
	loaders := NewModelLoaders("")

	_, err := LoadPipeline(PipelineConfig{ModelType: "spacy"}, loaders)
	assert.ErrorIs(t, err, ErrModelUnavailable)

	_, err = LoadPipeline(PipelineConfig{ModelType: OnnxCnn, ModelDir: filepath.Join(t.TempDir(), "missing")}, loaders)
	assert.ErrorIs(t, err, ErrModelUnavailable)

	_, err = LoadPipeline(PipelineConfig{ModelType: OnnxCnn}, loaders)
	assert.ErrorIs(t, err, ErrModelUnavailable)

	_, err = LoadPipeline(PipelineConfig{ModelType: Plugin}, loaders)
	assert.ErrorIs(t, err, ErrModelUnavailable)

	failing := map[ModelType]ModelLoader{
		Blank: func(string) (Model, error) { return nil, errors.New("boom") },
	}
	_, err = LoadPipeline(PipelineConfig{ModelType: Blank}, failing)
	assert.ErrorIs(t, err, ErrModelUnavailable)

	_, err = ParseModelType("spacy")
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestPipelineMergesModelAndGazetteer(t *testing.T) {
	model := &stubModel{word: "arddh", label: "PERSON"}
	p := NewPipeline(NewModelAnnotator(model, Blank))

	g, err := NewGazetteerAnnotator("presidents", map[string][]string{"NAME": {"arddh", "aerty"}}, true)
	require.NoError(t, err)
	p.AddAnnotator(g)

	doc, err := p.Process("aerty met arddh")
	require.NoError(t, err)

	assert.Equal(t, []string{"model", "presidents"}, doc.Sources())
	assert.Equal(t, []types.Entity{
		{Value: "aerty", Label: "NAME", Start: 0, End: 5},
		{Value: "arddh", Label: "PERSON", Start: 10, End: 15},
		{Value: "arddh", Label: "NAME", Start: 10, End: 15},
	}, doc.Entities(KeepAll))

	assert.Equal(t, []types.Entity{
		{Value: "aerty", Label: "NAME", Start: 0, End: 5},
		{Value: "arddh", Label: "NAME", Start: 10, End: 15},
	}, doc.Entities(LaterWins))

	assert.Equal(t, []string{"NAME", "PERSON"}, p.Labels())

	p.Release()
	assert.True(t, model.released.Load())
}

func TestPipelineModelFailure(t *testing.T) {
	p := NewPipeline(NewModelAnnotator(&stubModel{fail: true}, Blank))

	_, err := p.Process("arddh")
	assert.ErrorContains(t, err, "stub failure")
}

func TestModelAnnotatorChunksLongText(t *testing.T) {
	model := &stubModel{word: "arddh", label: "NAME"}
	p := NewPipeline(NewModelAnnotator(model, Blank))

	text := strings.Repeat("filler ", 2000) + "arddh"
	doc, err := p.Process(text)
	require.NoError(t, err)

	start := len([]rune(text)) - 5
	assert.Equal(t, []types.Entity{{Value: "arddh", Label: "NAME", Start: start, End: start + 5}}, doc.Entities(KeepAll))
}

func TestProcessBatchKeepsOrder(t *testing.T) {
	p := loadDefaultPipeline(t, Blank)

	texts := make([]string, 50)
	for i := range texts {
		texts[i] = fmt.Sprintf("%s number %d", []string{"arddh", "aerty", "nobody"}[i%3], i)
	}

	docs, err := p.ProcessBatch(texts, 4)
	require.NoError(t, err)
	require.Len(t, docs, len(texts))

	for i, doc := range docs {
		assert.Equal(t, texts[i], doc.Text)
		if i%3 == 2 {
			assert.Empty(t, doc.Entities(KeepAll))
		} else {
			assert.Len(t, doc.Entities(KeepAll), 1)
		}
	}

	docs, err = p.ProcessBatch(nil, 4)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestProcessBatchError(t *testing.T) {
	p := NewPipeline(NewModelAnnotator(&stubModel{fail: true}, Blank))

	_, err := p.ProcessBatch([]string{"a", "b", "c"}, 2)
	assert.Error(t, err)
}

func TestModelAnnotatorRejectsOutOfRangeSpans(t *testing.T) {
	for _, span := range []types.Entity{
		{Label: "PHONENUMBER", Start: 0, End: 50},
		{Label: "NAME", Start: -1, End: 3},
		{Label: "SSN", Start: 4, End: 2},
	} {
		p := NewPipeline(NewModelAnnotator(spanModel{spans: []types.Entity{span}}, Plugin))

		var err error
		assert.NotPanics(t, func() { _, err = p.Process("call me") })
		assert.ErrorContains(t, err, "outside text of length 7")
	}
}
