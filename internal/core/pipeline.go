package core

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"ner-gazetteer/internal/core/types"
	"ner-gazetteer/internal/core/utils"
)

const modelSource = "model"

// ModelAnnotator runs a Model over a document. Long texts are predicted in
// chunks whose offsets are shifted back onto the document.
type ModelAnnotator struct {
	mu        sync.Mutex
	model     Model
	modelType ModelType
}

func NewModelAnnotator(model Model, modelType ModelType) *ModelAnnotator {
	return &ModelAnnotator{model: model, modelType: modelType}
}

func (a *ModelAnnotator) Name() string {
	return modelSource
}

func (a *ModelAnnotator) predict(text string) ([]types.Entity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.model.Predict(text)
}

func (a *ModelAnnotator) Annotate(doc *Document) error {
	start := time.Now()

	chunks, offsets := utils.SplitText(doc.Text)

	var entities []types.Entity
	for i, chunk := range chunks {
		chunkEntities, err := a.predict(chunk)
		if err != nil {
			return fmt.Errorf("error running model inference: %w", err)
		}
		chunkRunes := []rune(chunk)
		if err := checkSpans(len(chunkRunes), chunkEntities); err != nil {
			return fmt.Errorf("model returned an invalid prediction: %w", err)
		}
		for _, e := range ValidateSpans(chunkRunes, chunkEntities) {
			entities = append(entities, e.Shift(offsets[i]))
		}
	}

	slog.Debug("model annotated document", "doc_id", doc.Id, "model_type", a.modelType, "chunks", len(chunks), "entities", len(entities), "duration", time.Since(start))

	return doc.AddSpans(a.Name(), entities)
}

func (a *ModelAnnotator) Labels() []string {
	if lm, ok := a.model.(LabeledModel); ok {
		return lm.Labels()
	}
	return nil
}

func (a *ModelAnnotator) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.model.Release()
}

type PipelineConfig struct {
	ModelType ModelType
	ModelDir  string
}

// Pipeline tokenizes text and applies its annotators in order. The model
// annotator always runs first.
type Pipeline struct {
	model      *ModelAnnotator
	annotators []Annotator
}

func LoadPipeline(cfg PipelineConfig, loaders map[ModelType]ModelLoader) (*Pipeline, error) {
	slog.Info("loading pipeline", "model_type", cfg.ModelType, "model_dir", cfg.ModelDir)

	model, err := LoadModel(loaders, cfg.ModelType, cfg.ModelDir)
	if err != nil {
		return nil, err
	}

	return NewPipeline(NewModelAnnotator(model, cfg.ModelType)), nil
}

func NewPipeline(model *ModelAnnotator) *Pipeline {
	return &Pipeline{
		model:      model,
		annotators: []Annotator{model},
	}
}

func (p *Pipeline) AddAnnotator(a Annotator) {
	p.annotators = append(p.annotators, a)
}

func (p *Pipeline) Process(text string) (*Document, error) {
	doc := NewDocument(text)
	for _, a := range p.annotators {
		if err := a.Annotate(doc); err != nil {
			return nil, fmt.Errorf("annotator '%s' failed: %w", a.Name(), err)
		}
	}
	return doc, nil
}

type indexedDocument struct {
	index int
	doc   *Document
}

// ProcessBatch processes texts on up to maxWorkers goroutines. Documents are
// returned in input order; the first error encountered is returned.
func (p *Pipeline) ProcessBatch(texts []string, maxWorkers int) ([]*Document, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	queue := make(chan int, len(texts))
	for i := range texts {
		queue <- i
	}
	close(queue)

	completed := make(chan utils.CompletedTask[indexedDocument], len(texts))
	utils.RunInPool(func(i int) (indexedDocument, error) {
		doc, err := p.Process(texts[i])
		if err != nil {
			return indexedDocument{}, fmt.Errorf("text %d: %w", i, err)
		}
		return indexedDocument{index: i, doc: doc}, nil
	}, queue, completed, max(maxWorkers, 1))

	docs := make([]*Document, len(texts))
	var firstErr error
	for task := range completed {
		if task.Error != nil {
			if firstErr == nil {
				firstErr = task.Error
			}
			continue
		}
		docs[task.Result.index] = task.Result.doc
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return docs, nil
}

// Labels lists every label the pipeline's annotators can produce.
func (p *Pipeline) Labels() []string {
	seen := make(map[string]struct{})
	for _, a := range p.annotators {
		la, ok := a.(interface{ Labels() []string })
		if !ok {
			continue
		}
		for _, l := range la.Labels() {
			seen[l] = struct{}{}
		}
	}

	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

func (p *Pipeline) Release() {
	p.model.Release()
}
