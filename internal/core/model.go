package core

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"ner-gazetteer/internal/core/remote"
	"ner-gazetteer/internal/core/types"
)

// ModelType represents the type of NER model
type ModelType string

// Available model types
const (
	Blank    ModelType = "blank"
	Prose    ModelType = "prose"
	Presidio ModelType = "presidio"
	OnnxCnn  ModelType = "onnx_cnn"
	Plugin   ModelType = "plugin"
)

var ErrModelUnavailable = errors.New("model unavailable")

// model types that can be loaded without a model directory
var statelessModelTypes = map[ModelType]struct{}{
	Blank:    {},
	Prose:    {},
	Presidio: {},
	Plugin:   {},
}

type Model interface {
	Predict(text string) ([]types.Entity, error)

	Release()
}

// LabeledModel is implemented by models that know the labels they can emit.
type LabeledModel interface {
	Labels() []string
}

type ModelLoader func(string) (Model, error)

func IsStatelessModel(modelType ModelType) bool {
	_, exists := statelessModelTypes[modelType]
	return exists
}

func ParseModelType(s string) (ModelType, error) {
	switch t := ModelType(strings.ToLower(strings.TrimSpace(s))); t {
	case Blank, Prose, Presidio, OnnxCnn, Plugin:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown model type '%s'", ErrModelUnavailable, s)
	}
}

// NewModelLoaders returns the loader for every model type. pluginCmd is the
// command line used to start the model plugin process for the Plugin type.
func NewModelLoaders(pluginCmd string) map[ModelType]ModelLoader {
	return map[ModelType]ModelLoader{
		Blank: func(_ string) (Model, error) {
			return BlankModel{}, nil
		},
		Prose: func(modelDir string) (Model, error) {
			return LoadProseModel(modelDir)
		},
		Presidio: func(_ string) (Model, error) {
			return NewPresidioModel()
		},
		OnnxCnn: func(modelDir string) (Model, error) {
			return LoadOnnxModel(modelDir)
		},
		Plugin: func(modelDir string) (Model, error) {
			args := strings.Fields(pluginCmd)
			if len(args) == 0 {
				return nil, fmt.Errorf("no model plugin command configured")
			}
			env := append(os.Environ(), "MODEL_DIR="+modelDir)
			return remote.LoadPluginModel(args[0], args[1:], env)
		},
	}
}

// LoadModel resolves modelType through loaders. Every failure wraps
// ErrModelUnavailable.
func LoadModel(loaders map[ModelType]ModelLoader, modelType ModelType, modelDir string) (Model, error) {
	loader, ok := loaders[modelType]
	if !ok {
		return nil, fmt.Errorf("%w: no loader for model type '%s'", ErrModelUnavailable, modelType)
	}

	if !IsStatelessModel(modelType) {
		if modelDir == "" {
			return nil, fmt.Errorf("%w: model type '%s' requires a model directory", ErrModelUnavailable, modelType)
		}
		if _, err := os.Stat(modelDir); err != nil {
			return nil, fmt.Errorf("%w: cannot access model directory: %w", ErrModelUnavailable, err)
		}
	}

	model, err := loader(modelDir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load %s model: %w", ErrModelUnavailable, modelType, err)
	}

	return model, nil
}

// BlankModel recognizes nothing. A pipeline built on it only tokenizes.
type BlankModel struct{}

func (BlankModel) Predict(text string) ([]types.Entity, error) {
	return nil, nil
}

func (BlankModel) Labels() []string {
	return nil
}

func (BlankModel) Release() {}
