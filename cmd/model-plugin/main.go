package main

import (
	"log"
	"log/slog"
	"os"

	"ner-gazetteer/internal/core"
	"ner-gazetteer/internal/core/types"
	"ner-gazetteer/plugin/shared"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-plugin"
)

type Config struct {
	ModelType        string `env:"PLUGIN_MODEL_TYPE" envDefault:"presidio"`
	ModelDir         string `env:"MODEL_DIR" envDefault:""`
	OnnxRuntimeDylib string `env:"ONNX_RUNTIME_DYLIB"`
}

// servedModel exposes an in-process model over the plugin interface.
type servedModel struct {
	model core.Model
}

func (m *servedModel) Predict(text string) ([]types.Entity, error) {
	return m.model.Predict(text)
}

func (m *servedModel) Labels() ([]string, error) {
	if lm, ok := m.model.(core.LabeledModel); ok {
		return lm.Labels(), nil
	}
	return nil, nil
}

func main() {
	// stdout carries the plugin handshake
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	log.SetOutput(os.Stderr)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	modelType, err := core.ParseModelType(cfg.ModelType)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if modelType == core.Plugin {
		log.Fatalf("model plugin cannot serve model type '%s'", modelType)
	}

	if modelType == core.OnnxCnn {
		if err := core.InitOnnxRuntime(cfg.OnnxRuntimeDylib); err != nil {
			log.Fatalf("could not init ONNX Runtime: %v", err)
		}
		defer core.DestroyOnnxRuntime()
	}

	model, err := core.LoadModel(core.NewModelLoaders(""), modelType, cfg.ModelDir)
	if err != nil {
		log.Fatalf("could not load model: %v", err)
	}
	defer model.Release()

	slog.Info("serving model plugin", "model_type", modelType, "model_dir", cfg.ModelDir)

	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: shared.Handshake,
		Plugins: map[string]plugin.Plugin{
			shared.ModelPluginName: &shared.ModelPlugin{Impl: &servedModel{model: model}},
		},
	})
}
