package cmd

import (
	"fmt"
	"log"
	"log/slog"

	"ner-gazetteer/internal/config"
	"ner-gazetteer/internal/core"
)

// LoadConfig loads the optional env file and parses the process config,
// exiting on any error.
func LoadConfig(envPath string) config.Config {
	if err := config.LoadEnvFile(envPath); err != nil {
		log.Fatalf("%v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error parsing config: %v", err)
	}
	cfg.SetupLogging()
	return cfg
}

// InitModelRuntime prepares native runtimes needed by the configured model
// type. The returned func releases them.
func InitModelRuntime(cfg config.Config) func() {
	if cfg.Pipeline().ModelType != core.OnnxCnn {
		return func() {}
	}

	if err := core.InitOnnxRuntime(cfg.OnnxRuntimeDylib); err != nil {
		log.Fatalf("could not init ONNX Runtime: %v", err)
	}
	return core.DestroyOnnxRuntime
}

// BuildPipeline loads the configured model and adds the gazetteer annotator
// after it.
func BuildPipeline(cfg config.Config) (*core.Pipeline, error) {
	pipeline, err := core.LoadPipeline(cfg.Pipeline(), core.NewModelLoaders(cfg.ModelPluginCmd))
	if err != nil {
		return nil, err
	}

	gazCfg, err := core.LoadGazetteerConfig(cfg.GazetteerPath)
	if err != nil {
		pipeline.Release()
		return nil, err
	}
	if cfg.GazetteerCaseSensitive != nil {
		gazCfg.CaseSensitive = *cfg.GazetteerCaseSensitive
	}

	gazetteer, err := core.NewGazetteerAnnotatorFromConfig(gazCfg)
	if err != nil {
		pipeline.Release()
		return nil, fmt.Errorf("error building gazetteer: %w", err)
	}
	pipeline.AddAnnotator(gazetteer)

	slog.Info("pipeline ready", "model_type", cfg.ModelType, "gazetteer", gazetteer.Name(), "merge_policy", cfg.Merge())
	return pipeline, nil
}
