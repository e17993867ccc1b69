package config

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"ner-gazetteer/internal/core"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	ModelType        string `env:"MODEL_TYPE" envDefault:"blank"`
	ModelDir         string `env:"MODEL_DIR" envDefault:""`
	ModelPluginCmd   string `env:"MODEL_PLUGIN_CMD" envDefault:""`
	OnnxRuntimeDylib string `env:"ONNX_RUNTIME_DYLIB"`

	GazetteerPath          string `env:"GAZETTEER_PATH" envDefault:""`
	GazetteerCaseSensitive *bool  `env:"GAZETTEER_CASE_SENSITIVE"`
	MergePolicy            string `env:"MERGE_POLICY" envDefault:"keep_all"`

	Port     int    `env:"PORT" envDefault:"8001"`
	Workers  int    `env:"WORKERS" envDefault:"4"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadEnvFile loads variables from a dotenv file into the process
// environment. An empty path is a no-op.
func LoadEnvFile(path string) error {
	if path == "" {
		log.Printf("no env file specified, using os.Environ only")
		return nil
	}

	log.Printf("loading env from file %s", path)
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading .env file '%s': %w", path, err)
	}
	return nil
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if _, err := core.ParseModelType(c.ModelType); err != nil {
		return err
	}
	if _, err := core.ParseMergePolicy(c.MergePolicy); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be at least 1, got %d", c.Workers)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

func (c Config) Pipeline() core.PipelineConfig {
	modelType, _ := core.ParseModelType(c.ModelType)
	return core.PipelineConfig{ModelType: modelType, ModelDir: c.ModelDir}
}

func (c Config) Merge() core.MergePolicy {
	policy, _ := core.ParseMergePolicy(c.MergePolicy)
	return policy
}

func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL '%s': %w", c.LogLevel, err)
	}
	return level, nil
}

// SetupLogging routes slog output to stderr at the configured level.
func (c Config) SetupLogging() {
	level, _ := c.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
