// Package config loads, normalizes, and validates imagetruth CLI settings.
//
// Settings come from a TOML file (default ~/.config/imagetruth/config.toml),
// then IMAGETRUTH_* environment variables override individual keys.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	imagetruth "github.com/anatolykoptev/go-imagetruth"
)

//go:embed sample_config.toml
var sampleConfig string

// Fusion mirrors imagetruth.FusionOptions.
type Fusion struct {
	ExifWeight           float64 `toml:"exif_weight"`
	ModelWeight          float64 `toml:"model_weight"`
	UncertaintyThreshold float64 `toml:"uncertainty_threshold"`
}

// Classifier configures the remote inference endpoint.
type Classifier struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	InputSize      int    `toml:"input_size"`
}

// History configures result persistence.
type History struct {
	Enabled       bool    `toml:"enabled"`
	Path          string  `toml:"path"`
	MinConfidence float64 `toml:"min_confidence"`
}

// Logging configures the CLI log handler.
type Logging struct {
	Level string `toml:"level"`
}

// Config is the full CLI configuration.
type Config struct {
	Fusion     Fusion     `toml:"fusion"`
	Classifier Classifier `toml:"classifier"`
	History    History    `toml:"history"`
	Logging    Logging    `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Fusion: Fusion{
			ExifWeight:           imagetruth.DefaultAnalysisExifWeight,
			ModelWeight:          imagetruth.DefaultAnalysisModelWeight,
			UncertaintyThreshold: imagetruth.DefaultUncertaintyThreshold,
		},
		Classifier: Classifier{
			TimeoutSeconds: 30,
			InputSize:      imagetruth.ModelInputSize,
		},
		History: History{
			Enabled:       true,
			Path:          "~/.local/share/imagetruth/history.db",
			MinConfidence: imagetruth.DefaultPersistMinConfidence,
		},
		Logging: Logging{Level: "info"},
	}
}

// SampleConfig returns the commented sample configuration file.
func SampleConfig() string {
	return sampleConfig
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/imagetruth/config.toml")
}

// Load reads path (or the default location when empty), applies environment
// overrides, normalizes and validates. exists reports whether a file was read.
func Load(path string) (cfg *Config, resolvedPath string, exists bool, err error) {
	c := Default()

	resolvedPath, exists, err = resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&c); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, "", false, err
	}
	if err := c.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := c.Validate(); err != nil {
		return nil, "", false, err
	}

	return &c, resolvedPath, exists, nil
}

// CreateSample writes the sample configuration to path, refusing to overwrite.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists at %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil { //nolint:gosec // config is not secret
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// FusionOptions converts the fusion section.
func (c *Config) FusionOptions() imagetruth.FusionOptions {
	return imagetruth.FusionOptions{
		ExifWeight:           c.Fusion.ExifWeight,
		ModelWeight:          c.Fusion.ModelWeight,
		UncertaintyThreshold: c.Fusion.UncertaintyThreshold,
	}
}

// ClassifierTimeout returns the classifier timeout as a duration.
func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.Classifier.TimeoutSeconds) * time.Second
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}

type lookupFunc func(string) (string, bool)

// applyEnv overrides file values with IMAGETRUTH_* variables.
func (c *Config) applyEnv(lookup lookupFunc) error {
	if v, ok := lookup("IMAGETRUTH_CLASSIFIER_URL"); ok {
		c.Classifier.URL = v
	}
	if v, ok := lookup("IMAGETRUTH_HISTORY_PATH"); ok {
		c.History.Path = v
	}
	if v, ok := lookup("IMAGETRUTH_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	if v, ok := lookup("IMAGETRUTH_HISTORY_ENABLED"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("IMAGETRUTH_HISTORY_ENABLED: %w", err)
		}
		c.History.Enabled = b
	}
	return nil
}

func (c *Config) normalize() error {
	c.Classifier.URL = strings.TrimSpace(c.Classifier.URL)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Classifier.InputSize == 0 {
		c.Classifier.InputSize = imagetruth.ModelInputSize
	}
	if c.History.Path != "" {
		expanded, err := expandPath(c.History.Path)
		if err != nil {
			return err
		}
		c.History.Path = expanded
	}
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	f := c.Fusion
	if f.ExifWeight < 0 || f.ExifWeight > 1 {
		return fmt.Errorf("fusion.exif_weight must be within [0, 1], got %v", f.ExifWeight)
	}
	if f.ModelWeight < 0 || f.ModelWeight > 1 {
		return fmt.Errorf("fusion.model_weight must be within [0, 1], got %v", f.ModelWeight)
	}
	if f.ExifWeight == 0 && f.ModelWeight == 0 {
		return errors.New("fusion.exif_weight and fusion.model_weight must not both be 0")
	}
	if f.UncertaintyThreshold <= 0 || f.UncertaintyThreshold > 100 {
		return fmt.Errorf("fusion.uncertainty_threshold must be within (0, 100], got %v", f.UncertaintyThreshold)
	}
	if c.Classifier.TimeoutSeconds < 0 {
		return errors.New("classifier.timeout_seconds must not be negative")
	}
	if c.Classifier.InputSize < 0 {
		return errors.New("classifier.input_size must not be negative")
	}
	if c.History.Enabled && c.History.Path == "" {
		return errors.New("history.path is required when history is enabled")
	}
	if c.History.MinConfidence < 0 || c.History.MinConfidence > 100 {
		return fmt.Errorf("history.min_confidence must be within [0, 100], got %v", c.History.MinConfidence)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		path = defaultPath
	}

	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %s is a directory", expanded)
	}
	return expanded, true, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
