package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	imagetruth "github.com/anatolykoptev/go-imagetruth"
	"github.com/anatolykoptev/go-imagetruth/historydb"
	"github.com/anatolykoptev/go-imagetruth/internal/config"
)

type commandContext struct {
	configFlag  *string
	verboseFlag *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		verboseFlag: verboseFlag,
	}
}

// ensureConfig loads .env (if present) and the TOML config exactly once.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Debug("imagetruth: .env not loaded", "error", err.Error())
		}

		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		setupLogging(cfg.Logging.Level, c.verbose())
	})
	return c.config, c.configErr
}

func (c *commandContext) verbose() bool {
	return c.verboseFlag != nil && *c.verboseFlag
}

// openHistory opens the configured store, or returns nil when history is disabled.
func (c *commandContext) openHistory(ctx context.Context) (*historydb.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, nil
	}
	store, err := historydb.Open(ctx, cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return store, nil
}

// analyzer builds the library Config from CLI settings. rawScore >= 0
// replaces the remote classifier with a fixed model output.
func (c *commandContext) analyzer(history imagetruth.History, rawScore float64) (*imagetruth.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	a := &imagetruth.Config{
		Fusion:               cfg.FusionOptions(),
		ModelInputSize:       cfg.Classifier.InputSize,
		PersistMinConfidence: cfg.History.MinConfidence,
		OnPanic: func(tag string, r any) {
			slog.Error("imagetruth: recovered panic", "tag", tag, "panic", fmt.Sprint(r))
		},
	}
	if history != nil {
		a.History = history
	}

	switch {
	case rawScore >= 0:
		fixed := imagetruth.ResultFromRawScore(rawScore)
		a.Classifier = imagetruth.ClassifierFunc(func(context.Context, *imagetruth.PixelBuffer) (*imagetruth.ClassifierResult, error) {
			return &fixed, nil
		})
	case cfg.Classifier.URL != "":
		a.Classifier = &imagetruth.RemoteClassifier{
			URL:     cfg.Classifier.URL,
			Timeout: cfg.ClassifierTimeout(),
		}
	default:
		slog.Debug("imagetruth: no classifier configured, using metadata only")
	}
	return a, nil
}

func setupLogging(level string, verbose bool) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
