// Package enginefactory builds rendering engines from configuration.
package enginefactory

import (
	"fmt"

	"typeset-hq/gutenberg/pkg/config"
	"typeset-hq/gutenberg/pkg/engines"
	"typeset-hq/gutenberg/pkg/engines/chromium"
	"typeset-hq/gutenberg/pkg/engines/remote"
)

// Build creates one engine from its configuration.
func Build(cfg config.EngineConfig) (engines.Engine, error) {
	switch cfg.Type {
	case "chromium":
		return chromium.New(chromium.Config{
			Name:       cfg.Name,
			Priority:   cfg.Priority,
			BrowserBin: cfg.BrowserBin,
			NoSandbox:  cfg.NoSandbox,
		}), nil

	case "remote":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("engine %q: remote engines require base_url", cfg.Name)
		}
		return remote.New(remote.Config{
			Name:           cfg.Name,
			Priority:       cfg.Priority,
			BaseURL:        cfg.BaseURL,
			APIKey:         cfg.APIKey,
			RequestTimeout: cfg.RequestTimeout,
		}), nil

	default:
		return nil, fmt.Errorf("engine %q: unknown engine type %q", cfg.Name, cfg.Type)
	}
}

// BuildAll creates every configured engine, in configuration order.
func BuildAll(cfgs []config.EngineConfig) ([]engines.Engine, error) {
	built := make([]engines.Engine, 0, len(cfgs))
	for _, cfg := range cfgs {
		eng, err := Build(cfg)
		if err != nil {
			return nil, err
		}
		built = append(built, eng)
	}
	return built, nil
}
