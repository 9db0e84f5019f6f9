package commands

import (
	"github.com/spf13/viper"

	"github.com/scribehq/dle/internal/config"
	"github.com/scribehq/dle/internal/logging"
	"github.com/scribehq/dle/internal/metrics"
	"github.com/scribehq/dle/internal/registry"
	"github.com/scribehq/dle/pkg/dle"
)

// app bundles the open resources a command needs, so every RunE can defer
// app.Close() and not worry about leaking the SQLite handle.
type app struct {
	Engine *dle.Engine
	store  *registry.Store
	reg    *registry.Registry
}

func buildApp() (*app, error) {
	log, err := logging.New(debug)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := registry.Open(resolveDBPath())
	if err != nil {
		return nil, err
	}

	reg := registry.New(store)
	mc := metrics.New()
	slug := viper.GetString("repo-slug")
	if slug == "" {
		slug = repoSlug
	}

	engine := dle.New(cfg, reg, log, mc, slug)
	return &app{Engine: engine, store: store, reg: reg}, nil
}

func (a *app) Close() error {
	a.reg.Close()
	return a.store.Close()
}
