package cmd

import (
	"fmt"

	"portico/internal/assets"
	"portico/internal/bootstrap"
	"portico/internal/config"
	"portico/internal/gateway"
	"portico/internal/idp"
	"portico/internal/registry"
	"portico/internal/session"
	"portico/internal/storage"
)

// app holds the wired component graph every subcommand works against.
type app struct {
	cfg       config.PlatformConfig
	adapter   *storage.Adapter
	client    *gateway.Client
	store     *session.Store
	exchanger *idp.Exchanger
	resolver  *registry.Resolver
	loader    *assets.Loader
	init      *bootstrap.Initializer
}

// buildApp loads configuration and constructs the component graph.
func buildApp() (*app, error) {
	path := configPath
	if path == "" {
		path = config.GetDefaultConfigPathOrPanic()
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if cfg.Gateway == "" {
		return nil, fmt.Errorf("no gateway configured, set 'gateway' in %s/config.yaml", path)
	}

	adapter, err := storage.NewAdapter(cfg.StateDirOrDefault(path))
	if err != nil {
		return nil, err
	}

	client, err := gateway.NewClient()
	if err != nil {
		return nil, err
	}

	store := session.NewStore(adapter, client, cfg)
	exchanger := idp.NewExchanger(store, client, cfg)
	resolver := registry.NewResolver(client, adapter, cfg)
	loader := assets.NewLoader()

	return &app{
		cfg:       cfg,
		adapter:   adapter,
		client:    client,
		store:     store,
		exchanger: exchanger,
		resolver:  resolver,
		loader:    loader,
		init:      bootstrap.NewInitializer(store, exchanger, resolver, loader, cfg),
	}, nil
}
