package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/onenote-explorer/internal/adapters/driven/config/file"
	"github.com/custodia-labs/onenote-explorer/internal/adapters/driven/identity"
	"github.com/custodia-labs/onenote-explorer/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/onenote-explorer/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/onenote-explorer/internal/adapters/driving/cli"
	"github.com/custodia-labs/onenote-explorer/internal/connectors/microsoft/auth"
	"github.com/custodia-labs/onenote-explorer/internal/connectors/microsoft/onenote"
	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
	"github.com/custodia-labs/onenote-explorer/internal/core/ports/driven"
	"github.com/custodia-labs/onenote-explorer/internal/core/services"
	"github.com/custodia-labs/onenote-explorer/internal/logger"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cli.SetVersion(version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir, err := file.DefaultDir()
	if err != nil {
		logger.Error("%v", err)
		return 1
	}
	configStore := file.NewStore(dir)
	settings, err := configStore.Load()
	if err != nil {
		logger.Error("failed to load config: %v", err)
		return 1
	}

	timeout, err := settings.TimeoutDuration()
	if err != nil {
		logger.Error("%v", err)
		return 1
	}
	cfg := onenote.DefaultConfig()
	cfg.BaseURL = settings.API.BaseURL
	cfg.Timeout = timeout
	cfg.UserAgent = "onenote-explorer/" + version
	dispatcher := onenote.New(cfg)

	catalog, err := services.NewOperationCatalog()
	if err != nil {
		logger.Error("failed to build operation catalog: %v", err)
		return 1
	}

	svc := &cli.Services{
		Catalog:     catalog,
		Invoker:     services.NewInvoker(dispatcher),
		ConfigStore: configStore,
		Config:      settings,
	}

	// Without a client id only the catalog and config commands work.
	if settings.Auth.ClientID != "" {
		cache, closeCache, err := openTokenCache(settings.Storage.TokenCache)
		if err != nil {
			logger.Error("failed to open token cache: %v", err)
			return 1
		}
		defer closeCache()

		provider, err := newIdentityProvider(settings)
		if err != nil {
			logger.Error("failed to set up sign-in: %v", err)
			return 1
		}

		client := auth.New(provider, cache, auth.WithTokenSink(dispatcher.SetAuthorization))
		if client.Restore(ctx) {
			logger.Debug("restored cached sign-in")
		}
		svc.Auth = client
	}

	cli.SetServices(svc)

	if err := cli.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func openTokenCache(location string) (driven.TokenCache, func(), error) {
	if location == file.TokenCacheMemory {
		return memory.NewTokenCache(), func() {}, nil
	}

	store, err := sqlite.Open(location)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Warn("close token cache: %v", err)
		}
	}, nil
}

func newIdentityProvider(settings *file.Config) (driven.IdentityProvider, error) {
	provider := settings.AuthProvider()
	if provider.Flow == domain.AuthFlowBrowser {
		browser, err := identity.NewBrowserProvider(provider, settings.Auth.RedirectURL)
		if err != nil {
			return nil, err
		}
		return browser, nil
	}

	device, err := identity.NewDeviceCodeProvider(provider, os.Stderr)
	if err != nil {
		return nil, err
	}
	return device, nil
}
