// Package di provides dependency injection configuration for the Lucidly server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/lucidlyapp/lucidly/internal/auth"
	"github.com/lucidlyapp/lucidly/internal/config"
	"github.com/lucidlyapp/lucidly/internal/di/providers"
	"github.com/lucidlyapp/lucidly/internal/logger"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideAuthKey)

	// Data layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideGateway)
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideRegistry)

	// Auth layer
	do.Provide(injector, providers.ProvideBroadcaster)
	do.Provide(injector, providers.ProvideProvider)
	do.Provide(injector, providers.ProvideSessions)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services.
// This triggers lazy initialization in dependency order.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.GatewayHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*providers.RegistryHandle](injector)
	_ = do.MustInvoke[*auth.Sessions](injector)

	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
