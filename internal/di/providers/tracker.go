package providers

import (
	"github.com/samber/do/v2"

	"github.com/lucidlyapp/lucidly/internal/logger"
	"github.com/lucidlyapp/lucidly/internal/tracker"
)

// RegistryHandle wraps the tracker registry so shutdown waits for in-flight
// store calls to reconcile.
type RegistryHandle struct {
	*tracker.Registry
}

// Shutdown implements do.Shutdownable.
func (h *RegistryHandle) Shutdown() error {
	h.Wait()
	return nil
}

// ProvideRegistry provides the per-user tracker registry.
func ProvideRegistry(i do.Injector) (*RegistryHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	gw := do.MustInvoke[*GatewayHandle](i)
	index := do.MustInvoke[*SearchIndexHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	registry := tracker.NewRegistry(gw.Gateway, log.Component("tracker"), index.Index, sseHandle.Manager)
	return &RegistryHandle{Registry: registry}, nil
}
