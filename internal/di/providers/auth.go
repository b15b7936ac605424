package providers

import (
	"github.com/samber/do/v2"

	"github.com/lucidlyapp/lucidly/internal/auth"
	"github.com/lucidlyapp/lucidly/internal/config"
	"github.com/lucidlyapp/lucidly/internal/logger"
)

// AuthKey wraps the session sealing key bytes.
type AuthKey []byte

// ProvideAuthKey loads or generates the session sealing key.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	key := cfg.Auth.SessionKey
	if len(key) == 0 {
		loaded, err := auth.LoadOrGenerateKey(cfg.App.DataPath)
		if err != nil {
			return nil, err
		}
		key = loaded
		cfg.Auth.SessionKey = key
	}

	log.Info("Session key loaded", "session_duration", cfg.Auth.SessionDuration)

	return AuthKey(key), nil
}

// ProvideBroadcaster provides the session event broadcaster.
func ProvideBroadcaster(i do.Injector) (*auth.Broadcaster, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return auth.NewBroadcaster(log.Component("auth")), nil
}

// ProvideProvider provides the hosted auth provider client.
func ProvideProvider(i do.Injector) (*auth.Provider, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	broadcaster := do.MustInvoke[*auth.Broadcaster](i)

	var verifier *auth.Verifier
	if cfg.Supabase.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.Supabase.JWTSecret)
	} else {
		log.Info("No JWT secret configured, access tokens are checked against the provider")
	}

	return auth.NewProvider(auth.ProviderConfig{
		URL:      cfg.Supabase.URL,
		AnonKey:  cfg.Supabase.AnonKey,
		Provider: cfg.Auth.Provider,
		Timeout:  cfg.Store.Timeout,
	}, verifier, broadcaster, log.Component("auth")), nil
}

// ProvideSessions provides the session gate.
func ProvideSessions(i do.Injector) (*auth.Sessions, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	key := do.MustInvoke[AuthKey](i)
	provider := do.MustInvoke[*auth.Provider](i)

	sealer, err := auth.NewSealer([]byte(key), cfg.Auth.SessionDuration)
	if err != nil {
		return nil, err
	}
	return auth.NewSessions(provider, sealer, log.Component("auth")), nil
}
