package cmd

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/guest-quantum/guestctl/pkg/guestctl/auth"
	"github.com/guest-quantum/guestctl/pkg/guestctl/client"
	"github.com/guest-quantum/guestctl/pkg/guestctl/config"
	"github.com/guest-quantum/guestctl/pkg/guestctl/transport"
	"github.com/guest-quantum/guestctl/pkg/system"
	"github.com/guest-quantum/guestctl/pkg/version"
)

var errNotAuthenticated = errors.New("not authenticated; run 'guestctl auth login'")

func transportOptions(rt *runtimeState, ctxCfg *config.Context) (transport.Options, error) {
	settings := rt.Settings()
	timeout, err := settings.TimeoutDuration()
	if err != nil {
		return transport.Options{}, err
	}
	opts := transport.Options{
		UserAgent:  version.UserAgent(),
		Timeout:    timeout,
		RetryCount: settings.TransportRetryCount(),
		Logger:     rt.Logger(),
	}
	if ctxCfg != nil {
		opts.TLS = ctxCfg.TLSPolicy()
	}
	return opts, nil
}

func credentialStore(rt *runtimeState, ctxCfg *config.Context) (auth.CredentialStore, error) {
	storage := rt.TokenStorage()
	if !slices.Contains(config.TokenStorages, storage) {
		return nil, fmt.Errorf("unsupported token storage %q", storage)
	}
	if storage == config.TokenStorageKeychain {
		return auth.NewKeyringStore(ctxCfg.Name), nil
	}
	return auth.NewFileStore(ctxCfg.ResolveCredentialPath()), nil
}

// resolveEndpoints derives the Keycloak realm endpoints from the context, using
// OIDC discovery when the context asks for it.
func resolveEndpoints(cmdCtx context.Context, rt *runtimeState, ctxCfg *config.Context, opts transport.Options) (auth.Endpoints, error) {
	if !ctxCfg.Keycloak.Discovery {
		return auth.KeycloakEndpoints(ctxCfg.KeycloakBaseURL(), ctxCfg.Keycloak.Realm), nil
	}
	httpClient, err := transport.New(opts)
	if err != nil {
		return auth.Endpoints{}, err
	}
	rt.Logger().Debugw("Discovering identity provider endpoints", "issuer", ctxCfg.Issuer())
	return auth.Discover(cmdCtx, httpClient, ctxCfg.Issuer())
}

func buildAuthenticator(cmdCtx context.Context, rt *runtimeState) (*auth.Authenticator, *config.Context, error) {
	if err := rt.EnsureConfigLoaded(); err != nil {
		return nil, nil, err
	}
	ctxCfg, err := rt.ResolveContext()
	if err != nil {
		return nil, nil, err
	}
	opts, err := transportOptions(rt, ctxCfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := credentialStore(rt, ctxCfg)
	if err != nil {
		return nil, nil, err
	}
	endpoints, err := resolveEndpoints(cmdCtx, rt, ctxCfg, opts)
	if err != nil {
		return nil, nil, err
	}
	rt.Logger().Debugw("Using credential store", append(system.ContextFields(ctxCfg.Name, ctxCfg.Server), "store", store.Location())...)
	authenticator, err := auth.New(auth.Config{
		Endpoints:   endpoints,
		ClientID:    ctxCfg.Keycloak.ClientID,
		Scopes:      ctxCfg.Keycloak.Scopes,
		Transport:   opts,
		Store:       store,
		Clock:       rt.Clock(),
		Logger:      rt.Logger(),
		Prompt:      rt.ErrWriter(),
		OpenBrowser: rt.openBrowser,
	})
	if err != nil {
		return nil, nil, err
	}
	return authenticator, ctxCfg, nil
}

// accessCredential returns a credential valid for at least auth.ExpiryMargin.
// Non-interactive runs never start a device login.
func accessCredential(cmdCtx context.Context, rt *runtimeState) (*auth.Credential, error) {
	authenticator, _, err := buildAuthenticator(cmdCtx, rt)
	if err != nil {
		return nil, err
	}
	return ensureCredential(cmdCtx, rt, authenticator)
}

func ensureCredential(cmdCtx context.Context, rt *runtimeState, authenticator *auth.Authenticator) (*auth.Credential, error) {
	if !rt.nonInteractive {
		return authenticator.EnsureValidCredential(cmdCtx)
	}
	cred, err := authenticator.Check()
	if errors.Is(err, auth.ErrNoCredential) || errors.Is(err, auth.ErrCredentialExpiringSoon) {
		return nil, fmt.Errorf("%w (%v)", errNotAuthenticated, err)
	}
	return cred, err
}

func resolveToken(cmdCtx context.Context, rt *runtimeState) (string, error) {
	if rt.tokenOverride != "" {
		return rt.tokenOverride, nil
	}
	cred, err := accessCredential(cmdCtx, rt)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

func buildClient(cmdCtx context.Context, rt *runtimeState) (*client.Client, error) {
	c, _, err := buildClientWithToken(cmdCtx, rt)
	return c, err
}

// buildClientWithToken also returns the bearer token so callers can inspect its claims.
func buildClientWithToken(cmdCtx context.Context, rt *runtimeState) (*client.Client, string, error) {
	var ctxCfg *config.Context
	if rt.serverOverride == "" || rt.tokenOverride == "" {
		if err := rt.EnsureConfigLoaded(); err != nil {
			return nil, "", err
		}
		resolved, err := rt.ResolveContext()
		if err != nil {
			return nil, "", err
		}
		ctxCfg = resolved
	}
	server := rt.resolveServer(ctxCfg)
	if server == "" {
		return nil, "", errors.New("server is required")
	}
	token, err := resolveToken(cmdCtx, rt)
	if err != nil {
		return nil, "", err
	}
	opts, err := transportOptions(rt, ctxCfg)
	if err != nil {
		return nil, "", err
	}
	c, err := client.New(
		client.WithServer(server),
		client.WithToken(token),
		client.WithUserAgent(opts.UserAgent),
		client.WithTLSPolicy(opts.TLS),
		client.WithTimeout(opts.Timeout),
		client.WithRetry(opts.RetryCount, 0, 0),
		client.WithLogger(opts.Logger),
	)
	if err != nil {
		return nil, "", err
	}
	return c, token, nil
}
