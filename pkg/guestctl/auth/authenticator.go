package auth

import (
	"context"
	"errors"
	"io"

	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/guest-quantum/guestctl/pkg/guestctl/transport"
)

// Config carries everything an Authenticator needs. Zero Clock, Logger and Prompt
// fall back to the real clock, a no-op logger and io.Discard.
type Config struct {
	Endpoints   Endpoints
	ClientID    string
	Scopes      []string
	Transport   transport.Options
	Store       CredentialStore
	Clock       clockwork.Clock
	Logger      *zap.SugaredLogger
	Prompt      io.Writer
	OpenBrowser func(url string) error
}

type Authenticator struct {
	endpoints   Endpoints
	clientID    string
	scopes      []string
	http        *resty.Client
	store       CredentialStore
	clock       clockwork.Clock
	log         *zap.SugaredLogger
	out         io.Writer
	openBrowser func(url string) error
}

// DefaultScopes is requested when the configuration names none.
var DefaultScopes = []string{"openid"}

func New(cfg Config) (*Authenticator, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client-id is required")
	}
	if err := cfg.Endpoints.Validate(); err != nil {
		return nil, err
	}
	if cfg.Store == nil {
		return nil, errors.New("credential store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Transport.Logger == nil {
		cfg.Transport.Logger = cfg.Logger
	}
	httpClient, err := transport.New(cfg.Transport)
	if err != nil {
		return nil, err
	}
	a := &Authenticator{
		endpoints:   cfg.Endpoints,
		clientID:    cfg.ClientID,
		scopes:      cfg.Scopes,
		http:        httpClient,
		store:       cfg.Store,
		clock:       cfg.Clock,
		log:         cfg.Logger,
		out:         cfg.Prompt,
		openBrowser: cfg.OpenBrowser,
	}
	if len(a.scopes) == 0 {
		a.scopes = append([]string(nil), DefaultScopes...)
	}
	if a.clock == nil {
		a.clock = clockwork.NewRealClock()
	}
	if a.out == nil {
		a.out = io.Discard
	}
	return a, nil
}

func (a *Authenticator) Store() CredentialStore {
	return a.store
}

func (a *Authenticator) Endpoints() Endpoints {
	return a.endpoints
}

// HTTPClient exposes the configured transport for auxiliary provider calls.
func (a *Authenticator) HTTPClient() *resty.Client {
	return a.http
}

// Check loads the stored credential without touching the network. It returns
// ErrNoCredential or ErrCredentialExpiringSoon when a new device flow is needed;
// the expiring credential is returned alongside the latter.
func (a *Authenticator) Check() (*Credential, error) {
	cred, err := a.store.Load()
	if err != nil {
		return nil, err
	}
	if !cred.Usable(a.clock.Now()) {
		return cred, ErrCredentialExpiringSoon
	}
	return cred, nil
}

// EnsureValidCredential returns the stored credential if it stays valid for at
// least ExpiryMargin and runs the device flow otherwise.
func (a *Authenticator) EnsureValidCredential(ctx context.Context) (*Credential, error) {
	cred, err := a.Check()
	switch {
	case err == nil:
		a.log.Debugw("Reusing stored credential", "expiresAt", cred.Expiry())
		return cred, nil
	case errors.Is(err, ErrNoCredential), errors.Is(err, ErrCredentialExpiringSoon):
		a.log.Debugw("Starting device authorization", "reason", err.Error())
		return a.RunDeviceFlow(ctx)
	default:
		return nil, err
	}
}

func (a *Authenticator) Logout() error {
	return a.store.Delete()
}
