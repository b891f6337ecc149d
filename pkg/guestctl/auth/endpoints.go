package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-resty/resty/v2"
)

// Endpoints are the identity provider URLs used by the device flow.
type Endpoints struct {
	Issuer                 string
	DeviceAuthorizationURL string
	TokenURL               string
	UserInfoURL            string
}

func (e Endpoints) Validate() error {
	if e.DeviceAuthorizationURL == "" {
		return errors.New("device authorization endpoint is required")
	}
	if e.TokenURL == "" {
		return errors.New("token endpoint is required")
	}
	return nil
}

// KeycloakEndpoints derives the realm's OpenID Connect endpoints from the
// Keycloak base URL (for example https://guest.example.org/auth).
func KeycloakEndpoints(baseURL, realm string) Endpoints {
	issuer := strings.TrimRight(baseURL, "/") + "/realms/" + realm
	base := issuer + "/protocol/openid-connect"
	return Endpoints{
		Issuer:                 issuer,
		DeviceAuthorizationURL: base + "/auth/device",
		TokenURL:               base + "/token",
		UserInfoURL:            base + "/userinfo",
	}
}

// Discover resolves the endpoints from the issuer's openid-configuration document.
func Discover(ctx context.Context, client *resty.Client, issuer string) (Endpoints, error) {
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, client.GetClient()), strings.TrimRight(issuer, "/"))
	if err != nil {
		return Endpoints{}, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	var claims struct {
		DeviceAuthorizationEndpoint string `json:"device_authorization_endpoint"`
		UserInfoEndpoint            string `json:"userinfo_endpoint"`
	}
	if err := provider.Claims(&claims); err != nil {
		return Endpoints{}, fmt.Errorf("failed to decode provider metadata: %w", err)
	}
	endpoints := Endpoints{
		Issuer:                 strings.TrimRight(issuer, "/"),
		DeviceAuthorizationURL: claims.DeviceAuthorizationEndpoint,
		TokenURL:               provider.Endpoint().TokenURL,
		UserInfoURL:            claims.UserInfoEndpoint,
	}
	if err := endpoints.Validate(); err != nil {
		return Endpoints{}, fmt.Errorf("provider %s: %w", issuer, err)
	}
	return endpoints, nil
}

// UserInfo fetches the claims the provider reports for the credential's subject.
func UserInfo(ctx context.Context, client *resty.Client, endpoints Endpoints, cred *Credential) (map[string]any, error) {
	if endpoints.UserInfoURL == "" {
		return nil, errors.New("userinfo endpoint is not configured")
	}
	if cred == nil {
		return nil, ErrNoCredential
	}
	provider := (&oidc.ProviderConfig{
		IssuerURL:     endpoints.Issuer,
		DeviceAuthURL: endpoints.DeviceAuthorizationURL,
		TokenURL:      endpoints.TokenURL,
		UserInfoURL:   endpoints.UserInfoURL,
	}).NewProvider(ctx)
	info, err := provider.UserInfo(oidc.ClientContext(ctx, client.GetClient()), staticTokenSource(cred))
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	claims := map[string]any{}
	if err := info.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}
	return claims, nil
}
