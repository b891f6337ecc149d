package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultPollInterval = 5 * time.Second
	SlowDownIncrement   = 2 * time.Second

	deviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"
)

// DeviceSession is the transient state of one device authorization attempt.
type DeviceSession struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int64  `json:"expires_in"`
	Interval                int64  `json:"interval"`
}

func (s *DeviceSession) VerificationURL() string {
	if s.VerificationURIComplete != "" {
		return s.VerificationURIComplete
	}
	return s.VerificationURI
}

func (s *DeviceSession) PollInterval() time.Duration {
	if s.Interval <= 0 {
		return DefaultPollInterval
	}
	return time.Duration(s.Interval) * time.Second
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// RunDeviceFlow performs a full device authorization: it requests a device code,
// prompts the user, polls the token endpoint until the grant is approved, denied
// or expired, and persists the issued credential.
func (a *Authenticator) RunDeviceFlow(ctx context.Context) (*Credential, error) {
	session, err := a.requestDeviceCode(ctx)
	if err != nil {
		return nil, err
	}
	a.prompt(session)

	start := a.clock.Now()
	var deadline time.Time
	if session.ExpiresIn > 0 {
		deadline = start.Add(time.Duration(session.ExpiresIn) * time.Second)
	}
	interval := session.PollInterval()

	for attempt := 1; ; attempt++ {
		if err := a.sleep(ctx, interval); err != nil {
			return nil, err
		}
		if !deadline.IsZero() && a.clock.Now().After(deadline) {
			return nil, fmt.Errorf("%w: user code %s was not approved within %s",
				ErrDeviceSessionExpired, session.UserCode, time.Duration(session.ExpiresIn)*time.Second)
		}

		a.log.Debugw("Polling token endpoint", "attempt", attempt, "interval", interval)
		cred, err := a.pollToken(ctx, session.DeviceCode)
		switch {
		case err == nil:
			if err := a.store.Save(cred); err != nil {
				return nil, fmt.Errorf("failed to persist credential: %w", err)
			}
			a.log.Infow("Authentication complete", "expiresAt", cred.Expiry(), "store", a.store.Location())
			return cred, nil
		case errors.Is(err, ErrAuthorizationPending):
			continue
		case errors.Is(err, ErrSlowDown):
			interval += SlowDownIncrement
			a.log.Debugw("Provider asked to slow down", "interval", interval)
		default:
			return nil, err
		}
	}
}

func (a *Authenticator) requestDeviceCode(ctx context.Context) (*DeviceSession, error) {
	form := map[string]string{
		"client_id": a.clientID,
		"scope":     strings.Join(a.scopes, " "),
	}
	resp, err := a.http.R().SetContext(ctx).SetFormData(form).Post(a.endpoints.DeviceAuthorizationURL)
	if err != nil {
		return nil, transportError(ctx, "device authorization request", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("device authorization failed: %w", providerError(resp))
	}
	var session DeviceSession
	if err := json.Unmarshal(resp.Body(), &session); err != nil {
		return nil, fmt.Errorf("failed to decode device authorization response: %w", err)
	}
	if session.DeviceCode == "" || session.UserCode == "" {
		return nil, errors.New("device authorization response is missing device_code or user_code")
	}
	return &session, nil
}

func (a *Authenticator) pollToken(ctx context.Context, deviceCode string) (*Credential, error) {
	resp, err := a.http.R().SetContext(ctx).SetFormData(map[string]string{
		"client_id":   a.clientID,
		"device_code": deviceCode,
		"grant_type":  deviceCodeGrantType,
	}).Post(a.endpoints.TokenURL)
	if err != nil {
		return nil, transportError(ctx, "token request", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, providerError(resp)
	}
	receivedAt := a.clock.Now()

	var payload tokenResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return nil, errors.New("token response is missing access_token")
	}
	return &Credential{
		AccessToken:  payload.AccessToken,
		ExpiresIn:    payload.ExpiresIn,
		ExpiresAt:    receivedAt.Unix() + payload.ExpiresIn,
		TokenType:    payload.TokenType,
		RefreshToken: payload.RefreshToken,
		IDToken:      payload.IDToken,
		Scope:        payload.Scope,
	}, nil
}

func (a *Authenticator) prompt(session *DeviceSession) {
	url := session.VerificationURL()
	_, _ = fmt.Fprintf(a.out, "To sign in, open %s in a browser and confirm the code %s\n", url, session.UserCode)
	if session.ExpiresIn > 0 {
		_, _ = fmt.Fprintf(a.out, "The code expires in %s.\n", time.Duration(session.ExpiresIn)*time.Second)
	}
	if a.openBrowser != nil && url != "" {
		if err := a.openBrowser(url); err != nil {
			a.log.Debugw("Failed to open browser", "error", err)
		}
	}
}

func (a *Authenticator) sleep(ctx context.Context, d time.Duration) error {
	timer := a.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func providerError(resp *resty.Response) error {
	perr := &ProviderError{StatusCode: resp.StatusCode()}
	var body errorResponse
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Error != "" {
		perr.Code = body.Error
		perr.Description = body.ErrorDescription
		return perr
	}
	perr.Description = truncate(strings.TrimSpace(string(resp.Body())), 200)
	return perr
}

func transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &TransportError{Op: op, Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
