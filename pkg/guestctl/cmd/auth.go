package cmd

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/guest-quantum/guestctl/pkg/guestctl/auth"
	"github.com/guest-quantum/guestctl/pkg/guestctl/output"
)

func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with the GUEST identity provider",
	}
	cmd.AddCommand(
		newAuthLoginCommand(),
		newAuthStatusCommand(),
		newAuthLogoutCommand(),
		newAuthTokenCommand(),
		newAuthWhoamiCommand(),
	)
	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login via the OAuth2 device authorization flow",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if rt.nonInteractive {
				return errors.New("login requires interaction; remove --non-interactive")
			}
			authenticator, _, err := buildAuthenticator(cmd.Context(), rt)
			if err != nil {
				return err
			}
			var cred *auth.Credential
			if force {
				cred, err = authenticator.RunDeviceFlow(cmd.Context())
			} else {
				cred, err = authenticator.EnsureValidCredential(cmd.Context())
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Authenticated as %s. Token expires at %s\n",
				auth.DisplayName(cred.AccessToken), cred.Expiry().UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Start a new login even if the stored credential is still valid")
	return cmd
}

type authStatus struct {
	Context       string    `json:"context"`
	Authenticated bool      `json:"authenticated"`
	User          string    `json:"user,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
	Store         string    `json:"store"`
	Reason        string    `json:"reason,omitempty"`
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status without contacting the identity provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			authenticator, ctxCfg, err := buildAuthenticator(cmd.Context(), rt)
			if err != nil {
				return err
			}
			status := authStatus{Context: ctxCfg.Name, Store: authenticator.Store().Location()}
			cred, err := authenticator.Check()
			switch {
			case err == nil:
				status.Authenticated = true
			case errors.Is(err, auth.ErrNoCredential), errors.Is(err, auth.ErrCredentialExpiringSoon):
				status.Reason = err.Error()
			default:
				return err
			}
			if cred != nil {
				status.User = auth.DisplayName(cred.AccessToken)
				status.ExpiresAt = cred.Expiry().UTC()
			}
			return writeOutput(rt, status, func(w io.Writer, _ output.Format) {
				writeAuthStatus(w, status, rt.Clock().Now())
			})
		},
	}
}

func writeAuthStatus(w io.Writer, status authStatus, now time.Time) {
	_, _ = fmt.Fprintf(w, "Context: %s\n", status.Context)
	_, _ = fmt.Fprintf(w, "Credential store: %s\n", status.Store)
	if !status.Authenticated {
		_, _ = fmt.Fprintf(w, "Not authenticated (%s)\n", status.Reason)
		return
	}
	_, _ = fmt.Fprintf(w, "Authenticated as %s\n", status.User)
	_, _ = fmt.Fprintf(w, "Token expires at %s (in %s)\n", status.ExpiresAt.Format(time.RFC3339),
		status.ExpiresAt.Sub(now).Truncate(time.Second))
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			authenticator, _, err := buildAuthenticator(cmd.Context(), rt)
			if err != nil {
				return err
			}
			if err := authenticator.Logout(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), "Logged out")
			return nil
		},
	}
}

func newAuthTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token, logging in if needed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			token, err := resolveToken(cmd.Context(), rt)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), token)
			return nil
		},
	}
}

func newAuthWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity provider's view of the current user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			authenticator, _, err := buildAuthenticator(cmd.Context(), rt)
			if err != nil {
				return err
			}
			cred, err := ensureCredential(cmd.Context(), rt, authenticator)
			if err != nil {
				return err
			}
			info, err := auth.UserInfo(cmd.Context(), authenticator.HTTPClient(), authenticator.Endpoints(), cred)
			if err != nil {
				return err
			}
			return writeOutput(rt, info, func(w io.Writer, _ output.Format) {
				writeClaims(w, info)
			})
		},
	}
}

func writeClaims(w io.Writer, claims map[string]any) {
	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "%s: %v\n", k, claims[k])
	}
}
