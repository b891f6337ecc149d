package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"
)

// Claims decodes the token payload without verifying the signature. The backend
// verifies tokens; the CLI only reads them for display and filtering.
func Claims(token string) (jwt.MapClaims, error) {
	parser := jwt.Parser{}
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return claims, nil
}

func SubjectFromToken(token string) (string, error) {
	claims, err := Claims(token)
	if err != nil {
		return "", err
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("token has no sub claim")
	}
	return sub, nil
}

// DisplayName picks the most readable identity claim from the token.
func DisplayName(token string) string {
	claims, err := Claims(token)
	if err != nil {
		return ""
	}
	for _, key := range []string{"preferred_username", "email", "sub"} {
		if value, ok := claims[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

func staticTokenSource(cred *Credential) oauth2.TokenSource {
	return oauth2.StaticTokenSource(cred.OAuth2Token())
}
