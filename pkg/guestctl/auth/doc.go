// Package auth implements the OAuth2 device-authorization grant used by guestctl
// against the GUEST Keycloak realm, together with the single-slot credential
// stores (file or OS keychain) that hold the resulting access token.
package auth
