// Package transport builds the resty HTTP clients shared by the guestctl auth and
// API packages: TLS trust policy, timeouts, bounded retry with backoff and
// request correlation IDs.
package transport
