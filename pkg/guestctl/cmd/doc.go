// Package cmd implements the cobra command tree for guestctl: device login and
// credential management, experiment submission, job inspection and result
// downloads, backend availability, configuration and shell completion.
package cmd
