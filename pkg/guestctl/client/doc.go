// Package client implements the HTTP client guestctl uses to talk to the GUEST
// task-queue API: experiment submission, task status and results, cancellation
// and module availability.
package client
