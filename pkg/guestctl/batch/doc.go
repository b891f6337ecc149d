// Package batch downloads the results of a submitted experiment batch. Tasks are
// fetched by a bounded worker set whose request rate is capped, so large batches
// do not flood the task-queue API.
package batch
