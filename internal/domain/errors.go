// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (check-and-set lost).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrNotPending indicates a decision arrived for an approval that is already resolved.
var ErrNotPending = errors.New("approval request is not pending")

// ErrValidation indicates a malformed request.
var ErrValidation = errors.New("validation failed")

// ErrMaxIterations indicates the iteration limit for a step has been reached.
var ErrMaxIterations = errors.New("max iterations reached")

// ErrIterationClosed indicates an iteration session is no longer active.
var ErrIterationClosed = errors.New("iteration session is not active")

// ErrNoFallbackProviders indicates an agent has no fallback providers configured.
var ErrNoFallbackProviders = errors.New("no fallback providers configured")

// ErrAllProvidersFailed indicates every provider in the fallback chain failed.
var ErrAllProvidersFailed = errors.New("all providers failed")

// ErrInvalidProvider indicates a provider id is unknown to the provider catalog.
var ErrInvalidProvider = errors.New("invalid primary provider")

// ErrUnavailable indicates an external collaborator failed unexpectedly.
var ErrUnavailable = errors.New("collaborator unavailable")
