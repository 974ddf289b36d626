// Package constants provides shared constants used throughout the gatesync codebase.
// This includes timeouts, limits, and other configuration values that should be
// consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for administrative HTTP calls
	// against the target gateway and upstream provider APIs
	DefaultHTTPTimeout = 30 * time.Second

	// ProbeTimeout is the hard timeout for a single model health probe
	ProbeTimeout = 10 * time.Second

	// ProviderTimeout is the timeout for processing a single provider end to end
	ProviderTimeout = 10 * time.Minute

	// RetryBackoff is the base backoff duration for transport retries
	RetryBackoff = 1 * time.Second

	// MaxRetryBackoff is the maximum backoff duration for transport retries
	MaxRetryBackoff = 30 * time.Second
)

// Limit constants define various limits and capacities
const (
	// MaxRetries is the maximum number of retry attempts for transient
	// transport failures
	MaxRetries = 3

	// ProbeConcurrency is the width of a model health probe batch; batches
	// run sequentially, each internally parallel
	ProbeConcurrency = 5

	// MaxTokenNameLength is the maximum length the upstreams accept for a
	// token name, including the provider suffix
	MaxTokenNameLength = 32

	// DefaultPageSize is the number of items requested per page when listing
	// channels, models, and tokens
	DefaultPageSize = 100

	// MaxProbeTokens caps the completion budget of a health probe request
	MaxProbeTokens = 1
)

// Pricing constants
const (
	// RatioCeiling is the maximum effective ratio a group may carry and still
	// be published; groups pricing above the reference cost are dropped
	RatioCeiling = 1.0
)
