// Package constants provides shared constants used across the codebase.
package constants

import "time"

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for job event channels
	EventChannelBuffer = 100
)

// Web server constants
const (
	// DefaultPort is the port the serve command listens on
	DefaultPort = 8080

	// RequestTimeout bounds a single API request
	RequestTimeout = 5 * time.Minute

	// MaxFinishedJobs is how many finished training jobs are kept for status queries
	MaxFinishedJobs = 20

	// SSEHeartbeat is the interval of keep-alive comments on idle event streams
	SSEHeartbeat = 15 * time.Second
)

// Recognition constants
const (
	// ProgressEvery is how often, in frames, attend prints a status line
	ProgressEvery = 30
)
