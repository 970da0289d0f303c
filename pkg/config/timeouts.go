package config

import (
	"os"
	"strconv"
	"time"
)

// TimeoutConfig holds all configurable timeout values
type TimeoutConfig struct {
	// PollInterval is how often to check task status
	PollInterval time.Duration

	// TaskTimeout bounds a blocking prediction; zero waits indefinitely
	TaskTimeout time.Duration

	// InitialWait is how long an MCP predict call waits before returning a processing status
	InitialWait time.Duration

	// ContinueWait is how long continue_operation waits for completion
	ContinueWait time.Duration

	// MaxOperationTime is when to forget pending operations
	MaxOperationTime time.Duration
}

// DefaultTimeouts returns the default timeout configuration
func DefaultTimeouts() TimeoutConfig {
	return TimeoutConfig{
		PollInterval:     1000 * time.Millisecond,
		InitialWait:      15 * time.Second,
		ContinueWait:     30 * time.Second,
		MaxOperationTime: 10 * time.Minute,
	}
}

// LoadTimeouts loads timeout configuration from environment variables
func LoadTimeouts() TimeoutConfig {
	config := DefaultTimeouts()

	if val := os.Getenv("MEDIA_PREDICT_POLL_INTERVAL_MS"); val != "" {
		if ms, err := strconv.Atoi(val); err == nil && ms > 0 {
			config.PollInterval = time.Duration(ms) * time.Millisecond
		}
	}

	if val := os.Getenv("MEDIA_PREDICT_TASK_TIMEOUT_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil && seconds >= 0 {
			config.TaskTimeout = time.Duration(seconds) * time.Second
		}
	}

	if val := os.Getenv("MEDIA_PREDICT_INITIAL_WAIT"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil && seconds > 0 {
			config.InitialWait = time.Duration(seconds) * time.Second
		}
	}

	if val := os.Getenv("MEDIA_PREDICT_CONTINUE_WAIT"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil && seconds > 0 {
			config.ContinueWait = time.Duration(seconds) * time.Second
		}
	}

	if val := os.Getenv("MEDIA_PREDICT_MAX_OPERATION_TIME"); val != "" {
		if minutes, err := strconv.Atoi(val); err == nil && minutes > 0 {
			config.MaxOperationTime = time.Duration(minutes) * time.Minute
		}
	}

	return config
}

// TestTimeouts returns timeout configuration suitable for testing
func TestTimeouts() TimeoutConfig {
	return TimeoutConfig{
		PollInterval:     10 * time.Millisecond,
		InitialWait:      200 * time.Millisecond,
		ContinueWait:     500 * time.Millisecond,
		MaxOperationTime: 1 * time.Minute,
	}
}
