// Package submitter drives the batch API from the command line: it uploads local
// resume files, waits for the batch to finish and reports the ranked result.
package submitter

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Defaults for the CLI.
const (
	DefaultBaseURL      = "http://localhost:9080"
	DefaultPollInterval = time.Second
	DefaultWait         = 10 * time.Minute
	DefaultTimeout      = 30 * time.Second
)

// ErrInvalidConfig reports an unusable submitter configuration.
var ErrInvalidConfig = errors.New("invalid submitter config")

// Config holds what one submission needs.
type Config struct {
	BaseURL        string        // Base URL of the service
	Token          string        // Bearer token
	JobTitle       string        // Job title
	JobDescription string        // Job description
	Files          []string      // Paths of the resumes to upload
	IdempotencyKey string        // Optional Idempotency-Key header
	Band           string        // Band filter of the final listing
	PollInterval   time.Duration // Delay between batch polls
	Wait           time.Duration // Upper bound on waiting for the batch
	Timeout        time.Duration // Per-request timeout
}

// Validate fills defaults and reports the first missing field.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Wait <= 0 {
		c.Wait = DefaultWait
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	switch {
	case c.Token == "":
		return fmt.Errorf("%w: a bearer token is required", ErrInvalidConfig)
	case strings.TrimSpace(c.JobTitle) == "":
		return fmt.Errorf("%w: job title is required", ErrInvalidConfig)
	case strings.TrimSpace(c.JobDescription) == "":
		return fmt.Errorf("%w: job description is required", ErrInvalidConfig)
	case len(c.Files) == 0:
		return fmt.Errorf("%w: at least one file is required", ErrInvalidConfig)
	}
	return nil
}
