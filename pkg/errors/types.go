// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"fmt"
	"time"
)

// ValidationError represents user input validation failures.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "server", "tool", "registry entry")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConfigError represents a malformed or incomplete provider definition.
// It is fatal to the parse call that produced it.
type ConfigError struct {
	// Server is the provider entry that failed, empty for document-level problems
	Server string

	// Field is the offending field (e.g., "command", "url")
	Field string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, JSON syntax error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	switch {
	case e.Server != "" && e.Field != "":
		return fmt.Sprintf("config error in server %q (field %s): %s", e.Server, e.Field, e.Reason)
	case e.Server != "":
		return fmt.Sprintf("config error in server %q: %s", e.Server, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("config error at %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// IsUserVisible implements UserVisibleError.
func (e *ConfigError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *ConfigError) UserMessage() string { return e.Error() }

// Suggestion implements UserVisibleError.
func (e *ConfigError) Suggestion() string {
	switch e.Field {
	case "command":
		return "Add a \"command\" field or set \"transport\" to \"http\" for remote servers"
	case "url":
		return "Add a \"url\" field for HTTP servers"
	}
	return ""
}

// LaunchError means a provider process or client could not be started.
// The affected provider is skipped; other providers are unaffected.
type LaunchError struct {
	// Server is the provider that failed to launch
	Server string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch server %q: %v", e.Server, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *LaunchError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *LaunchError) ErrorType() string { return "launch" }

// IsRetryable implements ErrorClassifier.
func (e *LaunchError) IsRetryable() bool { return false }

// RegistryError is returned when the provider catalog responds with a
// non-2xx status or an empty body.
type RegistryError struct {
	// StatusCode is the HTTP status, zero when the status was fine but the body was not
	StatusCode int

	// Reason is the human-readable description
	Reason string

	// Cause is the underlying error (transport or decode failure)
	Cause error
}

// Error implements the error interface.
func (e *RegistryError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("registry API returned HTTP %d", e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("registry API %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("registry API %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *RegistryError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *RegistryError) ErrorType() string { return "registry" }

// IsRetryable implements ErrorClassifier. Server-side failures may succeed later.
func (e *RegistryError) IsRetryable() bool { return e.StatusCode >= 500 }

// InstallError represents a clone, build or jar discovery failure while
// installing a locally built provider. The partially-created install
// directory has already been removed when this error is returned.
type InstallError struct {
	// Repository is the repository name or URL being installed
	Repository string

	// Step is the failing phase ("clone", "build", "locate jar", ...)
	Step string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *InstallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("install %s failed during %s: %v", e.Repository, e.Step, e.Cause)
	}
	return fmt.Sprintf("install %s failed during %s", e.Repository, e.Step)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *InstallError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents operation timeouts.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "approval", "tool call")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s operation timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}
