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

import "errors"

// UserVisibleError is an error the CLI may show as-is, with a hint on how
// to fix it. ConfigError and mcp.MCPError implement it.
type UserVisibleError interface {
	error
	IsUserVisible() bool
	UserMessage() string
	// Suggestion is empty when there is nothing useful to say.
	Suggestion() string
}

// ErrorClassifier lets callers group failures without matching concrete
// types. LaunchError and RegistryError implement it.
type ErrorClassifier interface {
	error
	ErrorType() string
	IsRetryable() bool
}

// SuggestionFor returns the suggestion of the first user-visible error in
// err's chain.
func SuggestionFor(err error) string {
	var visible UserVisibleError
	if errors.As(err, &visible) && visible.IsUserVisible() {
		return visible.Suggestion()
	}
	return ""
}

// TypeOf returns the ErrorType of the first classified error in err's
// chain, or "" when none is classified.
func TypeOf(err error) string {
	var classified ErrorClassifier
	if errors.As(err, &classified) {
		return classified.ErrorType()
	}
	return ""
}

// Retryable reports whether the first classified error in err's chain may
// succeed if tried again.
func Retryable(err error) bool {
	var classified ErrorClassifier
	return errors.As(err, &classified) && classified.IsRetryable()
}
