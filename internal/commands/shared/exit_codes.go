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

package shared

import (
	"errors"
	"fmt"
	"io"
	"os"

	pkgerrors "github.com/tombee/mcpgate/pkg/errors"
)

// Exit codes
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitInvalidUsage = 2
	ExitNotFound     = 3
	ExitInterrupted  = 130 // SIGINT
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewInvalidUsageError reports bad arguments or a malformed file.
func NewInvalidUsageError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitInvalidUsage, Message: msg, Cause: cause}
}

// NewNotFoundError reports an unknown server, tool or registry entry.
func NewNotFoundError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitNotFound, Message: msg, Cause: cause}
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var notFound *pkgerrors.NotFoundError
	if errors.As(err, &notFound) {
		return ExitNotFound
	}
	var configErr *pkgerrors.ConfigError
	var validationErr *pkgerrors.ValidationError
	if errors.As(err, &configErr) || errors.As(err, &validationErr) {
		return ExitInvalidUsage
	}
	return ExitFailure
}

// HandleExitError prints err with any suggestion and exits with its code.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	PrintError(os.Stderr, err)
	if GetJSON() {
		_ = EmitJSONError("", []JSONError{NewJSONError(err, "ERROR")})
	}
	os.Exit(ExitCode(err))
}

// PrintError writes "Error: ..." followed by the first user-visible
// suggestion found in the chain.
func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, RenderError("Error: "+err.Error()))
	if suggestion := pkgerrors.SuggestionFor(err); suggestion != "" {
		fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
	}
}
