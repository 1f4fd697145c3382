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
	"encoding/json"
	"io"
	"os"
	"strings"

	pkgerrors "github.com/tombee/mcpgate/pkg/errors"
)

// JSONResponse is the base envelope for all JSON output
type JSONResponse struct {
	Version string `json:"@version"`
	Command string `json:"command"`
	Success bool   `json:"success"`
}

// NewJSONResponse returns a successful envelope for command.
func NewJSONResponse(command string) JSONResponse {
	return JSONResponse{Version: "1.0", Command: command, Success: true}
}

// JSONError represents a structured error with code, message and suggestion
type JSONError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`
}

// NewJSONError describes err for JSON output. The code is the error's
// classified type, upper-cased, or fallback when it has none.
func NewJSONError(err error, fallback string) JSONError {
	code := fallback
	if t := pkgerrors.TypeOf(err); t != "" {
		code = strings.ToUpper(t)
	}
	return JSONError{
		Code:       code,
		Message:    err.Error(),
		Suggestion: pkgerrors.SuggestionFor(err),
		Retryable:  pkgerrors.Retryable(err),
	}
}

var jsonOut io.Writer = os.Stdout

// SetOutputForTest redirects JSON output and returns a restore func.
func SetOutputForTest(w io.Writer) func() {
	prev := jsonOut
	jsonOut = w
	return func() { jsonOut = prev }
}

// Output returns the writer used for command output.
func Output() io.Writer {
	return jsonOut
}

// EmitJSON writes response as indented JSON to stdout.
func EmitJSON(response interface{}) error {
	encoder := json.NewEncoder(jsonOut)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// EmitJSONError writes an unsuccessful envelope carrying errs.
func EmitJSONError(command string, errs []JSONError) error {
	type errorResponse struct {
		JSONResponse
		Errors []JSONError `json:"errors"`
	}

	resp := errorResponse{
		JSONResponse: JSONResponse{Version: "1.0", Command: command, Success: false},
		Errors:       errs,
	}
	return EmitJSON(resp)
}
