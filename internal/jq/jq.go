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

// Package jq runs jq expressions over command output.
package jq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"
)

// DefaultTimeout bounds one evaluation.
const DefaultTimeout = 2 * time.Second

// Query is a compiled jq expression.
type Query struct {
	expression string
	code       *gojq.Code
	timeout    time.Duration
}

// Compile parses and compiles expression.
func Compile(expression string) (*Query, error) {
	parsed, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("jq compilation failed: %w", err)
	}
	return &Query{expression: expression, code: code, timeout: DefaultTimeout}, nil
}

// Run evaluates the query against v and returns every emitted value. v may
// be any JSON-encodable value; it is normalized to the map/slice form gojq
// expects.
func (q *Query) Run(ctx context.Context, v any) ([]any, error) {
	input, err := normalize(v)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	var results []any
	iter := q.code.RunWithContext(ctx, input)
	for {
		out, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := out.(error); isErr {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("jq %q timed out after %v", q.expression, q.timeout)
			}
			return nil, err
		}
		results = append(results, out)
	}
	return results, nil
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal jq input: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode jq input: %w", err)
	}
	return out, nil
}
