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
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// StderrNotifier prints user-visible notices as warnings.
type StderrNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStderrNotifier writes to w, or os.Stderr when w is nil.
func NewStderrNotifier(w io.Writer) *StderrNotifier {
	if w == nil {
		w = os.Stderr
	}
	return &StderrNotifier{w: w}
}

// Notify prints message unless --quiet is set.
func (n *StderrNotifier) Notify(ctx context.Context, message string) {
	if GetQuiet() {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.w, RenderWarn(message))
}
