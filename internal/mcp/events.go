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

package mcp

import (
	"log/slog"
	"sync"
	"time"
)

// StatusListener is notified when a provider process starts or stops.
// Listeners run on the dispatcher goroutine, never on the goroutine that
// changed the state.
type StatusListener func(name string, running bool)

// StatusEvent is a queued running-state change.
type StatusEvent struct {
	Server    string    `json:"server"`
	Running   bool      `json:"running"`
	Timestamp time.Time `json:"timestamp"`
}

// statusDispatcher delivers StatusEvents to listeners in the order they
// were published, on a single goroutine.
type statusDispatcher struct {
	logger *slog.Logger

	mu        sync.Mutex
	listeners []StatusListener
	queue     []StatusEvent
	closed    bool

	wake chan struct{}
	done chan struct{}
}

func newStatusDispatcher(logger *slog.Logger) *statusDispatcher {
	d := &statusDispatcher{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Subscribe registers a listener.
func (d *statusDispatcher) Subscribe(l StatusListener) {
	if l == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.listeners = append(d.listeners, l)
	}
}

// Publish queues an event and returns immediately.
func (d *statusDispatcher) Publish(server string, running bool) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, StatusEvent{Server: server, Running: running, Timestamp: time.Now()})
	select {
	case d.wake <- struct{}{}:
	default:
	}
	d.mu.Unlock()
}

// Close drops all listeners and pending events and stops the goroutine.
func (d *statusDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.listeners = nil
	d.queue = nil
	close(d.wake)
	d.mu.Unlock()

	<-d.done
}

func (d *statusDispatcher) run() {
	defer close(d.done)

	for range d.wake {
		for {
			d.mu.Lock()
			if len(d.queue) == 0 || d.closed {
				d.mu.Unlock()
				break
			}
			event := d.queue[0]
			d.queue = d.queue[1:]
			listeners := append([]StatusListener(nil), d.listeners...)
			d.mu.Unlock()

			d.logger.Debug("MCP server status changed",
				"server", event.Server,
				"running", event.Running)

			for _, l := range listeners {
				d.deliver(l, event)
			}
		}
	}
}

func (d *statusDispatcher) deliver(l StatusListener, event StatusEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("status listener panicked", "server", event.Server, "panic", r)
		}
	}()
	l(event.Server, event.Running)
}
