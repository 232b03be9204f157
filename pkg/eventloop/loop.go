/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package eventloop runs the single goroutine that owns all synchronization
// state. Other goroutines hand work to it with Post.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/pldmd/pkg/logger"
)

var (
	ErrLoopStopped = errors.New("event loop stopped")
	ErrQueueFull   = errors.New("event loop queue full")
)

const defaultQueueSize = 256

// Loop executes posted tasks one at a time, in order.
type Loop struct {
	tasks    chan func()
	done     chan struct{}
	stopOnce sync.Once
	logger   logger.Logger
}

// New creates a loop with room for queueSize pending tasks.
func New(queueSize int, log logger.Logger) *Loop {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &Loop{
		tasks:  make(chan func(), queueSize),
		done:   make(chan struct{}),
		logger: log,
	}
}

// Post queues fn for execution on the loop. It never blocks; a full queue
// is reported to the caller.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopStopped
	default:
	}

	select {
	case l.tasks <- fn:
		return nil
	default:
		return fmt.Errorf("%w: %d pending", ErrQueueFull, len(l.tasks))
	}
}

// Run executes tasks until ctx is canceled or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info().Int("queue_size", cap(l.tasks)).Msg("Event loop started")

	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Msg("Event loop stopping due to context cancellation")
			l.Stop()

			return ctx.Err()
		case <-l.done:
			l.logger.Info().Msg("Event loop stopped")

			return nil
		case fn := <-l.tasks:
			l.execute(fn)
		}
	}
}

// Stop makes Run return. Pending tasks are dropped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
}

// Drain executes every queued task, including ones queued while draining,
// on the calling goroutine. It is meant for tests that drive the loop
// without starting Run.
func (l *Loop) Drain() int {
	n := 0

	for {
		select {
		case fn := <-l.tasks:
			l.execute(fn)
			n++
		default:
			return n
		}
	}
}

func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Msg("Event loop task panicked")
		}
	}()

	fn()
}

// AfterFunc posts fn onto the loop once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() {
		if err := l.Post(fn); err != nil {
			l.logger.Warn().Err(err).Msg("Dropped timer callback")
		}
	})
}

// Deferred is a callback that runs on a later loop turn. It is armed at
// most once at a time; rearming discards the pending run. Arm and Disarm
// must be called from the loop goroutine.
type Deferred struct {
	loop       *Loop
	fn         func()
	generation uint64
	armed      bool
}

// NewDeferred binds fn to the loop without scheduling it.
func (l *Loop) NewDeferred(fn func()) *Deferred {
	return &Deferred{loop: l, fn: fn}
}

// Arm schedules the callback for the next turn, replacing any pending run.
func (d *Deferred) Arm() error {
	d.Disarm()

	gen := d.generation

	if err := d.loop.Post(func() {
		if !d.armed || d.generation != gen {
			return
		}

		d.armed = false
		d.fn()
	}); err != nil {
		return err
	}

	d.armed = true

	return nil
}

// Disarm cancels a pending run.
func (d *Deferred) Disarm() {
	d.generation++
	d.armed = false
}

// Armed reports whether a run is pending.
func (d *Deferred) Armed() bool { return d.armed }
