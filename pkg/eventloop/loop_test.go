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

package eventloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/pldmd/pkg/logger"
)

func TestPostAndDrainPreserveOrder(t *testing.T) {
	l := New(8, logger.NewTestLogger())

	var got []int

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Post(func() { got = append(got, i) }))
	}

	assert.Equal(t, 3, l.Drain())
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestPostReportsFullQueue(t *testing.T) {
	l := New(1, logger.NewTestLogger())

	require.NoError(t, l.Post(func() {}))
	require.ErrorIs(t, l.Post(func() {}), ErrQueueFull)

	l.Stop()
	require.ErrorIs(t, l.Post(func() {}), ErrLoopStopped)
}

func TestPanicDoesNotEscape(t *testing.T) {
	l := New(4, logger.NewTestLogger())
	ran := false

	require.NoError(t, l.Post(func() { panic("boom") }))
	require.NoError(t, l.Post(func() { ran = true }))

	assert.NotPanics(t, func() { l.Drain() })
	assert.True(t, ran)
}

func TestDeferredRunsOnLaterTurn(t *testing.T) {
	l := New(8, logger.NewTestLogger())
	fired := 0

	d := l.NewDeferred(func() { fired++ })

	require.NoError(t, d.Arm())
	assert.True(t, d.Armed())
	assert.Zero(t, fired)

	// rearming replaces the pending run
	require.NoError(t, d.Arm())

	l.Drain()
	assert.Equal(t, 1, fired)
	assert.False(t, d.Armed())
}

func TestDeferredDisarm(t *testing.T) {
	l := New(8, logger.NewTestLogger())
	fired := false

	d := l.NewDeferred(func() { fired = true })
	require.NoError(t, d.Arm())
	d.Disarm()

	l.Drain()
	assert.False(t, fired)
}

func TestRunStopsOnCancel(t *testing.T) {
	l := New(8, logger.NewTestLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() { done <- l.Run(ctx) }()

	ran := make(chan struct{})

	l.AfterFunc(time.Millisecond, func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("timer callback never ran")
	}

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}
