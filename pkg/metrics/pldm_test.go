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

package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInstrumentsRecordThroughGlobalProvider(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	ctx := context.Background()

	RecordRecordFetched(ctx, "state_sensor")
	RecordRecordFetched(ctx, "state_sensor")
	RecordDispatch(ctx, DispatchApplied, 13)
	RecordQueueDesync(ctx)
	RecordCycleDuration(ctx, 250*time.Millisecond, 4)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	seen := map[string]metricdata.Aggregation{}

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			seen[m.Name] = m.Data
		}
	}

	fetched, ok := seen[metricRecordsFetched].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, fetched.DataPoints, 1)
	assert.Equal(t, int64(2), fetched.DataPoints[0].Value)

	assert.Contains(t, seen, metricDispatch)
	assert.Contains(t, seen, metricQueueDesync)

	hist, ok := seen[metricCycleDuration].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestInitializeMetricsDisabled(t *testing.T) {
	_, err := InitializeMetrics(context.Background(), Config{})
	require.ErrorIs(t, err, ErrOTelMetricsDisabled)

	require.NoError(t, Shutdown(context.Background()))
}
