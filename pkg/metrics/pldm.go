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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "pldmd.hostpdr"

	metricRecordsFetched  = "pldm_pdr_records_fetched_total"
	metricRecordsDropped  = "pldm_pdr_records_dropped_total"
	metricFetchFailures   = "pldm_pdr_fetch_failures_total"
	metricMerges          = "pldm_entity_merges_total"
	metricDispatch        = "pldm_sensor_dispatch_total"
	metricQueueDesync     = "pldm_pdr_modified_queue_desync_total"
	metricCycleDuration   = "pldm_pdr_fetch_cycle_duration_seconds"
	metricChangeEventsOut = "pldm_repository_change_events_sent_total"
)

// Dispatch outcomes.
const (
	DispatchApplied    = "applied"
	DispatchUnmapped   = "unmapped"
	DispatchRejected   = "rejected"
	DispatchUnresolved = "unresolved"
	DispatchFailed     = "failed"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	recordsFetched metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	recordsDropped metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	fetchFailures metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	merges metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	dispatches metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	queueDesync metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	changeEventsOut metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	cycleHistogram metric.Float64Histogram
)

func int64Counter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		otel.Handle(err)
	}

	return counter
}

func initMeter() {
	meter := otel.Meter(meterName)

	recordsFetched = int64Counter(meter, metricRecordsFetched, "PDR records received from the host")
	recordsDropped = int64Counter(meter, metricRecordsDropped, "PDR records that could not be committed to the repository")
	fetchFailures = int64Counter(meter, metricFetchFailures, "GetPDR exchanges that failed or timed out")
	merges = int64Counter(meter, metricMerges, "Entity association merge attempts")
	dispatches = int64Counter(meter, metricDispatch, "State sensor dispatches by outcome")
	queueDesync = int64Counter(meter, metricQueueDesync, "Modified record counter disagreements with the modified queue")
	changeEventsOut = int64Counter(meter, metricChangeEventsOut, "Repository change events announced to the host")

	hist, err := meter.Float64Histogram(
		metricCycleDuration,
		metric.WithDescription("Duration of a PDR fetch cycle from first request to resolution"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
	}

	cycleHistogram = hist
}

// RecordRecordFetched counts one record received, labeled by PDR type.
func RecordRecordFetched(ctx context.Context, pdrType string) {
	meterOnce.Do(initMeter)
	if recordsFetched == nil {
		return
	}

	recordsFetched.Add(ctx, 1, metric.WithAttributes(attribute.String("type", pdrType)))
}

// RecordRecordDropped counts a record that was received but not stored.
func RecordRecordDropped(ctx context.Context, reason string) {
	meterOnce.Do(initMeter)
	if recordsDropped == nil {
		return
	}

	recordsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordFetchFailure counts a failed GetPDR exchange.
func RecordFetchFailure(ctx context.Context, reason string) {
	meterOnce.Do(initMeter)
	if fetchFailures == nil {
		return
	}

	fetchFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordMerge counts one entity association merge attempt.
func RecordMerge(ctx context.Context, outcome string) {
	meterOnce.Do(initMeter)
	if merges == nil {
		return
	}

	merges.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordDispatch counts a state sensor dispatch.
func RecordDispatch(ctx context.Context, outcome string, stateSetID uint16) {
	meterOnce.Do(initMeter)
	if dispatches == nil {
		return
	}

	dispatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Int("state_set", int(stateSetID)),
	))
}

// RecordQueueDesync counts a disagreement between the modified counter and
// the modified queue.
func RecordQueueDesync(ctx context.Context) {
	meterOnce.Do(initMeter)
	if queueDesync == nil {
		return
	}

	queueDesync.Add(ctx, 1)
}

// RecordChangeEventSent counts a repository change event sent to the host.
func RecordChangeEventSent(ctx context.Context, outcome string) {
	meterOnce.Do(initMeter)
	if changeEventsOut == nil {
		return
	}

	changeEventsOut.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordCycleDuration captures how long a fetch cycle took.
func RecordCycleDuration(ctx context.Context, duration time.Duration, records int) {
	meterOnce.Do(initMeter)
	if cycleHistogram == nil {
		return
	}

	cycleHistogram.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Int("records", records)))
}
