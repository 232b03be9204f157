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

package hostpdr

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/carverauto/pldmd/pkg/metrics"
	"github.com/carverauto/pldmd/pkg/pldm"
	"github.com/carverauto/pldmd/pkg/requester"
)

// enqueue adds handle to the plain queue unless either queue holds it.
func (h *Handler) enqueue(handle uint32) {
	if slices.Contains(h.plainQueue, handle) || slices.Contains(h.modifiedQueue, handle) {
		return
	}

	h.plainQueue = append(h.plainQueue, handle)
}

// enqueueModified moves handle to the modified queue, which is served first.
func (h *Handler) enqueueModified(handle uint32) {
	h.plainQueue = slices.DeleteFunc(h.plainQueue, func(v uint32) bool { return v == handle })

	if !slices.Contains(h.modifiedQueue, handle) {
		h.modifiedQueue = append(h.modifiedQueue, handle)
	}

	h.modifiedCount++
}

// startFullScan schedules a sequential walk of the host repository.
func (h *Handler) startFullScan() {
	h.restartScan = true
	h.armFetch()
}

// armFetch schedules the next GetPDR for a later loop turn so responses to
// the triggering request go out first.
func (h *Handler) armFetch() {
	if h.inFlight || h.fetch.Armed() {
		return
	}

	if err := h.fetch.Arm(); err != nil {
		h.logger.Error().Err(err).Msg("Failed to schedule PDR fetch")

		return
	}

	h.phase = PhaseAwaitingFetch
}

func (h *Handler) runFetch() {
	if h.inFlight {
		return
	}

	handle, modified, ok := h.nextRequest(0)
	if !ok {
		h.complete()

		return
	}

	if h.cycleStart.IsZero() {
		h.cycleStart = time.Now()
	}

	h.requestRecord(handle, modified)
}

// nextRequest picks the record handle for the next GetPDR. A sequential
// scan follows the host's next-record chain; otherwise the modified queue
// is drained before the plain queue.
func (h *Handler) nextRequest(responseNext uint32) (handle uint32, modified, ok bool) {
	if h.restartScan {
		h.restartScan = false
		h.sequential = true

		return 0, false, true
	}

	if h.sequential && responseNext != 0 {
		return responseNext, false, true
	}

	h.sequential = false

	h.checkModifiedCounter()

	if len(h.modifiedQueue) > 0 {
		handle = h.modifiedQueue[0]
		h.modifiedQueue = h.modifiedQueue[1:]

		if h.modifiedCount > 0 {
			h.modifiedCount--
		}

		return handle, true, true
	}

	if len(h.plainQueue) > 0 {
		handle = h.plainQueue[0]
		h.plainQueue = h.plainQueue[1:]

		return handle, false, true
	}

	return 0, false, false
}

// checkModifiedCounter flags a pending modification count that disagrees
// with the modified queue and resynchronizes it to the queue.
func (h *Handler) checkModifiedCounter() {
	if h.modifiedCount == len(h.modifiedQueue) {
		return
	}

	h.logger.Warn().
		Int("counter", h.modifiedCount).
		Int("modified_queue", len(h.modifiedQueue)).
		Int("plain_queue", len(h.plainQueue)).
		Msg("Modified record counter out of step with queue")
	metrics.RecordQueueDesync(h.ctx)

	h.modifiedCount = len(h.modifiedQueue)
}

func (h *Handler) requestRecord(handle uint32, modified bool) {
	h.transfer = transfer{recordHandle: handle, modified: modified}

	h.sendGetPDR(&pldm.GetPDRRequest{
		RecordHandle:   handle,
		TransferOpFlag: pldm.GetFirstPart,
		RequestCount:   h.cfg.RequestCount,
	})
}

func (h *Handler) sendGetPDR(req *pldm.GetPDRRequest) {
	eid := h.cfg.HostEID

	instanceID, err := h.req.NextInstanceID(eid)
	if err != nil {
		h.fetchFailed("instance_id", err)

		return
	}

	epoch := h.epoch

	err = h.req.RegisterRequest(eid, instanceID, pldm.TypePlatform, pldm.CmdGetPDR, req.Marshal(),
		func(_ uint8, payload []byte, err error) {
			h.onGetPDR(epoch, payload, err)
		})
	if err != nil {
		h.fetchFailed("send", err)

		return
	}

	h.inFlight = true
	h.phase = PhaseFetchingRecord
}

func (h *Handler) onGetPDR(epoch uint64, payload []byte, err error) {
	if epoch != h.epoch {
		h.logger.Debug().Msg("Dropping GetPDR response from before host reset")

		return
	}

	h.inFlight = false

	if err != nil {
		reason := "transport"
		if errors.Is(err, requester.ErrRequestTimeout) {
			reason = "timeout"
		}

		h.fetchFailed(reason, err)

		return
	}

	resp, err := pldm.DecodeGetPDRResponse(payload)
	if err != nil {
		h.fetchFailed("decode", err)

		return
	}

	record, done, err := h.reassemble(resp)
	if err != nil {
		h.fetchFailed("transfer", err)

		return
	}

	if !done {
		h.sendGetPDR(&pldm.GetPDRRequest{
			RecordHandle:       h.transfer.recordHandle,
			DataTransferHandle: resp.NextDataTransferHandle,
			TransferOpFlag:     pldm.GetNextPart,
			RequestCount:       h.cfg.RequestCount,
		})

		return
	}

	h.phase = PhaseClassifyingRecord
	modified := h.transfer.modified
	h.transfer = transfer{}

	next := resp.NextRecordHandle

	if h.classify(record, modified) {
		h.logger.Info().Msg("Terminus invalid while host is down, stopping PDR scan")

		next = 0
		h.truncate()
	}

	h.advance(next)
}

// reassemble appends one part of a multipart transfer and returns the whole
// record once the final part has arrived.
func (h *Handler) reassemble(resp *pldm.GetPDRResponse) ([]byte, bool, error) {
	switch resp.TransferFlag {
	case pldm.TransferStartAndEnd:
		if len(h.transfer.buf) != 0 {
			return nil, false, fmt.Errorf("%w: single part after %d bytes", ErrUnexpectedTransfer, len(h.transfer.buf))
		}

		return resp.RecordData, true, nil
	case pldm.TransferStart:
		if len(h.transfer.buf) != 0 {
			return nil, false, fmt.Errorf("%w: start after %d bytes", ErrUnexpectedTransfer, len(h.transfer.buf))
		}

		h.transfer.buf = append(h.transfer.buf, resp.RecordData...)

		return nil, false, nil
	case pldm.TransferMiddle:
		if len(h.transfer.buf) == 0 {
			return nil, false, fmt.Errorf("%w: middle part without start", ErrUnexpectedTransfer)
		}

		h.transfer.buf = append(h.transfer.buf, resp.RecordData...)

		return nil, false, nil
	case pldm.TransferEnd:
		if len(h.transfer.buf) == 0 {
			return nil, false, fmt.Errorf("%w: end part without start", ErrUnexpectedTransfer)
		}

		record := append(h.transfer.buf, resp.RecordData...)
		if crc := pldm.CRC8(record); crc != resp.TransferCRC {
			return nil, false, fmt.Errorf("%w: computed 0x%02x, got 0x%02x", ErrCRCMismatch, crc, resp.TransferCRC)
		}

		return record, true, nil
	default:
		return nil, false, fmt.Errorf("%w: 0x%02x", ErrUnexpectedTransfer, uint8(resp.TransferFlag))
	}
}

// advance issues the next GetPDR or finishes the cycle.
func (h *Handler) advance(responseNext uint32) {
	handle, modified, ok := h.nextRequest(responseNext)
	if !ok {
		h.complete()

		return
	}

	h.requestRecord(handle, modified)
}

// truncate abandons the rest of the scan.
func (h *Handler) truncate() {
	h.plainQueue = nil
	h.modifiedQueue = nil
	h.modifiedCount = 0
	h.sequential = false
	h.restartScan = false
}

// fetchFailed parks the state machine after a failed exchange. Nothing is
// retried; the next change event or host transition restarts the fetch.
func (h *Handler) fetchFailed(reason string, err error) {
	handle := h.transfer.recordHandle

	h.logger.Error().
		Err(err).
		Str("reason", reason).
		Uint32("record_handle", handle).
		Msg("GetPDR exchange failed")
	metrics.RecordFetchFailure(h.ctx, reason)

	if rerr := h.reporter.ReportError(h.ctx, ErrorTypePDRExchangeFailure, map[string]string{
		"record_handle": strconv.FormatUint(uint64(handle), 10),
		"reason":        reason,
	}); rerr != nil {
		h.logger.Error().Err(rerr).Msg("Failed to report PDR exchange failure")
	}

	h.inFlight = false
	h.transfer = transfer{}
	h.sequential = false
	h.cycleStart = time.Time{}
	h.cycleRecords = 0
	h.phase = PhaseIdle
}
