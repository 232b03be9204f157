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
	"math"

	"github.com/carverauto/pldmd/pkg/entity"
	"github.com/carverauto/pldmd/pkg/metrics"
	"github.com/carverauto/pldmd/pkg/pdr"
	"github.com/carverauto/pldmd/pkg/pldm"
	"github.com/carverauto/pldmd/pkg/terminus"
)

// HandlePlatformEvent serves PlatformEventMessage requests from the host.
// It has the signature of a requester.RequestHandler.
func (h *Handler) HandlePlatformEvent(eid uint8, _ pldm.Header, payload []byte) []byte {
	msg, err := pldm.DecodePlatformEventMessage(payload)
	if err != nil {
		h.logger.Warn().Err(err).Uint8("eid", eid).Msg("Malformed platform event")

		return pldm.EncodePlatformEventResponse(pldm.ErrorInvalidLength, 0)
	}

	if msg.FormatVersion != pldm.EventFormatVersion {
		h.logger.Warn().Uint8("format_version", msg.FormatVersion).Msg("Unsupported platform event format")

		return pldm.EncodePlatformEventResponse(pldm.ErrorInvalidData, 0)
	}

	if err := h.handleEvent(msg); err != nil {
		h.logger.Warn().
			Err(err).
			Uint8("eid", eid).
			Uint8("tid", msg.TID).
			Uint8("event_class", uint8(msg.EventClass)).
			Msg("Rejected platform event")

		return pldm.EncodePlatformEventResponse(pldm.ErrorInvalidData, 0)
	}

	return pldm.EncodePlatformEventResponse(pldm.Success, pldm.EventNoLogging)
}

func (h *Handler) handleEvent(msg *pldm.PlatformEventMessage) error {
	switch msg.EventClass {
	case pldm.EventClassSensor:
		ev, err := pldm.DecodeSensorEvent(msg.EventData)
		if errors.Is(err, pldm.ErrUnsupportedEventType) {
			h.logger.Debug().Uint16("sensor_id", ev.SensorID).Msg("Ignoring non-state sensor event")

			return nil
		}

		if err != nil {
			return err
		}

		// Range violations are reported through logs and metrics; the host
		// still gets a success response.
		_ = h.HandleStateSensorEvent(msg.TID, ev.SensorID, ev.SensorOffset, ev.EventState, ev.PreviousEventState)

		return nil
	case pldm.EventClassPDRRepositoryChange:
		return h.HandleRepositoryChange(msg.TID, msg.EventData)
	default:
		return fmt.Errorf("%w: 0x%02x", ErrUnknownEventClass, uint8(msg.EventClass))
	}
}

// HandleStateSensorEvent applies a state sensor event from terminus tid.
// Events from unknown sensors are dropped silently. An offset or state
// outside the sensor's declared sets is rejected without touching the
// inventory.
func (h *Handler) HandleStateSensorEvent(tid uint8, sensorID uint16, offset, eventState, previousState uint8) error {
	info, key, ok := h.sensors.Lookup(tid, sensorID)
	if !ok {
		h.logger.Debug().Uint8("tid", tid).Uint16("sensor_id", sensorID).Msg("Event from unmapped sensor")
		metrics.RecordDispatch(h.ctx, metrics.DispatchUnmapped, 0)

		return nil
	}

	set, err := checkState(info, offset, eventState)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Uint8("tid", key.TID).
			Uint16("sensor_id", sensorID).
			Msg("Rejected sensor event")
		metrics.RecordDispatch(h.ctx, metrics.DispatchRejected, set.StateSetID)

		return err
	}

	p, ok := h.pathOf(info.Entity)
	if !ok {
		h.logger.Debug().Str("entity", info.Entity.String()).Msg("Sensor entity has no object path")
		metrics.RecordDispatch(h.ctx, metrics.DispatchUnresolved, set.StateSetID)

		return nil
	}

	if err := h.applyState(p, info.Entity, set.StateSetID, eventState); err != nil {
		metrics.RecordDispatch(h.ctx, metrics.DispatchFailed, set.StateSetID)

		return fmt.Errorf("publish state set %d for %s: %w", set.StateSetID, p, err)
	}

	h.logger.Debug().
		Str("path", p).
		Uint16("state_set", set.StateSetID).
		Uint8("state", eventState).
		Uint8("previous_state", previousState).
		Msg("Applied sensor event")
	metrics.RecordDispatch(h.ctx, metrics.DispatchApplied, set.StateSetID)

	return nil
}

// HandleRepositoryChange applies a PDR repository change event from
// terminus tid and schedules the fetches it calls for.
func (h *Handler) HandleRepositoryChange(tid uint8, data []byte) error {
	ev, err := pldm.DecodeRepositoryChangeEvent(data)
	if err != nil {
		return err
	}

	switch ev.Format {
	case pldm.RefreshEntireRepository:
		h.refreshAll(tid)

		return nil
	case pldm.FormatIsPDRTypes:
		for _, rec := range ev.Records {
			for _, t := range rec.Entries {
				if t > math.MaxUint8 {
					h.logger.Debug().Uint32("type", t).Msg("Ignoring out of range PDR type")

					continue
				}

				n := h.repo.RemoveAllByType(pdr.Type(t), true)
				h.logger.Debug().Uint32("type", t).Int("removed", n).Msg("Dropped host records by type")
			}
		}

		h.pruneHostHandles()
		h.startFullScan()

		return nil
	}

	for _, rec := range ev.Records {
		switch rec.Operation {
		case pldm.RecordsAdded:
			for _, handle := range rec.Entries {
				h.enqueue(handle)
			}
		case pldm.RecordsModified:
			for _, handle := range rec.Entries {
				h.enqueueModified(handle)
			}
		case pldm.RecordsDeleted:
			for _, handle := range rec.Entries {
				h.removeHostRecord(handle)
			}
		case pldm.RefreshAllRecords:
			h.refreshAll(tid)

			return nil
		}
	}

	if len(h.plainQueue) > 0 || len(h.modifiedQueue) > 0 {
		h.armFetch()
	}

	return nil
}

// refreshAll forgets everything learned from tid and rescans the host.
func (h *Handler) refreshAll(tid uint8) {
	handles := h.locators.HandlesForTID(tid)
	if len(handles) == 0 {
		handles = []uint16{h.hostTerminusHandle}
	}

	for _, th := range handles {
		if th == h.cfg.BMCTerminusHandle {
			continue
		}

		n := h.repo.RemoveAllByTerminus(th)
		h.logger.Info().Uint16("terminus_handle", th).Int("removed", n).Msg("Dropped host records for refresh")
	}

	h.repo.RemoveAllByType(pdr.TypeEntityAssociation, true)

	h.stopWalk()
	h.sensors.Clear()
	h.fruPaths = make(map[uint16]string)

	h.tree = h.bmcTree.Clone()
	h.entityTermini = make(map[entity.Entity]uint16)
	h.mergedHostParents = false
	h.pendingMerges = nil
	h.announce = nil
	h.truncate()
	h.pruneHostHandles()
	h.startFullScan()
}

// removeHostRecord drops a record the host deleted along with the sensor
// or FRU entry built from it. Entities merged from a deleted association
// stay in the tree until the next refresh or host-off.
func (h *Handler) removeHostRecord(hostHandle uint32) {
	local, ok := h.hostHandles[hostHandle]
	if !ok {
		local = hostHandle
	}

	if rec, err := h.repo.Get(local); err == nil && rec.Remote {
		h.forgetRecord(rec.Data)
	}

	if h.repo.RemoveByHandle(local, true) {
		h.logger.Debug().Uint32("host_handle", hostHandle).Uint32("record_handle", local).Msg("Removed host record")
	}

	delete(h.hostHandles, hostHandle)
}

func (h *Handler) forgetRecord(data []byte) {
	record, err := pdr.Decode(data)
	if err != nil {
		return
	}

	switch r := record.(type) {
	case *pdr.StateSensor:
		key := terminus.SensorKey{TID: h.locators.TID(r.TerminusHandle), SensorID: r.SensorID}
		if h.sensors.Remove(key) {
			h.logger.Debug().Uint8("tid", key.TID).Uint16("sensor_id", key.SensorID).Msg("Removed sensor")
		}
	case *pdr.FRURecordSet:
		delete(h.fruPaths, r.RecordSetID)
	case *pdr.EntityAssociation:
		h.logger.Debug().Str("container", r.Container.String()).Msg("Association deleted, entities kept until refresh")
	}
}

// pruneHostHandles forgets mappings whose local record is gone.
func (h *Handler) pruneHostHandles() {
	for hostHandle, local := range h.hostHandles {
		if _, err := h.repo.Get(local); err != nil {
			delete(h.hostHandles, hostHandle)
		}
	}
}
