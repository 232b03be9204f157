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
	"fmt"
	"path"

	"github.com/carverauto/pldmd/pkg/entity"
	"github.com/carverauto/pldmd/pkg/metrics"
	"github.com/carverauto/pldmd/pkg/pdr"
	"github.com/carverauto/pldmd/pkg/pldm"
	"github.com/carverauto/pldmd/pkg/terminus"
)

// stateHandler publishes a state from a set without a dedicated inventory
// property.
type stateHandler func(path string, stateSetID uint16, state uint8) error

func (h *Handler) defaultStateHandlers() map[uint16]stateHandler {
	return map[uint16]stateHandler{
		pldm.StateSetAvailability: func(p string, _ uint16, state uint8) error {
			return h.setAvailable(p, state == pldm.AvailabilityAvailable)
		},
		pldm.StateSetPresence: func(p string, _ uint16, state uint8) error {
			return h.setAvailable(p, state == pldm.PresencePresent)
		},
	}
}

func (h *Handler) setAvailable(p string, available bool) error {
	if err := h.inv.PublishAvailability(h.ctx, p, available); err != nil {
		return err
	}

	h.available[p] = available

	return nil
}

// applyState routes one validated sensor state to the inventory.
func (h *Handler) applyState(p string, e entity.Entity, stateSetID uint16, state uint8) error {
	switch stateSetID {
	case pldm.StateSetHealthState:
		return h.inv.PublishFunctional(h.ctx, p, state == pldm.HealthNormal, path.Dir(p))
	case pldm.StateSetOperationalFaultState:
		return h.inv.PublishFunctional(h.ctx, p, state == pldm.OperationalFaultNormal, path.Dir(p))
	case pldm.StateSetIdentifyState:
		return h.inv.PublishIdentifyState(h.ctx, p, e, state == pldm.IdentifyAsserted)
	case pldm.StateSetVersion:
		return h.inv.PublishVersionChanged(h.ctx, p, e)
	}

	if handle, ok := h.stateHandlers[stateSetID]; ok {
		return handle(p, stateSetID, state)
	}

	return h.inv.PublishState(h.ctx, p, stateSetID, state)
}

// checkState validates a composite sensor offset and state against the
// sensor's declared state sets.
func checkState(info terminus.SensorInfo, offset, state uint8) (pdr.PossibleStates, error) {
	if int(offset) >= len(info.StateSets) {
		return pdr.PossibleStates{}, fmt.Errorf("%w: offset %d, %d state sets", ErrOffsetOutOfRange, offset, len(info.StateSets))
	}

	set := info.StateSets[offset]
	if !set.Contains(state) {
		return set, fmt.Errorf("%w: state %d in set %d", ErrStateOutOfRange, state, set.StateSetID)
	}

	return set, nil
}

// sensorWalk is the cursor of the post-sync sensor state read. It advances
// one GetStateSensorReadings exchange at a time.
type sensorWalk struct {
	gen       uint64
	active    bool
	paths     []string
	objIdx    int
	sensorIdx int
	keys      []terminus.SensorKey
	loaded    bool
}

func (h *Handler) startWalk() {
	h.walk = sensorWalk{gen: h.walk.gen + 1, active: true, paths: h.livePaths()}
	h.stepWalk()
}

func (h *Handler) stopWalk() {
	h.walk = sensorWalk{gen: h.walk.gen + 1}
}

// stepWalk issues the next sensor read, or finishes the walk.
func (h *Handler) stepWalk() {
	w := &h.walk

	for w.objIdx < len(w.paths) {
		p := w.paths[w.objIdx]

		if !w.loaded {
			w.keys = h.sensors.ForEntity(h.objectPaths[p])
			w.sensorIdx = 0
			w.loaded = true
		}

		if w.sensorIdx < len(w.keys) {
			key := w.keys[w.sensorIdx]
			w.sensorIdx++

			if h.readSensor(p, key) {
				return
			}

			continue
		}

		w.objIdx++
		w.loaded = false
	}

	w.active = false

	if h.phase == PhaseDispatching {
		h.phase = PhaseIdle
	}
}

func (h *Handler) readSensor(p string, key terminus.SensorKey) bool {
	eid := h.eidForTID(key.TID)

	instanceID, err := h.req.NextInstanceID(eid)
	if err != nil {
		h.logger.Warn().Err(err).Uint16("sensor_id", key.SensorID).Msg("No instance id for sensor read")

		return false
	}

	gen := h.walk.gen
	req := &pldm.GetStateSensorReadingsRequest{SensorID: key.SensorID}

	err = h.req.RegisterRequest(eid, instanceID, pldm.TypePlatform, pldm.CmdGetStateSensorReadings, req.Marshal(),
		func(_ uint8, payload []byte, err error) {
			if gen != h.walk.gen || !h.walk.active || !h.HostUp() {
				return
			}

			h.onSensorReading(p, key, payload, err)
			h.stepWalk()
		})
	if err != nil {
		h.logger.Warn().Err(err).Uint16("sensor_id", key.SensorID).Msg("Failed to send sensor read")

		return false
	}

	return true
}

func (h *Handler) onSensorReading(p string, key terminus.SensorKey, payload []byte, err error) {
	if err != nil {
		h.logger.Warn().Err(err).Uint16("sensor_id", key.SensorID).Str("path", p).Msg("Sensor read failed")

		return
	}

	resp, err := pldm.DecodeGetStateSensorReadingsResponse(payload)
	if err != nil {
		h.logger.Warn().Err(err).Uint16("sensor_id", key.SensorID).Msg("Malformed sensor reading")

		return
	}

	info, _, ok := h.sensors.Lookup(key.TID, key.SensorID)
	if !ok {
		return
	}

	for i, field := range resp.Fields {
		set, err := checkState(info, uint8(i), field.PresentState)
		if err != nil {
			h.logger.Debug().Err(err).Uint16("sensor_id", key.SensorID).Msg("Skipping sensor reading")
			metrics.RecordDispatch(h.ctx, metrics.DispatchRejected, set.StateSetID)

			continue
		}

		if err := h.applyState(p, info.Entity, set.StateSetID, field.PresentState); err != nil {
			h.logger.Warn().Err(err).Str("path", p).Uint16("state_set", set.StateSetID).Msg("Failed to publish sensor state")
			metrics.RecordDispatch(h.ctx, metrics.DispatchFailed, set.StateSetID)

			continue
		}

		metrics.RecordDispatch(h.ctx, metrics.DispatchApplied, set.StateSetID)
	}
}

// eidForTID finds the endpoint behind tid, defaulting to the host.
func (h *Handler) eidForTID(tid uint8) uint8 {
	for _, handle := range h.locators.HandlesForTID(tid) {
		if loc, ok := h.locators.Lookup(handle); ok && loc.Valid && loc.EID != 0 {
			return loc.EID
		}
	}

	return h.cfg.HostEID
}
