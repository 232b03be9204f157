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
	"sort"
	"time"

	"github.com/carverauto/pldmd/pkg/entity"
	"github.com/carverauto/pldmd/pkg/terminus"
)

// HostStateChanged tracks the host power state. The host coming up starts a
// full scan; the host going off discards everything learned from it.
func (h *Handler) HostStateChanged(state HostState) {
	prev := h.hostState
	if prev == state {
		return
	}

	h.hostState = state

	h.logger.Info().Str("from", string(prev)).Str("to", string(state)).Msg("Host state changed")

	switch state {
	case HostRunning:
		h.startFullScan()
	case HostOff:
		h.teardown()
	case HostTransitioning:
	}
}

// teardown returns the handler to its BMC-only state.
func (h *Handler) teardown() {
	h.epoch++
	h.fetch.Disarm()
	h.stopWalk()

	h.inFlight = false
	h.transfer = transfer{}
	h.truncate()
	h.cycleStart = time.Time{}
	h.cycleRecords = 0

	h.sensors.Clear()
	h.stateSensors = nil
	h.frus = nil
	h.pendingMerges = nil
	h.announce = nil
	h.hostHandles = make(map[uint32]uint32)
	h.fruPaths = make(map[uint16]string)

	removed := h.repo.RemoveRemote()
	h.locators.RemoveIf(func(handle uint16, _ terminus.Locator) bool {
		return handle != h.cfg.BMCTerminusHandle
	})
	h.hostTerminusHandle = h.cfg.HostTerminusHandle

	h.tree = h.bmcTree.Clone()
	h.entityTermini = make(map[entity.Entity]uint16)
	h.mergedHostParents = false

	for _, p := range h.sortedAvailable() {
		if err := h.inv.PublishAvailability(h.ctx, p, false); err != nil {
			h.logger.Warn().Err(err).Str("path", p).Msg("Failed to publish availability")
		}

		h.available[p] = false
	}

	h.phase = PhaseIdle

	h.logger.Info().Int("removed_records", removed).Int("entities", h.tree.Len()).Msg("Host PDR state reset")
}

func (h *Handler) sortedAvailable() []string {
	var paths []string

	for p, ok := range h.available {
		if ok {
			paths = append(paths, p)
		}
	}

	sort.Strings(paths)

	return paths
}
