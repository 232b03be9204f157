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
	"github.com/carverauto/pldmd/pkg/metrics"
	"github.com/carverauto/pldmd/pkg/pldm"
	"github.com/carverauto/pldmd/pkg/terminus"
)

// complete runs once the host has no more records to hand over.
func (h *Handler) complete() {
	h.phase = PhaseResolving

	h.retryPendingMerges()
	h.updateObjectPaths()
	h.publishPresence()
	h.buildSensorTable()
	h.buildFRUMap()
	h.announceMerged()
	h.logCycle()

	h.stateSensors = nil
	h.frus = nil

	if !h.HostUp() {
		h.phase = PhaseIdle

		return
	}

	h.phase = PhaseDispatching
	h.startWalk()
}

// updateObjectPaths rebuilds the object path map from the tree. Entities
// whose type has no name are structural: their children are placed directly
// under the nearest named ancestor. Paths that drop out are retired.
func (h *Handler) updateObjectPaths() {
	prev := h.objectPaths
	h.objectPaths = make(map[string]entity.Entity, len(prev))

	for _, root := range h.tree.Roots() {
		h.resolveNode(root, "", prev)
	}

	h.retirePaths(prev)
}

func (h *Handler) resolveNode(n *entity.Node, parentPath string, prev map[string]entity.Entity) {
	path := parentPath
	e := n.Entity()

	if name, ok := h.cfg.EntityNames[e.Type]; ok {
		if known, ok := pathIn(prev, e); ok {
			path = known
			h.claimPath(known, e)
		} else if resolved, err := h.inv.ResolvePath(h.ctx, e, name, parentPath); err != nil {
			h.logger.Warn().Err(err).Str("entity", e.String()).Msg("Failed to resolve object path")
		} else {
			path = resolved
			h.claimPath(resolved, e)
		}
	}

	for _, c := range n.Children() {
		h.resolveNode(c, path, prev)
	}
}

// claimPath binds path to e unless another entity already claimed it during
// this pass.
func (h *Handler) claimPath(path string, e entity.Entity) {
	if held, ok := h.objectPaths[path]; ok && held != e {
		h.logger.Debug().
			Str("path", path).
			Str("entity", e.String()).
			Str("holder", held.String()).
			Msg("Object path already claimed")

		return
	}

	h.objectPaths[path] = e
}

// retirePaths publishes paths missing from the rebuilt map as unavailable
// and drops the FRU record sets that pointed at them.
func (h *Handler) retirePaths(prev map[string]entity.Entity) {
	var gone []string

	for p := range prev {
		if _, ok := h.objectPaths[p]; !ok {
			gone = append(gone, p)
		}
	}

	sort.Strings(gone)

	for _, p := range gone {
		if h.available[p] {
			if err := h.setAvailable(p, false); err != nil {
				h.logger.Warn().Err(err).Str("path", p).Msg("Failed to publish availability")
			}
		} else {
			delete(h.available, p)
		}

		for id, fp := range h.fruPaths {
			if fp == p {
				delete(h.fruPaths, id)
			}
		}

		h.logger.Debug().Str("path", p).Str("entity", prev[p].String()).Msg("Object path retired")
	}
}

// livePaths lists, in order, the paths whose entity is in the tree.
func (h *Handler) livePaths() []string {
	paths := make([]string, 0, len(h.objectPaths))

	for p, e := range h.objectPaths {
		if h.tree.Find(e) != nil {
			paths = append(paths, p)
		}
	}

	sort.Strings(paths)

	return paths
}

// fromInvalidTerminus reports whether e was learned from a terminus whose
// locator is currently invalid.
func (h *Handler) fromInvalidTerminus(e entity.Entity) bool {
	th, ok := h.entityTermini[e]
	if !ok {
		return false
	}

	loc, ok := h.locators.Lookup(th)

	return ok && !loc.Valid
}

// markTerminusUnavailable publishes every path of an entity learned from
// terminusHandle as unavailable.
func (h *Handler) markTerminusUnavailable(terminusHandle uint16) int {
	n := 0

	for _, p := range h.livePaths() {
		th, ok := h.entityTermini[h.objectPaths[p]]
		if !ok || th != terminusHandle || !h.available[p] {
			continue
		}

		if err := h.setAvailable(p, false); err != nil {
			h.logger.Warn().Err(err).Str("path", p).Msg("Failed to publish availability")

			continue
		}

		n++
	}

	return n
}

func (h *Handler) publishPresence() {
	for _, p := range h.livePaths() {
		if h.available[p] || h.fromInvalidTerminus(h.objectPaths[p]) {
			continue
		}

		if err := h.inv.PublishAvailability(h.ctx, p, true); err != nil {
			h.logger.Warn().Err(err).Str("path", p).Msg("Failed to publish availability")

			continue
		}

		h.available[p] = true
	}
}

func (h *Handler) buildSensorTable() {
	for _, s := range h.stateSensors {
		key := terminus.SensorKey{TID: h.locators.TID(s.TerminusHandle), SensorID: s.SensorID}
		h.sensors.Add(key, terminus.SensorInfo{Entity: s.Entity, StateSets: s.States})
	}
}

func (h *Handler) buildFRUMap() {
	for _, f := range h.frus {
		p, ok := h.pathOf(f.Entity)
		if !ok {
			h.logger.Debug().Uint16("record_set", f.RecordSetID).Str("entity", f.Entity.String()).Msg("FRU record set has no object path")

			continue
		}

		h.fruPaths[f.RecordSetID] = p
	}
}

// announceMerged tells the host which association records the BMC added
// while merging its tree.
func (h *Handler) announceMerged() {
	if len(h.announce) == 0 {
		return
	}

	handles := h.announce
	h.announce = nil

	ev := &pldm.RepositoryChangeEvent{
		Format:  pldm.FormatIsPDRHandles,
		Records: []pldm.ChangeRecord{{Operation: pldm.RecordsAdded, Entries: handles}},
	}

	data, err := ev.Marshal()
	if err != nil {
		h.announceFailed(err)

		return
	}

	msg := &pldm.PlatformEventMessage{
		FormatVersion: pldm.EventFormatVersion,
		TID:           h.cfg.BMCTID,
		EventClass:    pldm.EventClassPDRRepositoryChange,
		EventData:     data,
	}

	eid := h.cfg.HostEID

	instanceID, err := h.req.NextInstanceID(eid)
	if err != nil {
		h.announceFailed(err)

		return
	}

	epoch := h.epoch

	err = h.req.RegisterRequest(eid, instanceID, pldm.TypePlatform, pldm.CmdPlatformEventMessage, msg.Marshal(),
		func(_ uint8, payload []byte, err error) {
			if epoch != h.epoch {
				return
			}

			if err == nil {
				var status uint8

				status, err = pldm.DecodePlatformEventResponse(payload)
				if err == nil && status == pldm.EventLoggingReject {
					err = ErrEventStatusRejected
				}
			}

			if err != nil {
				h.announceFailed(err)

				return
			}

			metrics.RecordChangeEventSent(h.ctx, "acknowledged")
		})
	if err != nil {
		h.announceFailed(err)

		return
	}

	h.logger.Info().Int("records", len(handles)).Msg("Announced merged association records to host")
}

func (h *Handler) announceFailed(err error) {
	h.logger.Error().Err(err).Msg("Failed to announce repository change to host")
	metrics.RecordChangeEventSent(h.ctx, "failed")

	if rerr := h.reporter.ReportError(h.ctx, ErrorTypeInternalFailure, map[string]string{
		"operation": "repository_change_event",
		"error":     err.Error(),
	}); rerr != nil {
		h.logger.Error().Err(rerr).Msg("Failed to report internal failure")
	}
}

func (h *Handler) logCycle() {
	var first, last uint32

	for _, rec := range h.repo.Records() {
		if !rec.Remote {
			continue
		}

		if first == 0 || rec.Handle < first {
			first = rec.Handle
		}

		if rec.Handle > last {
			last = rec.Handle
		}
	}

	h.logger.Info().
		Int("records", h.cycleRecords).
		Uint32("first_handle", first).
		Uint32("last_handle", last).
		Int("object_paths", len(h.objectPaths)).
		Int("sensors", h.sensors.Len()).
		Msg("Host PDR synchronization complete")

	if !h.cycleStart.IsZero() {
		metrics.RecordCycleDuration(h.ctx, time.Since(h.cycleStart), h.cycleRecords)
	}

	h.cycleStart = time.Time{}
	h.cycleRecords = 0
}
