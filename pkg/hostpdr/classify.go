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

	"github.com/carverauto/pldmd/pkg/entity"
	"github.com/carverauto/pldmd/pkg/metrics"
	"github.com/carverauto/pldmd/pkg/pdr"
	"github.com/carverauto/pldmd/pkg/terminus"
)

// classify commits one fully received record. It returns true when the
// remaining scan must be abandoned.
func (h *Handler) classify(data []byte, modified bool) bool {
	record, err := pdr.Decode(data)
	if err != nil {
		h.logger.Warn().Err(err).Int("length", len(data)).Msg("Dropping undecodable PDR")
		metrics.RecordRecordDropped(h.ctx, "decode")

		return false
	}

	hdr := record.Header()
	h.cycleRecords++
	metrics.RecordRecordFetched(h.ctx, hdr.Type.String())

	switch r := record.(type) {
	case *pdr.EntityAssociation:
		if !h.merge(r) {
			h.pendingMerges = append(h.pendingMerges, r)
		}
	case *pdr.TerminusLocator:
		return h.classifyLocator(r, data, modified)
	case *pdr.StateSensor:
		r.Entity = h.localizeEntity(data, r.Entity)
		if _, ok := h.store(data, hdr.RecordHandle, r.TerminusHandle, modified); ok {
			h.stateSensors = append(h.stateSensors, r)
		}
	case *pdr.FRURecordSet:
		r.Entity = h.localizeEntity(data, r.Entity)
		if _, ok := h.store(data, hdr.RecordHandle, r.TerminusHandle, modified); ok {
			h.frus = append(h.frus, r)
		}
	default:
		th, ok := pdr.TerminusHandleOf(data)
		if !ok {
			th = h.hostTerminusHandle
		}

		if e, err := pdr.EntityOf(data); err == nil {
			h.localizeEntity(data, e)
		}

		h.store(data, hdr.RecordHandle, th, modified)
	}

	return false
}

// classifyLocator records the host terminus. An invalid locator marks the
// terminus's records invalid and its entities unavailable and, with the
// host down, ends the scan.
func (h *Handler) classifyLocator(r *pdr.TerminusLocator, data []byte, modified bool) bool {
	eid, _ := r.EID()

	prev, existed := h.locators.Update(r.TerminusHandle, terminus.Locator{TID: r.TID, EID: eid, Valid: r.Valid})
	if existed && prev.TID != r.TID {
		h.logger.Info().
			Uint16("terminus_handle", r.TerminusHandle).
			Uint8("old_tid", prev.TID).
			Uint8("tid", r.TID).
			Msg("Terminus id changed")
	}

	if r.TerminusHandle != h.cfg.BMCTerminusHandle {
		h.hostTerminusHandle = r.TerminusHandle
	}

	h.store(data, r.Hdr.RecordHandle, r.TerminusHandle, modified)

	if r.Valid {
		return false
	}

	n := h.repo.UpdateTerminusValidity(r.TerminusHandle, r.TID, false)
	paths := h.markTerminusUnavailable(r.TerminusHandle)
	h.logger.Info().
		Uint16("terminus_handle", r.TerminusHandle).
		Uint8("tid", r.TID).
		Int("locators", n).
		Int("unavailable_paths", paths).
		Msg("Host terminus marked invalid")

	return !h.HostUp()
}

// localizeEntity rewrites the container id of an entity-bearing record when
// the merge gave the host's entity a container id of its own. It returns
// the entity as the local tree knows it.
func (h *Handler) localizeEntity(data []byte, e entity.Entity) entity.Entity {
	node := h.tree.FindWithLocality(e, true)
	if node == nil || node.Entity() == e {
		return e
	}

	local := node.Entity()
	if err := pdr.RewriteContainerID(data, local.ContainerID); err != nil {
		h.logger.Warn().Err(err).Str("entity", e.String()).Msg("Failed to rewrite container id")

		return e
	}

	return local
}

// store adds a host record to the repository, replacing the copy from an
// earlier pass when there is one. The host's handle is kept when it is
// free locally.
func (h *Handler) store(data []byte, hostHandle uint32, terminusHandle uint16, modified bool) (uint32, bool) {
	var desired uint32

	if local, ok := h.hostHandles[hostHandle]; ok {
		desired = local
	} else if hostHandle != 0 {
		existing, err := h.repo.Get(hostHandle)

		switch {
		case errors.Is(err, pdr.ErrRecordNotFound):
			desired = hostHandle
		case err == nil && modified && existing.Remote:
			desired = hostHandle
		}
	}

	handle, err := h.repo.Add(data, true, terminusHandle, desired)
	if err != nil {
		reason := "add"
		if errors.Is(err, pdr.ErrRepositoryFull) {
			reason = "repository_full"
		}

		h.logger.Warn().Err(err).Uint32("host_handle", hostHandle).Msg("Dropping host PDR")
		metrics.RecordRecordDropped(h.ctx, reason)

		return 0, false
	}

	h.hostHandles[hostHandle] = handle

	return handle, true
}
