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
	"github.com/carverauto/pldmd/pkg/entity"
	"github.com/carverauto/pldmd/pkg/metrics"
	"github.com/carverauto/pldmd/pkg/pdr"
)

// merge grafts the children of a host entity association under their
// container in the local tree. It returns false when the container is not
// in the tree yet.
func (h *Handler) merge(ea *pdr.EntityAssociation) bool {
	parent := h.tree.FindWithLocality(ea.Container, h.mergedHostParents)
	if parent == nil {
		h.logger.Debug().Str("container", ea.Container.String()).Msg("Deferring association, container not found")
		metrics.RecordMerge(h.ctx, "deferred")

		return false
	}

	var added []entity.Entity

	for _, child := range ea.Children {
		node := h.tree.AddEntity(child, parent, ea.AssociationType, entity.AddOptions{
			Remote: true,
			// Host ids without the remote bit share the BMC's namespace.
			ReassignContainer: !child.RemoteContainer(),
		})
		if node != nil {
			added = append(added, node.Entity())
			h.entityTermini[node.Entity()] = h.hostTerminusHandle
		}
	}

	h.mergedHostParents = true

	if len(added) == 0 {
		metrics.RecordMerge(h.ctx, "duplicate")

		return true
	}

	if !reachable(h.tree, parent) {
		h.logger.Warn().Str("container", parent.Entity().String()).Msg("Merged container is detached from the tree")
		metrics.RecordMerge(h.ctx, "detached")

		return true
	}

	record, err := pdr.NewEntityAssociation(parent.Entity(), ea.AssociationType, added)
	if err != nil {
		h.logger.Warn().Err(err).Str("container", parent.Entity().String()).Msg("Failed to build association record")
		metrics.RecordMerge(h.ctx, "failed")

		return true
	}

	handle, err := h.repo.Add(record.Marshal(), true, h.hostTerminusHandle, 0)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Dropping merged association record")
		metrics.RecordRecordDropped(h.ctx, "repository_full")
		metrics.RecordMerge(h.ctx, "failed")

		return true
	}

	h.announce = append(h.announce, handle)
	metrics.RecordMerge(h.ctx, "merged")

	h.logger.Debug().
		Str("container", parent.Entity().String()).
		Int("children", len(added)).
		Uint32("record_handle", handle).
		Msg("Merged host entity association")

	return true
}

// retryPendingMerges replays deferred associations until a pass makes no
// progress. Whatever is left waits for a later cycle.
func (h *Handler) retryPendingMerges() {
	for len(h.pendingMerges) > 0 {
		var remaining []*pdr.EntityAssociation

		for _, ea := range h.pendingMerges {
			if !h.merge(ea) {
				remaining = append(remaining, ea)
			}
		}

		progress := len(remaining) < len(h.pendingMerges)
		h.pendingMerges = remaining

		if !progress {
			break
		}
	}

	if len(h.pendingMerges) > 0 {
		h.logger.Debug().Int("pending", len(h.pendingMerges)).Msg("Associations still waiting for their container")
	}
}

// reachable reports whether n hangs off one of the tree's roots.
func reachable(t *entity.Tree, n *entity.Node) bool {
	top := n
	for top.Parent() != nil {
		top = top.Parent()
	}

	for _, r := range t.Roots() {
		if r == top {
			return true
		}
	}

	return false
}
