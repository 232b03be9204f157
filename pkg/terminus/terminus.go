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

// Package terminus keeps the terminus locator table and the state sensor
// table used to attribute events from remote termini.
package terminus

import (
	"slices"

	"github.com/carverauto/pldmd/pkg/entity"
	"github.com/carverauto/pldmd/pkg/pdr"
)

// WildcardTID stands in for a terminus id that could not be resolved.
const WildcardTID uint8 = 0xFF

// Locator is what a terminus locator record says about one terminus.
type Locator struct {
	TID   uint8 `json:"tid"`
	EID   uint8 `json:"eid"`
	Valid bool  `json:"valid"`
}

// Table maps terminus handles to locators.
type Table struct {
	entries map[uint16]Locator
}

// NewTable returns an empty locator table.
func NewTable() *Table {
	return &Table{entries: make(map[uint16]Locator)}
}

// Update records loc for handle and returns the previous entry, if any.
func (t *Table) Update(handle uint16, loc Locator) (Locator, bool) {
	prev, ok := t.entries[handle]
	t.entries[handle] = loc

	return prev, ok
}

// Lookup returns the locator for handle.
func (t *Table) Lookup(handle uint16) (Locator, bool) {
	loc, ok := t.entries[handle]

	return loc, ok
}

// TID resolves handle to a terminus id, falling back to WildcardTID.
func (t *Table) TID(handle uint16) uint8 {
	if loc, ok := t.entries[handle]; ok {
		return loc.TID
	}

	return WildcardTID
}

// HandlesForTID lists the terminus handles that resolve to tid, ascending.
func (t *Table) HandlesForTID(tid uint8) []uint16 {
	var out []uint16

	for h, loc := range t.entries {
		if loc.TID == tid {
			out = append(out, h)
		}
	}

	slices.Sort(out)

	return out
}

// Handles lists every known terminus handle, ascending.
func (t *Table) Handles() []uint16 {
	out := make([]uint16, 0, len(t.entries))
	for h := range t.entries {
		out = append(out, h)
	}

	slices.Sort(out)

	return out
}

// RemoveIf drops every entry match selects and returns how many went.
func (t *Table) RemoveIf(match func(handle uint16, loc Locator) bool) int {
	removed := 0

	for h, loc := range t.entries {
		if match(h, loc) {
			delete(t.entries, h)
			removed++
		}
	}

	return removed
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// SensorKey identifies a sensor across termini.
type SensorKey struct {
	TID      uint8
	SensorID uint16
}

// SensorInfo is what the sensor table knows about one state sensor.
type SensorInfo struct {
	Entity    entity.Entity
	StateSets []pdr.PossibleStates
}

// StateSetIDs lists the state set of each composite offset.
func (s SensorInfo) StateSetIDs() []uint16 {
	ids := make([]uint16, len(s.StateSets))
	for i, set := range s.StateSets {
		ids[i] = set.StateSetID
	}

	return ids
}

// SensorTable maps sensors to the entity and states they report.
type SensorTable struct {
	sensors map[SensorKey]SensorInfo
}

// NewSensorTable returns an empty table.
func NewSensorTable() *SensorTable {
	return &SensorTable{sensors: make(map[SensorKey]SensorInfo)}
}

// Add records info under key, replacing any earlier entry.
func (s *SensorTable) Add(key SensorKey, info SensorInfo) {
	s.sensors[key] = info
}

// Lookup finds the sensor for (tid, sensorID). A miss is retried once under
// WildcardTID. The returned key is the one that matched.
func (s *SensorTable) Lookup(tid uint8, sensorID uint16) (SensorInfo, SensorKey, bool) {
	key := SensorKey{TID: tid, SensorID: sensorID}
	if info, ok := s.sensors[key]; ok {
		return info, key, true
	}

	key.TID = WildcardTID
	if info, ok := s.sensors[key]; ok {
		return info, key, true
	}

	return SensorInfo{}, SensorKey{}, false
}

// ForEntity lists the keys of sensors reporting on e, ordered by TID then
// sensor id.
func (s *SensorTable) ForEntity(e entity.Entity) []SensorKey {
	var out []SensorKey

	for k, info := range s.sensors {
		if info.Entity.Same(e) {
			out = append(out, k)
		}
	}

	slices.SortFunc(out, func(a, b SensorKey) int {
		if a.TID != b.TID {
			return int(a.TID) - int(b.TID)
		}

		return int(a.SensorID) - int(b.SensorID)
	})

	return out
}

// Remove drops key and reports whether it was present.
func (s *SensorTable) Remove(key SensorKey) bool {
	if _, ok := s.sensors[key]; !ok {
		return false
	}

	delete(s.sensors, key)

	return true
}

// Clear empties the table.
func (s *SensorTable) Clear() {
	clear(s.sensors)
}

// Len returns the number of sensors.
func (s *SensorTable) Len() int { return len(s.sensors) }
