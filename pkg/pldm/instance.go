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

package pldm

import (
	"fmt"
	"sync"
)

// InstanceIDDB allocates request instance identifiers per endpoint. Each
// endpoint owns 32 identifiers; allocation rotates so a freshly released
// identifier is not handed out again immediately.
type InstanceIDDB struct {
	mu        sync.Mutex
	endpoints map[uint8]*instanceSlots
}

type instanceSlots struct {
	used uint32
	next uint8
}

// NewInstanceIDDB creates an empty allocator.
func NewInstanceIDDB() *InstanceIDDB {
	return &InstanceIDDB{endpoints: make(map[uint8]*instanceSlots)}
}

// Next allocates a free instance id for eid.
func (db *InstanceIDDB) Next(eid uint8) (uint8, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	slots, ok := db.endpoints[eid]
	if !ok {
		slots = &instanceSlots{}
		db.endpoints[eid] = slots
	}

	for i := 0; i <= MaxInstanceID; i++ {
		id := (slots.next + uint8(i)) & instanceMsk
		if slots.used&(1<<id) == 0 {
			slots.used |= 1 << id
			slots.next = (id + 1) & instanceMsk

			return id, nil
		}
	}

	return 0, fmt.Errorf("%w: eid %d", ErrInstanceIDExhausted, eid)
}

// Free releases an instance id previously returned by Next.
func (db *InstanceIDDB) Free(eid, id uint8) error {
	if id > MaxInstanceID {
		return ErrInvalidInstanceID
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	slots, ok := db.endpoints[eid]
	if !ok || slots.used&(1<<id) == 0 {
		return fmt.Errorf("%w: eid %d id %d", ErrInstanceIDNotInUse, eid, id)
	}

	slots.used &^= 1 << id

	return nil
}

// InUse returns the number of allocated ids for eid.
func (db *InstanceIDDB) InUse(eid uint8) int {
	db.mu.Lock()
	defer db.mu.Unlock()

	slots, ok := db.endpoints[eid]
	if !ok {
		return 0
	}

	n := 0
	for v := slots.used; v != 0; v &= v - 1 {
		n++
	}

	return n
}
