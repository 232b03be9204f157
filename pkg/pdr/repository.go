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

package pdr

import (
	"encoding/binary"
	"fmt"
)

// Record is one stored PDR. Data is owned by the repository; callers must
// not retain or mutate it across repository operations.
type Record struct {
	Handle         uint32
	Type           Type
	TerminusHandle uint16
	Remote         bool
	Data           []byte
}

// Repository is an ordered store of PDRs keyed by record handle. It is not
// safe for concurrent use; the owning event loop serializes access.
type Repository struct {
	records    []*Record
	lastHandle uint32
	maxRecords int
}

// Option configures a Repository.
type Option func(*Repository)

// WithMaxRecords bounds the number of stored records. Zero means unbounded.
func WithMaxRecords(n int) Option {
	return func(r *Repository) {
		r.maxRecords = n
	}
}

// NewRepository returns an empty repository.
func NewRepository(opts ...Option) *Repository {
	r := &Repository{}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Add stores a copy of data and returns the record handle it was stored
// under. A non-zero desiredHandle that is already present is replaced in
// place, keeping its position in scan order; a free one is used as is.
// Otherwise the handle after the largest handle ever assigned is used. The
// stored record's header carries the assigned handle. On error the
// repository is unchanged and the returned handle is 0.
func (r *Repository) Add(data []byte, remote bool, terminusHandle uint16, desiredHandle uint32) (uint32, error) {
	hdr, err := DecodeHeader(data)
	if err != nil {
		return 0, err
	}

	if desiredHandle != 0 {
		if existing := r.get(desiredHandle); existing != nil {
			existing.Type = hdr.Type
			existing.TerminusHandle = terminusHandle
			existing.Remote = remote
			existing.Data = stamp(data, desiredHandle)

			return desiredHandle, nil
		}
	}

	if r.maxRecords > 0 && len(r.records) >= r.maxRecords {
		return 0, fmt.Errorf("%w: %d records", ErrRepositoryFull, len(r.records))
	}

	handle := desiredHandle
	if handle == 0 {
		if r.lastHandle == ^uint32(0) {
			return 0, fmt.Errorf("%w: handle space exhausted", ErrRepositoryFull)
		}

		handle = r.lastHandle + 1
	}

	if handle > r.lastHandle {
		r.lastHandle = handle
	}

	r.records = append(r.records, &Record{
		Handle:         handle,
		Type:           hdr.Type,
		TerminusHandle: terminusHandle,
		Remote:         remote,
		Data:           stamp(data, handle),
	})

	return handle, nil
}

func stamp(data []byte, handle uint32) []byte {
	out := append([]byte(nil), data...)
	binary.LittleEndian.PutUint32(out, handle)

	return out
}

func (r *Repository) get(handle uint32) *Record {
	for _, rec := range r.records {
		if rec.Handle == handle {
			return rec
		}
	}

	return nil
}

// Get returns the record stored under handle.
func (r *Repository) Get(handle uint32) (*Record, error) {
	if handle == 0 {
		return nil, ErrInvalidHandle
	}

	rec := r.get(handle)
	if rec == nil {
		return nil, fmt.Errorf("%w: handle %d", ErrRecordNotFound, handle)
	}

	return rec, nil
}

// Len returns the number of stored records.
func (r *Repository) Len() int { return len(r.records) }

// LastHandle is the largest handle ever assigned.
func (r *Repository) LastHandle() uint32 { return r.lastHandle }

// Records returns the stored records in scan order.
func (r *Repository) Records() []*Record {
	out := make([]*Record, len(r.records))
	copy(out, r.records)

	return out
}

// NextHandle returns the handle that follows handle in scan order, or 0
// when handle is the last record or absent.
func (r *Repository) NextHandle(handle uint32) uint32 {
	for i, rec := range r.records {
		if rec.Handle == handle {
			if i+1 < len(r.records) {
				return r.records[i+1].Handle
			}

			return 0
		}
	}

	return 0
}

func (r *Repository) removeIf(match func(*Record) bool) int {
	kept := r.records[:0]
	removed := 0

	for _, rec := range r.records {
		if match(rec) {
			removed++
			continue
		}

		kept = append(kept, rec)
	}

	for i := len(kept); i < len(r.records); i++ {
		r.records[i] = nil
	}

	r.records = kept

	return removed
}

// RemoveByHandle removes one record. When remoteOnly is set a local record
// under the same handle is left alone.
func (r *Repository) RemoveByHandle(handle uint32, remoteOnly bool) bool {
	return r.removeIf(func(rec *Record) bool {
		return rec.Handle == handle && (!remoteOnly || rec.Remote)
	}) > 0
}

// RemoveAllByTerminus removes every record anchored at terminusHandle.
func (r *Repository) RemoveAllByTerminus(terminusHandle uint16) int {
	return r.removeIf(func(rec *Record) bool {
		return rec.TerminusHandle == terminusHandle
	})
}

// RemoveAllByType removes every record of type t, optionally only the
// remote ones.
func (r *Repository) RemoveAllByType(t Type, remoteOnly bool) int {
	return r.removeIf(func(rec *Record) bool {
		return rec.Type == t && (!remoteOnly || rec.Remote)
	})
}

// RemoveRemote removes every record merged from a remote terminus.
func (r *Repository) RemoveRemote() int {
	return r.removeIf(func(rec *Record) bool {
		return rec.Remote
	})
}

// FindFirstByType returns the first record of type t in scan order.
func (r *Repository) FindFirstByType(t Type) *Record {
	for _, rec := range r.records {
		if rec.Type == t {
			return rec
		}
	}

	return nil
}

// FindNext returns the record of type t that follows cursor in scan order.
// The result is undefined if cursor has been removed since it was found.
func (r *Repository) FindNext(cursor *Record, t Type) *Record {
	if cursor == nil {
		return r.FindFirstByType(t)
	}

	seen := false

	for _, rec := range r.records {
		if !seen {
			seen = rec == cursor
			continue
		}

		if rec.Type == t {
			return rec
		}
	}

	return nil
}

// HandlesByType collects the handles of every record of type t, for
// callers that mutate the repository while walking.
func (r *Repository) HandlesByType(t Type) []uint32 {
	var out []uint32

	for rec := r.FindFirstByType(t); rec != nil; rec = r.FindNext(rec, t) {
		out = append(out, rec.Handle)
	}

	return out
}

// FindLastInRange returns the last record in scan order whose type lies in
// [low, high].
func (r *Repository) FindLastInRange(low, high Type) *Record {
	for i := len(r.records) - 1; i >= 0; i-- {
		if t := r.records[i].Type; t >= low && t <= high {
			return r.records[i]
		}
	}

	return nil
}

// validity byte of a terminus locator record
const offLocatorValidity = 12

// UpdateTerminusValidity rewrites the validity flag of the terminus locator
// records for terminusHandle that name tid, and returns how many changed.
func (r *Repository) UpdateTerminusValidity(terminusHandle uint16, tid uint8, valid bool) int {
	var flag byte
	if valid {
		flag = 1
	}

	updated := 0

	for _, rec := range r.records {
		if rec.Type != TypeTerminusLocator || len(rec.Data) < HeaderSize+8 {
			continue
		}

		if binary.LittleEndian.Uint16(rec.Data[offTerminusHandle:]) != terminusHandle || rec.Data[13] != tid {
			continue
		}

		if rec.Data[offLocatorValidity] != flag {
			rec.Data[offLocatorValidity] = flag
			updated++
		}
	}

	return updated
}
