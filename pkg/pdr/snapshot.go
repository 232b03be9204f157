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
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

var snapshotEncMode cbor.EncMode

func init() {
	var err error

	snapshotEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("pdr: CBOR encoder initialization failed: " + err.Error())
	}
}

// SnapshotRecord is the dump form of one stored record.
type SnapshotRecord struct {
	Handle         uint32 `cbor:"1,keyasint"`
	Type           uint8  `cbor:"2,keyasint"`
	TerminusHandle uint16 `cbor:"3,keyasint"`
	Remote         bool   `cbor:"4,keyasint"`
	Data           []byte `cbor:"5,keyasint"`
}

// Snapshot is the dump form of a repository.
type Snapshot struct {
	LastHandle uint32           `cbor:"1,keyasint"`
	Records    []SnapshotRecord `cbor:"2,keyasint"`
}

// Snapshot writes the repository to w as deterministic CBOR.
func (r *Repository) Snapshot(w io.Writer) error {
	snap := Snapshot{
		LastHandle: r.lastHandle,
		Records:    make([]SnapshotRecord, 0, len(r.records)),
	}

	for _, rec := range r.records {
		snap.Records = append(snap.Records, SnapshotRecord{
			Handle:         rec.Handle,
			Type:           uint8(rec.Type),
			TerminusHandle: rec.TerminusHandle,
			Remote:         rec.Remote,
			Data:           rec.Data,
		})
	}

	if err := snapshotEncMode.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("pdr: encode snapshot: %w", err)
	}

	return nil
}

// ReadSnapshot decodes a snapshot written by Repository.Snapshot.
func ReadSnapshot(rd io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := cbor.NewDecoder(rd).Decode(&snap); err != nil {
		return nil, fmt.Errorf("pdr: decode snapshot: %w", err)
	}

	return &snap, nil
}
