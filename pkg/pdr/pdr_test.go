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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/pldmd/pkg/entity"
)

func TestEntityAssociationWireLayout(t *testing.T) {
	rec := &EntityAssociation{
		Hdr:             Header{RecordHandle: 10, Version: 1, ChangeNumber: 0},
		ContainerID:     2,
		AssociationType: entity.Physical,
		Container:       entity.Entity{Type: 1, Instance: 0, ContainerID: 1},
		Children:        []entity.Entity{{Type: 2, Instance: 0, ContainerID: 2}},
	}

	raw := rec.Marshal()
	assert.Equal(t, []byte{
		10, 0, 0, 0, 1, 15, 0, 0, 16, 0,
		2, 0, 0,
		1, 0, 0, 0, 1, 0,
		1,
		2, 0, 0, 0, 2, 0,
	}, raw)

	decoded, err := Decode(raw)
	require.NoError(t, err)

	ea, ok := decoded.(*EntityAssociation)
	require.True(t, ok)
	assert.Equal(t, rec.Container, ea.Container)
	assert.Equal(t, rec.Children, ea.Children)
	assert.Equal(t, uint16(16), ea.Header().Length)
}

func TestDecodeKnownTypes(t *testing.T) {
	board := entity.Entity{Type: entity.TypeSystemBoard, Instance: 1, ContainerID: 1}

	tests := []struct {
		name string
		rec  PDR
		want Type
	}{
		{
			name: "terminus locator",
			rec: &TerminusLocator{TerminusHandle: 2, Valid: true, TID: 1, LocatorType: LocatorMCTPEID,
				LocatorValue: []byte{9}},
			want: TypeTerminusLocator,
		},
		{
			name: "state sensor",
			rec: &StateSensor{TerminusHandle: 2, SensorID: 7, Entity: board,
				States: []PossibleStates{NewPossibleStates(1, 1, 2, 3)}},
			want: TypeStateSensor,
		},
		{
			name: "state effecter",
			rec: &StateEffecter{TerminusHandle: 2, EffecterID: 3, Entity: board,
				States: []PossibleStates{NewPossibleStates(17, 1, 2)}},
			want: TypeStateEffecter,
		},
		{
			name: "numeric effecter",
			rec:  &NumericEffecter{TerminusHandle: 2, EffecterID: 4, Entity: board, Tail: []byte{1, 2, 3, 4, 5}},
			want: TypeNumericEffecter,
		},
		{
			name: "fru record set",
			rec:  &FRURecordSet{TerminusHandle: 2, RecordSetID: 12, Entity: board},
			want: TypeFRURecordSet,
		},
		{
			name: "oem",
			rec:  &Opaque{Hdr: Header{Type: TypeOEM}, Body: []byte{0xde, 0xad}},
			want: TypeOEM,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := tt.rec.Marshal()

			decoded, err := Decode(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, decoded.Header().Type)
			assert.Equal(t, raw, decoded.Marshal())
		})
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := Decode([]byte{1, 0, 0})
	require.ErrorIs(t, err, ErrShortRecord)

	raw := (&FRURecordSet{TerminusHandle: 1}).Marshal()

	_, err = Decode(raw[:len(raw)-1])
	require.ErrorIs(t, err, ErrLengthMismatch)

	ea := (&EntityAssociation{Children: []entity.Entity{{Type: 2}}}).Marshal()
	ea[HeaderSize+9] = 3

	_, err = Decode(ea)
	require.ErrorIs(t, err, ErrShortRecord)

	ss := (&StateSensor{States: []PossibleStates{NewPossibleStates(1, 1)}}).Marshal()
	ss[HeaderSize+12] = 2

	_, err = Decode(ss)
	require.ErrorIs(t, err, ErrStateSetTruncated)
}

func TestPossibleStates(t *testing.T) {
	ps := NewPossibleStates(13, 1, 2, 9)

	assert.Len(t, ps.Bitfield, 2)
	assert.True(t, ps.Contains(1))
	assert.True(t, ps.Contains(9))
	assert.False(t, ps.Contains(3))
	assert.False(t, ps.Contains(200))
	assert.Equal(t, []uint8{1, 2, 9}, ps.States())
}

func TestEntityHelpers(t *testing.T) {
	raw := (&StateSensor{
		TerminusHandle: 5,
		SensorID:       1,
		Entity:         entity.Entity{Type: 67, Instance: 2, ContainerID: 0x8004},
	}).Marshal()

	th, ok := TerminusHandleOf(raw)
	require.True(t, ok)
	assert.Equal(t, uint16(5), th)

	require.NoError(t, RewriteContainerID(raw, 3))

	e, err := EntityOf(raw)
	require.NoError(t, err)
	assert.Equal(t, entity.Entity{Type: 67, Instance: 2, ContainerID: 3}, e)

	ea := (&EntityAssociation{}).Marshal()
	_, ok = TerminusHandleOf(ea)
	assert.False(t, ok)

	_, err = EntityOf(ea)
	require.ErrorIs(t, err, ErrNoEntityFields)
}

func record(t Type, body ...byte) []byte {
	return (&Opaque{Hdr: Header{Type: t}, Body: body}).Marshal()
}

func TestRepositoryAdd(t *testing.T) {
	repo := NewRepository()

	h1, err := repo.Add(record(TypeOEM, 1), false, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), h1)

	h2, err := repo.Add(record(TypeOEM, 2), true, 2, 20)
	require.NoError(t, err)
	assert.Equal(t, uint32(20), h2)

	h3, err := repo.Add(record(TypeOEM, 3), true, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(21), h3)

	rec, err := repo.Get(20)
	require.NoError(t, err)

	hdr, err := DecodeHeader(rec.Data)
	require.NoError(t, err)
	assert.Equal(t, uint32(20), hdr.RecordHandle)

	// replace keeps the slot
	replaced, err := repo.Add(record(TypeOEM, 9), true, 2, 20)
	require.NoError(t, err)
	assert.Equal(t, uint32(20), replaced)
	assert.Equal(t, 3, repo.Len())
	assert.Equal(t, []uint32{1, 20, 21}, repo.HandlesByType(TypeOEM))

	rec, err = repo.Get(20)
	require.NoError(t, err)
	assert.Equal(t, byte(9), rec.Data[HeaderSize])

	_, err = repo.Get(99)
	require.ErrorIs(t, err, ErrRecordNotFound)

	_, err = repo.Get(0)
	require.ErrorIs(t, err, ErrInvalidHandle)
}

func TestRepositoryAddCopiesInput(t *testing.T) {
	repo := NewRepository()
	data := record(TypeOEM, 1)

	h, err := repo.Add(data, false, 1, 0)
	require.NoError(t, err)

	data[HeaderSize] = 0xFF

	rec, err := repo.Get(h)
	require.NoError(t, err)
	assert.Equal(t, byte(1), rec.Data[HeaderSize])
}

func TestRepositoryCapacity(t *testing.T) {
	repo := NewRepository(WithMaxRecords(1))

	_, err := repo.Add(record(TypeOEM), false, 1, 0)
	require.NoError(t, err)

	h, err := repo.Add(record(TypeOEM), false, 1, 0)
	require.ErrorIs(t, err, ErrRepositoryFull)
	assert.Zero(t, h)
	assert.Equal(t, 1, repo.Len())

	_, err = repo.Add([]byte{1}, false, 1, 0)
	require.ErrorIs(t, err, ErrShortRecord)
}

func TestRepositoryRemoval(t *testing.T) {
	repo := NewRepository()

	add := func(typ Type, remote bool, th uint16) uint32 {
		h, err := repo.Add(record(typ), remote, th, 0)
		require.NoError(t, err)
		return h
	}

	local := add(TypeStateSensor, false, 1)
	add(TypeStateSensor, true, 2)
	remoteFRU := add(TypeFRURecordSet, true, 2)
	add(TypeStateSensor, true, 3)
	add(TypeFRURecordSet, false, 1)

	assert.False(t, repo.RemoveByHandle(local, true))
	assert.True(t, repo.RemoveByHandle(remoteFRU, true))

	assert.Equal(t, 1, repo.RemoveAllByType(TypeFRURecordSet, false))
	assert.Equal(t, 2, repo.RemoveAllByType(TypeStateSensor, true))
	assert.Equal(t, []uint32{local}, repo.HandlesByType(TypeStateSensor))

	add(TypeOEM, true, 4)
	add(TypeOEM, true, 5)
	assert.Equal(t, 1, repo.RemoveAllByTerminus(4))
	assert.Equal(t, 1, repo.RemoveRemote())
	assert.Equal(t, 1, repo.Len())
}

func TestRepositoryTraversal(t *testing.T) {
	repo := NewRepository()

	for _, typ := range []Type{TypeStateSensor, TypeOEM, TypeStateSensor, TypeFRURecordSet} {
		_, err := repo.Add(record(typ), false, 1, 0)
		require.NoError(t, err)
	}

	first := repo.FindFirstByType(TypeStateSensor)
	require.NotNil(t, first)
	assert.Equal(t, uint32(1), first.Handle)

	next := repo.FindNext(first, TypeStateSensor)
	require.NotNil(t, next)
	assert.Equal(t, uint32(3), next.Handle)
	assert.Nil(t, repo.FindNext(next, TypeStateSensor))

	last := repo.FindLastInRange(TypeTerminusLocator, TypeStateEffecter)
	require.NotNil(t, last)
	assert.Equal(t, uint32(3), last.Handle)
	assert.Nil(t, repo.FindLastInRange(TypeNumericSensor, TypeNumericSensor))

	assert.Equal(t, uint32(2), repo.NextHandle(1))
	assert.Equal(t, uint32(0), repo.NextHandle(4))
	assert.Equal(t, uint32(4), repo.LastHandle())
}

func TestUpdateTerminusValidity(t *testing.T) {
	repo := NewRepository()

	tl := (&TerminusLocator{TerminusHandle: 2, Valid: true, TID: 1, LocatorType: LocatorMCTPEID,
		LocatorValue: []byte{9}}).Marshal()

	h, err := repo.Add(tl, true, 2, 0)
	require.NoError(t, err)

	assert.Equal(t, 0, repo.UpdateTerminusValidity(2, 7, false))
	assert.Equal(t, 1, repo.UpdateTerminusValidity(2, 1, false))
	assert.Equal(t, 0, repo.UpdateTerminusValidity(2, 1, false))

	rec, err := repo.Get(h)
	require.NoError(t, err)

	decoded, err := Decode(rec.Data)
	require.NoError(t, err)
	assert.False(t, decoded.(*TerminusLocator).Valid)
}

func TestSnapshotIsDeterministic(t *testing.T) {
	repo := NewRepository()

	_, err := repo.Add(record(TypeOEM, 1, 2), true, 3, 0)
	require.NoError(t, err)

	var a, b bytes.Buffer
	require.NoError(t, repo.Snapshot(&a))
	require.NoError(t, repo.Snapshot(&b))
	assert.Equal(t, a.Bytes(), b.Bytes())

	snap, err := ReadSnapshot(&a)
	require.NoError(t, err)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, uint32(1), snap.LastHandle)
	assert.True(t, snap.Records[0].Remote)
	assert.Equal(t, uint8(TypeOEM), snap.Records[0].Type)
}
