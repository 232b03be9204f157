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

// Package pdr holds the platform descriptor record codec and the in-memory
// repository the BMC serves to its peers.
package pdr

import (
	"encoding/binary"
	"fmt"

	"github.com/carverauto/pldmd/pkg/entity"
)

// HeaderSize is the size of the common PDR header.
const HeaderSize = 10

// HeaderVersion is the only PDR header version this codec produces.
const HeaderVersion uint8 = 1

// Type is the PDR type carried in the common header.
type Type uint8

const (
	TypeTerminusLocator   Type = 1
	TypeNumericSensor     Type = 2
	TypeStateSensor       Type = 4
	TypeNumericEffecter   Type = 9
	TypeStateEffecter     Type = 11
	TypeEntityAssociation Type = 15
	TypeFRURecordSet      Type = 20
	TypeOEM               Type = 127
)

func (t Type) String() string {
	switch t {
	case TypeTerminusLocator:
		return "terminus-locator"
	case TypeNumericSensor:
		return "numeric-sensor"
	case TypeStateSensor:
		return "state-sensor"
	case TypeNumericEffecter:
		return "numeric-effecter"
	case TypeStateEffecter:
		return "state-effecter"
	case TypeEntityAssociation:
		return "entity-association"
	case TypeFRURecordSet:
		return "fru-record-set"
	case TypeOEM:
		return "oem"
	default:
		return fmt.Sprintf("type-%d", uint8(t))
	}
}

// Byte offsets shared by the record types that open with a terminus handle
// followed by an id and an entity triple.
const (
	offTerminusHandle = 10
	offEntityType     = 14
	offEntityInstance = 16
	offContainerID    = 18
	entityFieldsEnd   = 20
)

// Header is the common PDR header.
type Header struct {
	RecordHandle uint32
	Version      uint8
	Type         Type
	ChangeNumber uint16
	Length       uint16
}

// DecodeHeader decodes the header at the start of data.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, ErrShortRecord
	}

	return Header{
		RecordHandle: binary.LittleEndian.Uint32(data),
		Version:      data[4],
		Type:         Type(data[5]),
		ChangeNumber: binary.LittleEndian.Uint16(data[6:]),
		Length:       binary.LittleEndian.Uint16(data[8:]),
	}, nil
}

func (h Header) put(buf []byte) {
	binary.LittleEndian.PutUint32(buf, h.RecordHandle)
	buf[4] = h.Version
	buf[5] = byte(h.Type)
	binary.LittleEndian.PutUint16(buf[6:], h.ChangeNumber)
	binary.LittleEndian.PutUint16(buf[8:], h.Length)
}

// PDR is a decoded record. The concrete types are the closed set defined in
// this file; anything else decodes to *Opaque.
type PDR interface {
	Header() Header
	Marshal() []byte
}

func marshal(h Header, t Type, body []byte) []byte {
	h.Type = t
	if h.Version == 0 {
		h.Version = HeaderVersion
	}

	h.Length = uint16(len(body))

	buf := make([]byte, HeaderSize+len(body))
	h.put(buf)
	copy(buf[HeaderSize:], body)

	return buf
}

// Decode decodes a whole record into its typed form.
func Decode(data []byte) (PDR, error) {
	hdr, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}

	if int(hdr.Length) != len(data)-HeaderSize {
		return nil, fmt.Errorf("%w: header says %d, have %d", ErrLengthMismatch, hdr.Length, len(data)-HeaderSize)
	}

	switch hdr.Type {
	case TypeEntityAssociation:
		return decodeEntityAssociation(hdr, data)
	case TypeTerminusLocator:
		return decodeTerminusLocator(hdr, data)
	case TypeStateSensor:
		return decodeStateSensor(hdr, data)
	case TypeStateEffecter:
		return decodeStateEffecter(hdr, data)
	case TypeNumericEffecter:
		return decodeNumericEffecter(hdr, data)
	case TypeFRURecordSet:
		return decodeFRURecordSet(hdr, data)
	default:
		return &Opaque{Hdr: hdr, Body: clone(data[HeaderSize:])}, nil
	}
}

// EntityAssociation describes a container entity and the entities it
// contains.
type EntityAssociation struct {
	Hdr             Header
	ContainerID     uint16
	AssociationType entity.AssociationType
	Container       entity.Entity
	Children        []entity.Entity
}

func (r *EntityAssociation) Header() Header { return r.Hdr }

// Marshal encodes the record; the child count is derived from Children.
func (r *EntityAssociation) Marshal() []byte {
	body := make([]byte, 10, 10+6*len(r.Children))
	binary.LittleEndian.PutUint16(body, r.ContainerID)
	body[2] = byte(r.AssociationType)
	putEntity(body[3:], r.Container)
	body[9] = byte(len(r.Children))

	for _, c := range r.Children {
		var e [6]byte
		putEntity(e[:], c)
		body = append(body, e[:]...)
	}

	return marshal(r.Hdr, TypeEntityAssociation, body)
}

func decodeEntityAssociation(hdr Header, data []byte) (*EntityAssociation, error) {
	body := data[HeaderSize:]
	if len(body) < 10 {
		return nil, ErrShortRecord
	}

	n := int(body[9])
	if len(body) < 10+6*n {
		return nil, fmt.Errorf("%w: %d children declared", ErrShortRecord, n)
	}

	r := &EntityAssociation{
		Hdr:             hdr,
		ContainerID:     binary.LittleEndian.Uint16(body),
		AssociationType: entity.AssociationType(body[2]),
		Container:       getEntity(body[3:]),
		Children:        make([]entity.Entity, n),
	}

	for i := 0; i < n; i++ {
		r.Children[i] = getEntity(body[10+6*i:])
	}

	return r, nil
}

// NewEntityAssociation builds an association record for container and a
// subset of its children.
func NewEntityAssociation(container entity.Entity, assoc entity.AssociationType, children []entity.Entity) (*EntityAssociation, error) {
	if len(children) > 0xFF {
		return nil, ErrTooManyChildren
	}

	containerID := container.ContainerID
	if len(children) > 0 {
		containerID = children[0].ContainerID
	}

	return &EntityAssociation{
		Hdr:             Header{Version: HeaderVersion, Type: TypeEntityAssociation},
		ContainerID:     containerID,
		AssociationType: assoc,
		Container:       container,
		Children:        append([]entity.Entity(nil), children...),
	}, nil
}

// LocatorMCTPEID is the terminus locator type carrying an MCTP endpoint id.
const LocatorMCTPEID uint8 = 1

// TerminusLocator binds a terminus handle to a terminus id and a transport
// address.
type TerminusLocator struct {
	Hdr            Header
	TerminusHandle uint16
	Valid          bool
	TID            uint8
	ContainerID    uint16
	LocatorType    uint8
	LocatorValue   []byte
}

func (r *TerminusLocator) Header() Header { return r.Hdr }

// EID returns the MCTP endpoint id when the locator carries one.
func (r *TerminusLocator) EID() (uint8, bool) {
	if r.LocatorType != LocatorMCTPEID || len(r.LocatorValue) < 1 {
		return 0, false
	}

	return r.LocatorValue[0], true
}

func (r *TerminusLocator) Marshal() []byte {
	body := make([]byte, 8, 8+len(r.LocatorValue))
	binary.LittleEndian.PutUint16(body, r.TerminusHandle)

	if r.Valid {
		body[2] = 1
	}

	body[3] = r.TID
	binary.LittleEndian.PutUint16(body[4:], r.ContainerID)
	body[6] = r.LocatorType
	body[7] = byte(len(r.LocatorValue))
	body = append(body, r.LocatorValue...)

	return marshal(r.Hdr, TypeTerminusLocator, body)
}

func decodeTerminusLocator(hdr Header, data []byte) (*TerminusLocator, error) {
	body := data[HeaderSize:]
	if len(body) < 8 {
		return nil, ErrShortRecord
	}

	size := int(body[7])
	if len(body) < 8+size {
		return nil, ErrShortRecord
	}

	return &TerminusLocator{
		Hdr:            hdr,
		TerminusHandle: binary.LittleEndian.Uint16(body),
		Valid:          body[2] != 0,
		TID:            body[3],
		ContainerID:    binary.LittleEndian.Uint16(body[4:]),
		LocatorType:    body[6],
		LocatorValue:   clone(body[8 : 8+size]),
	}, nil
}

// PossibleStates is one composite sensor or effecter state set.
type PossibleStates struct {
	StateSetID uint16
	// Bitfield holds one bit per state value, least significant bit first.
	Bitfield []byte
}

// Contains reports whether state is a declared possible state.
func (p PossibleStates) Contains(state uint8) bool {
	i := int(state) / 8
	if i >= len(p.Bitfield) {
		return false
	}

	return p.Bitfield[i]&(1<<(state%8)) != 0
}

// States lists the declared possible states in ascending order.
func (p PossibleStates) States() []uint8 {
	var out []uint8

	for i, b := range p.Bitfield {
		for bit := 0; bit < 8; bit++ {
			if b&(1<<bit) != 0 {
				out = append(out, uint8(i*8+bit))
			}
		}
	}

	return out
}

// NewPossibleStates builds a state set from a list of state values.
func NewPossibleStates(stateSetID uint16, states ...uint8) PossibleStates {
	size := 1

	for _, s := range states {
		if n := int(s)/8 + 1; n > size {
			size = n
		}
	}

	bits := make([]byte, size)
	for _, s := range states {
		bits[s/8] |= 1 << (s % 8)
	}

	return PossibleStates{StateSetID: stateSetID, Bitfield: bits}
}

func putStateSets(body []byte, sets []PossibleStates) []byte {
	for _, s := range sets {
		var id [3]byte
		binary.LittleEndian.PutUint16(id[:], s.StateSetID)
		id[2] = byte(len(s.Bitfield))
		body = append(body, id[:]...)
		body = append(body, s.Bitfield...)
	}

	return body
}

func getStateSets(rest []byte, count int) ([]PossibleStates, error) {
	sets := make([]PossibleStates, 0, count)

	for i := 0; i < count; i++ {
		if len(rest) < 3 {
			return nil, ErrStateSetTruncated
		}

		size := int(rest[2])
		if len(rest) < 3+size {
			return nil, ErrStateSetTruncated
		}

		sets = append(sets, PossibleStates{
			StateSetID: binary.LittleEndian.Uint16(rest),
			Bitfield:   clone(rest[3 : 3+size]),
		})
		rest = rest[3+size:]
	}

	return sets, nil
}

// StateSensor describes a (possibly composite) state sensor.
type StateSensor struct {
	Hdr            Header
	TerminusHandle uint16
	SensorID       uint16
	Entity         entity.Entity
	SensorInit     uint8
	AuxNames       bool
	States         []PossibleStates
}

func (r *StateSensor) Header() Header { return r.Hdr }

func (r *StateSensor) Marshal() []byte {
	body := make([]byte, 13, 64)
	binary.LittleEndian.PutUint16(body, r.TerminusHandle)
	binary.LittleEndian.PutUint16(body[2:], r.SensorID)
	putEntity(body[4:], r.Entity)
	body[10] = r.SensorInit

	if r.AuxNames {
		body[11] = 1
	}

	body[12] = byte(len(r.States))

	return marshal(r.Hdr, TypeStateSensor, putStateSets(body, r.States))
}

func decodeStateSensor(hdr Header, data []byte) (*StateSensor, error) {
	body := data[HeaderSize:]
	if len(body) < 13 {
		return nil, ErrShortRecord
	}

	sets, err := getStateSets(body[13:], int(body[12]))
	if err != nil {
		return nil, err
	}

	return &StateSensor{
		Hdr:            hdr,
		TerminusHandle: binary.LittleEndian.Uint16(body),
		SensorID:       binary.LittleEndian.Uint16(body[2:]),
		Entity:         getEntity(body[4:]),
		SensorInit:     body[10],
		AuxNames:       body[11] != 0,
		States:         sets,
	}, nil
}

// StateEffecter describes a (possibly composite) state effecter.
type StateEffecter struct {
	Hdr            Header
	TerminusHandle uint16
	EffecterID     uint16
	Entity         entity.Entity
	SemanticID     uint16
	EffecterInit   uint8
	Description    bool
	States         []PossibleStates
}

func (r *StateEffecter) Header() Header { return r.Hdr }

func (r *StateEffecter) Marshal() []byte {
	body := make([]byte, 15, 64)
	binary.LittleEndian.PutUint16(body, r.TerminusHandle)
	binary.LittleEndian.PutUint16(body[2:], r.EffecterID)
	putEntity(body[4:], r.Entity)
	binary.LittleEndian.PutUint16(body[10:], r.SemanticID)
	body[12] = r.EffecterInit

	if r.Description {
		body[13] = 1
	}

	body[14] = byte(len(r.States))

	return marshal(r.Hdr, TypeStateEffecter, putStateSets(body, r.States))
}

func decodeStateEffecter(hdr Header, data []byte) (*StateEffecter, error) {
	body := data[HeaderSize:]
	if len(body) < 15 {
		return nil, ErrShortRecord
	}

	sets, err := getStateSets(body[15:], int(body[14]))
	if err != nil {
		return nil, err
	}

	return &StateEffecter{
		Hdr:            hdr,
		TerminusHandle: binary.LittleEndian.Uint16(body),
		EffecterID:     binary.LittleEndian.Uint16(body[2:]),
		Entity:         getEntity(body[4:]),
		SemanticID:     binary.LittleEndian.Uint16(body[10:]),
		EffecterInit:   body[12],
		Description:    body[13] != 0,
		States:         sets,
	}, nil
}

// NumericEffecter keeps the identifying prefix of a numeric effecter record
// decoded and the data-size dependent remainder opaque.
type NumericEffecter struct {
	Hdr            Header
	TerminusHandle uint16
	EffecterID     uint16
	Entity         entity.Entity
	SemanticID     uint16
	Tail           []byte
}

func (r *NumericEffecter) Header() Header { return r.Hdr }

func (r *NumericEffecter) Marshal() []byte {
	body := make([]byte, 12, 12+len(r.Tail))
	binary.LittleEndian.PutUint16(body, r.TerminusHandle)
	binary.LittleEndian.PutUint16(body[2:], r.EffecterID)
	putEntity(body[4:], r.Entity)
	binary.LittleEndian.PutUint16(body[10:], r.SemanticID)

	return marshal(r.Hdr, TypeNumericEffecter, append(body, r.Tail...))
}

func decodeNumericEffecter(hdr Header, data []byte) (*NumericEffecter, error) {
	body := data[HeaderSize:]
	if len(body) < 12 {
		return nil, ErrShortRecord
	}

	return &NumericEffecter{
		Hdr:            hdr,
		TerminusHandle: binary.LittleEndian.Uint16(body),
		EffecterID:     binary.LittleEndian.Uint16(body[2:]),
		Entity:         getEntity(body[4:]),
		SemanticID:     binary.LittleEndian.Uint16(body[10:]),
		Tail:           clone(body[12:]),
	}, nil
}

// FRURecordSet ties a FRU record set identifier to an entity.
type FRURecordSet struct {
	Hdr            Header
	TerminusHandle uint16
	RecordSetID    uint16
	Entity         entity.Entity
}

func (r *FRURecordSet) Header() Header { return r.Hdr }

func (r *FRURecordSet) Marshal() []byte {
	body := make([]byte, 10)
	binary.LittleEndian.PutUint16(body, r.TerminusHandle)
	binary.LittleEndian.PutUint16(body[2:], r.RecordSetID)
	putEntity(body[4:], r.Entity)

	return marshal(r.Hdr, TypeFRURecordSet, body)
}

func decodeFRURecordSet(hdr Header, data []byte) (*FRURecordSet, error) {
	body := data[HeaderSize:]
	if len(body) < 10 {
		return nil, ErrShortRecord
	}

	return &FRURecordSet{
		Hdr:            hdr,
		TerminusHandle: binary.LittleEndian.Uint16(body),
		RecordSetID:    binary.LittleEndian.Uint16(body[2:]),
		Entity:         getEntity(body[4:]),
	}, nil
}

// Opaque is any record type without a dedicated decoder.
type Opaque struct {
	Hdr  Header
	Body []byte
}

func (r *Opaque) Header() Header { return r.Hdr }

func (r *Opaque) Marshal() []byte {
	return marshal(r.Hdr, r.Hdr.Type, r.Body)
}

// hasEntityFields reports whether records of type t carry the
// terminus-handle/id/entity prefix.
func hasEntityFields(t Type) bool {
	switch t {
	case TypeStateSensor, TypeStateEffecter, TypeNumericEffecter, TypeFRURecordSet, TypeNumericSensor:
		return true
	default:
		return false
	}
}

// TerminusHandleOf extracts the terminus handle from records that carry
// one. Entity association and OEM records do not.
func TerminusHandleOf(data []byte) (uint16, bool) {
	hdr, err := DecodeHeader(data)
	if err != nil || len(data) < offTerminusHandle+2 {
		return 0, false
	}

	if hdr.Type != TypeTerminusLocator && !hasEntityFields(hdr.Type) {
		return 0, false
	}

	return binary.LittleEndian.Uint16(data[offTerminusHandle:]), true
}

// EntityOf extracts the entity a sensor, effecter or FRU record describes.
func EntityOf(data []byte) (entity.Entity, error) {
	hdr, err := DecodeHeader(data)
	if err != nil {
		return entity.Entity{}, err
	}

	if !hasEntityFields(hdr.Type) {
		return entity.Entity{}, fmt.Errorf("%w: %s", ErrNoEntityFields, hdr.Type)
	}

	if len(data) < entityFieldsEnd {
		return entity.Entity{}, ErrShortRecord
	}

	return getEntity(data[offEntityType:]), nil
}

// RewriteContainerID replaces the container id of a sensor, effecter or FRU
// record in place.
func RewriteContainerID(data []byte, containerID uint16) error {
	if _, err := EntityOf(data); err != nil {
		return err
	}

	binary.LittleEndian.PutUint16(data[offContainerID:], containerID)

	return nil
}

func putEntity(buf []byte, e entity.Entity) {
	binary.LittleEndian.PutUint16(buf, e.Type)
	binary.LittleEndian.PutUint16(buf[2:], e.Instance)
	binary.LittleEndian.PutUint16(buf[4:], e.ContainerID)
}

func getEntity(buf []byte) entity.Entity {
	return entity.Entity{
		Type:        binary.LittleEndian.Uint16(buf),
		Instance:    binary.LittleEndian.Uint16(buf[2:]),
		ContainerID: binary.LittleEndian.Uint16(buf[4:]),
	}
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}

	return append([]byte(nil), b...)
}
