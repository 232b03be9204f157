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
	"encoding/binary"
	"fmt"
)

// EventClass identifies the kind of data carried by a PlatformEventMessage.
type EventClass uint8

const (
	EventClassSensor               EventClass = 0x00
	EventClassEffecter             EventClass = 0x01
	EventClassRedfishTaskExecuted  EventClass = 0x02
	EventClassRedfishMessage       EventClass = 0x03
	EventClassPDRRepositoryChange  EventClass = 0x04
	EventClassMessagePoll          EventClass = 0x05
	EventClassHeartbeatTimerElapse EventClass = 0x06
)

// EventFormatVersion is the only PlatformEventMessage format version.
const EventFormatVersion = 0x01

// PlatformEventStatus values returned in the PlatformEventMessage response.
const (
	EventNoLogging     uint8 = 0x00
	EventLoggingDone   uint8 = 0x01
	EventLoggingReject uint8 = 0x02
)

// PlatformEventMessage is the request payload of PlatformEventMessage.
type PlatformEventMessage struct {
	FormatVersion uint8
	TID           uint8
	EventClass    EventClass
	EventData     []byte
}

// Marshal encodes the request payload.
func (m *PlatformEventMessage) Marshal() []byte {
	buf := make([]byte, 3, 3+len(m.EventData))
	buf[0] = m.FormatVersion
	buf[1] = m.TID
	buf[2] = byte(m.EventClass)

	return append(buf, m.EventData...)
}

// DecodePlatformEventMessage decodes a PlatformEventMessage request.
func DecodePlatformEventMessage(payload []byte) (*PlatformEventMessage, error) {
	if len(payload) < 3 {
		return nil, ErrShortBuffer
	}

	return &PlatformEventMessage{
		FormatVersion: payload[0],
		TID:           payload[1],
		EventClass:    EventClass(payload[2]),
		EventData:     append([]byte(nil), payload[3:]...),
	}, nil
}

// EncodePlatformEventResponse builds the PlatformEventMessage response.
func EncodePlatformEventResponse(code CompletionCode, status uint8) []byte {
	if code != Success {
		return EncodeCompletion(code)
	}

	return []byte{byte(code), status}
}

// DecodePlatformEventResponse returns the platform event status.
func DecodePlatformEventResponse(payload []byte) (uint8, error) {
	rest, err := DecodeCompletion(payload)
	if err != nil {
		return 0, err
	}

	if len(rest) < 1 {
		return 0, ErrShortBuffer
	}

	return rest[0], nil
}

// ChangeEventFormat is the eventDataFormat of a PDR repository change event.
type ChangeEventFormat uint8

const (
	RefreshEntireRepository ChangeEventFormat = 0x00
	FormatIsPDRTypes        ChangeEventFormat = 0x01
	FormatIsPDRHandles      ChangeEventFormat = 0x02
)

// ChangeOperation is the eventDataOperation of one change record.
type ChangeOperation uint8

const (
	RefreshAllRecords ChangeOperation = 0x00
	RecordsDeleted    ChangeOperation = 0x01
	RecordsAdded      ChangeOperation = 0x02
	RecordsModified   ChangeOperation = 0x03
)

func (o ChangeOperation) String() string {
	switch o {
	case RefreshAllRecords:
		return "refresh"
	case RecordsDeleted:
		return "deleted"
	case RecordsAdded:
		return "added"
	case RecordsModified:
		return "modified"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// ChangeRecord lists the entries affected by one operation. Entries are
// record handles or PDR types depending on the event format.
type ChangeRecord struct {
	Operation ChangeOperation
	Entries   []uint32
}

// RepositoryChangeEvent is the event data of a PDR repository change event.
type RepositoryChangeEvent struct {
	Format  ChangeEventFormat
	Records []ChangeRecord
}

// Marshal encodes the event data.
func (e *RepositoryChangeEvent) Marshal() ([]byte, error) {
	if len(e.Records) > 0xFF {
		return nil, fmt.Errorf("pldm: %d change records exceed limit", len(e.Records))
	}

	buf := []byte{byte(e.Format), byte(len(e.Records))}

	for _, rec := range e.Records {
		if len(rec.Entries) > 0xFF {
			return nil, fmt.Errorf("pldm: %d change entries exceed limit", len(rec.Entries))
		}

		buf = append(buf, byte(rec.Operation), byte(len(rec.Entries)))
		for _, entry := range rec.Entries {
			buf = binary.LittleEndian.AppendUint32(buf, entry)
		}
	}

	return buf, nil
}

// DecodeRepositoryChangeEvent decodes PDR repository change event data.
func DecodeRepositoryChangeEvent(data []byte) (*RepositoryChangeEvent, error) {
	if len(data) < 2 {
		return nil, ErrShortBuffer
	}

	ev := &RepositoryChangeEvent{Format: ChangeEventFormat(data[0])}
	if ev.Format > FormatIsPDRHandles {
		return nil, fmt.Errorf("%w: 0x%02x", ErrInvalidEventFormat, data[0])
	}

	count := int(data[1])
	rest := data[2:]

	if ev.Format == RefreshEntireRepository && count != 0 {
		return nil, fmt.Errorf("%w: refresh event carries %d records", ErrInvalidEventFormat, count)
	}

	for i := 0; i < count; i++ {
		if len(rest) < 2 {
			return nil, ErrShortBuffer
		}

		rec := ChangeRecord{Operation: ChangeOperation(rest[0])}
		if rec.Operation > RecordsModified {
			return nil, fmt.Errorf("%w: 0x%02x", ErrInvalidOperation, rest[0])
		}

		n := int(rest[1])
		rest = rest[2:]

		if len(rest) < n*4 {
			return nil, ErrShortBuffer
		}

		rec.Entries = make([]uint32, n)
		for j := 0; j < n; j++ {
			rec.Entries[j] = binary.LittleEndian.Uint32(rest[j*4:])
		}

		rest = rest[n*4:]
		ev.Records = append(ev.Records, rec)
	}

	if len(rest) != 0 {
		return nil, ErrTrailingData
	}

	return ev, nil
}

// SensorEventClass is the sensorEventClassType of a sensor event.
type SensorEventClass uint8

const (
	SensorOpState      SensorEventClass = 0x00
	StateSensorState   SensorEventClass = 0x01
	NumericSensorState SensorEventClass = 0x02
)

// StateSensorEvent is the event data of a sensor event carrying the state
// sensor state class.
type StateSensorEvent struct {
	SensorID           uint16
	SensorOffset       uint8
	EventState         uint8
	PreviousEventState uint8
}

// Marshal encodes the sensor event data.
func (e *StateSensorEvent) Marshal() []byte {
	buf := make([]byte, 6)
	binary.LittleEndian.PutUint16(buf, e.SensorID)
	buf[2] = byte(StateSensorState)
	buf[3] = e.SensorOffset
	buf[4] = e.EventState
	buf[5] = e.PreviousEventState

	return buf
}

// DecodeSensorEvent decodes sensor event data. Only the state sensor state
// class is supported; other classes return ErrUnsupportedEventType along
// with the sensor id.
func DecodeSensorEvent(data []byte) (*StateSensorEvent, error) {
	if len(data) < 3 {
		return nil, ErrShortBuffer
	}

	ev := &StateSensorEvent{SensorID: binary.LittleEndian.Uint16(data)}

	class := SensorEventClass(data[2])
	if class != StateSensorState {
		return ev, fmt.Errorf("%w: class %d", ErrUnsupportedEventType, class)
	}

	if len(data) < 6 {
		return nil, ErrShortBuffer
	}

	ev.SensorOffset = data[3]
	ev.EventState = data[4]
	ev.PreviousEventState = data[5]

	return ev, nil
}
