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

import "encoding/binary"

// MaxCompositeSensors is the largest composite sensor count a state sensor
// reading may carry.
const MaxCompositeSensors = 8

// GetStateSensorReadingsRequest is the payload of GetStateSensorReadings.
type GetStateSensorReadingsRequest struct {
	SensorID    uint16
	SensorRearm uint8
}

// Marshal encodes the request payload; the trailing reserved byte is zero.
func (r *GetStateSensorReadingsRequest) Marshal() []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint16(buf, r.SensorID)
	buf[2] = r.SensorRearm

	return buf
}

// DecodeGetStateSensorReadingsRequest decodes the request payload.
func DecodeGetStateSensorReadingsRequest(payload []byte) (*GetStateSensorReadingsRequest, error) {
	if len(payload) < 4 {
		return nil, ErrShortBuffer
	}

	return &GetStateSensorReadingsRequest{
		SensorID:    binary.LittleEndian.Uint16(payload),
		SensorRearm: payload[2],
	}, nil
}

// SensorStateField is one composite sensor reading.
type SensorStateField struct {
	OperationalState uint8
	PresentState     uint8
	PreviousState    uint8
	EventState       uint8
}

// GetStateSensorReadingsResponse is the payload of the response.
type GetStateSensorReadingsResponse struct {
	Fields []SensorStateField
}

// Marshal encodes a successful response payload.
func (r *GetStateSensorReadingsResponse) Marshal() ([]byte, error) {
	if len(r.Fields) > MaxCompositeSensors {
		return nil, ErrTooManyStates
	}

	buf := make([]byte, 2, 2+4*len(r.Fields))
	buf[0] = byte(Success)
	buf[1] = byte(len(r.Fields))

	for _, f := range r.Fields {
		buf = append(buf, f.OperationalState, f.PresentState, f.PreviousState, f.EventState)
	}

	return buf, nil
}

// DecodeGetStateSensorReadingsResponse decodes the response payload.
func DecodeGetStateSensorReadingsResponse(payload []byte) (*GetStateSensorReadingsResponse, error) {
	rest, err := DecodeCompletion(payload)
	if err != nil {
		return nil, err
	}

	if len(rest) < 1 {
		return nil, ErrShortBuffer
	}

	count := int(rest[0])
	if count == 0 || count > MaxCompositeSensors {
		return nil, ErrTooManyStates
	}

	rest = rest[1:]
	if len(rest) < count*4 {
		return nil, ErrShortBuffer
	}

	resp := &GetStateSensorReadingsResponse{Fields: make([]SensorStateField, count)}
	for i := 0; i < count; i++ {
		f := rest[i*4 : i*4+4]
		resp.Fields[i] = SensorStateField{
			OperationalState: f[0],
			PresentState:     f[1],
			PreviousState:    f[2],
			EventState:       f[3],
		}
	}

	return resp, nil
}
